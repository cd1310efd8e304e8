package domain

import "time"

// Theme defaults applied when an event has no stored theme or a field is
// omitted on upsert.
const (
	DefaultPrimaryColor            = "#007B3A"
	DefaultSecondaryColor          = "#004d25"
	DefaultAccentColor             = "#00a651"
	DefaultBackgroundGradientStart = "#007B3A"
	DefaultBackgroundGradientEnd   = "#004d25"
	DefaultFontFamily              = "Alexandria"
)

// Event is a tenant: one deployment or occasion of the booth.
type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description *string    `json:"description"`
	CompanyName string     `json:"company_name"`
	LogoURL     *string    `json:"logo_url"`
	IsActive    bool       `json:"is_active"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	CreatedBy   *string    `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// EventWithDetails is the public kiosk view of an event.
type EventWithDetails struct {
	Event
	Theme   *EventTheme   `json:"theme"`
	Prompts []EventPrompt `json:"prompts"`
}

type EventInput struct {
	Name        string     `json:"name" validate:"required,max=255"`
	Slug        string     `json:"slug" validate:"required,max=100,slug"`
	Description *string    `json:"description"`
	CompanyName string     `json:"company_name" validate:"required,max=255"`
	LogoURL     *string    `json:"logo_url" validate:"omitempty,url"`
	IsActive    bool       `json:"is_active"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// EventPatch carries a partial update; nil fields are left untouched.
type EventPatch struct {
	Name        *string    `json:"name" validate:"omitempty,max=255"`
	Slug        *string    `json:"slug" validate:"omitempty,max=100,slug"`
	Description *string    `json:"description"`
	CompanyName *string    `json:"company_name" validate:"omitempty,max=255"`
	LogoURL     *string    `json:"logo_url" validate:"omitempty,url"`
	IsActive    *bool      `json:"is_active"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

func (p EventPatch) Empty() bool {
	return p.Name == nil && p.Slug == nil && p.Description == nil && p.CompanyName == nil &&
		p.LogoURL == nil && p.IsActive == nil && p.StartsAt == nil && p.EndsAt == nil
}

// EventTheme holds the kiosk colors and font for one event.
type EventTheme struct {
	ID                      string    `json:"id"`
	EventID                 string    `json:"event_id"`
	PrimaryColor            string    `json:"primary_color"`
	SecondaryColor          string    `json:"secondary_color"`
	AccentColor             string    `json:"accent_color"`
	BackgroundGradientStart string    `json:"background_gradient_start"`
	BackgroundGradientEnd   string    `json:"background_gradient_end"`
	FontFamily              string    `json:"font_family"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

type ThemeInput struct {
	PrimaryColor            string `json:"primary_color" validate:"omitempty,hexcolor"`
	SecondaryColor          string `json:"secondary_color" validate:"omitempty,hexcolor"`
	AccentColor             string `json:"accent_color" validate:"omitempty,hexcolor"`
	BackgroundGradientStart string `json:"background_gradient_start" validate:"omitempty,hexcolor"`
	BackgroundGradientEnd   string `json:"background_gradient_end" validate:"omitempty,hexcolor"`
	FontFamily              string `json:"font_family" validate:"omitempty,max=100"`
}

// WithDefaults fills omitted fields with the stock palette.
func (t ThemeInput) WithDefaults() ThemeInput {
	t.PrimaryColor = orDefault(t.PrimaryColor, DefaultPrimaryColor)
	t.SecondaryColor = orDefault(t.SecondaryColor, DefaultSecondaryColor)
	t.AccentColor = orDefault(t.AccentColor, DefaultAccentColor)
	t.BackgroundGradientStart = orDefault(t.BackgroundGradientStart, DefaultBackgroundGradientStart)
	t.BackgroundGradientEnd = orDefault(t.BackgroundGradientEnd, DefaultBackgroundGradientEnd)
	t.FontFamily = orDefault(t.FontFamily, DefaultFontFamily)
	return t
}

// EventPrompt overrides a catalog option for one event. OptionKey is unique
// within the event.
type EventPrompt struct {
	ID                string    `json:"id"`
	EventID           string    `json:"event_id"`
	OptionKey         string    `json:"option_key"`
	Title             string    `json:"title"`
	PromptText        string    `json:"prompt_text"`
	ReferenceImageURL *string   `json:"reference_image_url"`
	PreviewImageURL   *string   `json:"preview_image_url"`
	DisplayOrder      int       `json:"display_order"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type PromptInput struct {
	OptionKey         string  `json:"option_key" validate:"required,max=100"`
	Title             string  `json:"title" validate:"required,max=255"`
	PromptText        string  `json:"prompt_text" validate:"required"`
	ReferenceImageURL *string `json:"reference_image_url" validate:"omitempty,url"`
	PreviewImageURL   *string `json:"preview_image_url" validate:"omitempty,url"`
	DisplayOrder      int     `json:"display_order" validate:"gte=0"`
	IsActive          *bool   `json:"is_active"`
}

// Active reports the effective active flag; prompts are active unless stated.
func (p PromptInput) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

type PromptPatch struct {
	OptionKey         *string `json:"option_key" validate:"omitempty,max=100"`
	Title             *string `json:"title" validate:"omitempty,max=255"`
	PromptText        *string `json:"prompt_text"`
	ReferenceImageURL *string `json:"reference_image_url" validate:"omitempty,url"`
	PreviewImageURL   *string `json:"preview_image_url" validate:"omitempty,url"`
	DisplayOrder      *int    `json:"display_order" validate:"omitempty,gte=0"`
	IsActive          *bool   `json:"is_active"`
}

func (p PromptPatch) Empty() bool {
	return p.OptionKey == nil && p.Title == nil && p.PromptText == nil && p.ReferenceImageURL == nil &&
		p.PreviewImageURL == nil && p.DisplayOrder == nil && p.IsActive == nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
