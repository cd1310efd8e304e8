package tenant

import (
	"context"
	"encoding/json"
	"fmt"

	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"photobooth/internal/domain"
)

const (
	tableEvents          = "events"
	tableEventThemes     = "event_themes"
	tableEventPrompts    = "event_prompts"
	tableGeneratedImages = "generated_images"
)

// SupabaseStore talks to the same schema through the Supabase REST API with
// the service role key.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(url, serviceKey string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

func decodeRows[T any](data []byte, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode supabase rows: %w", err)
	}
	return rows, nil
}

func firstRow[T any](data []byte, err error, detail string) (*T, error) {
	rows, err := decodeRows[T](data, err)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NotFound(detail)
	}
	return &rows[0], nil
}

func exec(fb *postgrest.FilterBuilder) ([]byte, error) {
	data, _, err := fb.Execute()
	return data, err
}

func (s *SupabaseStore) ListEvents(_ context.Context, activeOnly bool) ([]domain.Event, error) {
	q := s.client.From(tableEvents).Select("*", "", false)
	if activeOnly {
		q = q.Eq("is_active", "true")
	}
	data, err := exec(q.Order("created_at", &postgrest.OrderOpts{Ascending: false}))
	return decodeRows[domain.Event](data, err)
}

func (s *SupabaseStore) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	data, err := exec(s.client.From(tableEvents).Select("*", "", false).Eq("id", id))
	return firstRow[domain.Event](data, err, "Event not found")
}

func (s *SupabaseStore) GetEventBySlug(_ context.Context, slug string) (*domain.Event, error) {
	data, err := exec(s.client.From(tableEvents).Select("*", "", false).Eq("slug", slug))
	return firstRow[domain.Event](data, err, "Event not found")
}

func (s *SupabaseStore) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	q := s.client.From(tableEvents).Select("id", "", false).Eq("slug", slug)
	if excludeID != "" {
		q = q.Neq("id", excludeID)
	}
	rows, err := decodeRows[struct{ ID string }](exec(q))
	return len(rows) > 0, err
}

func (s *SupabaseStore) CreateEvent(_ context.Context, in domain.EventInput, createdBy *string) (*domain.Event, error) {
	row := map[string]any{
		"name":         in.Name,
		"slug":         in.Slug,
		"description":  in.Description,
		"company_name": in.CompanyName,
		"logo_url":     in.LogoURL,
		"is_active":    in.IsActive,
		"starts_at":    in.StartsAt,
		"ends_at":      in.EndsAt,
		"created_by":   createdBy,
	}
	data, err := exec(s.client.From(tableEvents).Insert(row, false, "", "representation", ""))
	return firstRow[domain.Event](data, err, "Event not created")
}

func (s *SupabaseStore) UpdateEvent(_ context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	data, err := exec(s.client.From(tableEvents).Update(patchFields(p), "representation", "").Eq("id", id))
	return firstRow[domain.Event](data, err, "Event not found")
}

func (s *SupabaseStore) DeleteEvent(_ context.Context, id string) error {
	rows, err := decodeRows[domain.Event](exec(s.client.From(tableEvents).Delete("representation", "").Eq("id", id)))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.NotFound("Event not found")
	}
	return nil
}

func (s *SupabaseStore) CountEvents(_ context.Context) (int, int, error) {
	rows, err := decodeRows[struct {
		IsActive bool `json:"is_active"`
	}](exec(s.client.From(tableEvents).Select("is_active", "", false)))
	if err != nil {
		return 0, 0, err
	}
	active := 0
	for _, r := range rows {
		if r.IsActive {
			active++
		}
	}
	return len(rows), active, nil
}

func (s *SupabaseStore) GetTheme(_ context.Context, eventID string) (*domain.EventTheme, error) {
	data, err := exec(s.client.From(tableEventThemes).Select("*", "", false).Eq("event_id", eventID))
	return firstRow[domain.EventTheme](data, err, "Theme not found")
}

func (s *SupabaseStore) UpsertTheme(_ context.Context, eventID string, in domain.ThemeInput) (*domain.EventTheme, error) {
	row := map[string]any{
		"event_id":                  eventID,
		"primary_color":             in.PrimaryColor,
		"secondary_color":           in.SecondaryColor,
		"accent_color":              in.AccentColor,
		"background_gradient_start": in.BackgroundGradientStart,
		"background_gradient_end":   in.BackgroundGradientEnd,
		"font_family":               in.FontFamily,
	}
	data, err := exec(s.client.From(tableEventThemes).Upsert(row, "event_id", "representation", ""))
	return firstRow[domain.EventTheme](data, err, "Theme not saved")
}

func (s *SupabaseStore) ListPrompts(_ context.Context, eventID string) ([]domain.EventPrompt, error) {
	data, err := exec(s.client.From(tableEventPrompts).Select("*", "", false).
		Eq("event_id", eventID).
		Order("display_order", &postgrest.OrderOpts{Ascending: true}))
	return decodeRows[domain.EventPrompt](data, err)
}

func (s *SupabaseStore) GetPrompt(_ context.Context, id string) (*domain.EventPrompt, error) {
	data, err := exec(s.client.From(tableEventPrompts).Select("*", "", false).Eq("id", id))
	return firstRow[domain.EventPrompt](data, err, "Prompt not found")
}

func (s *SupabaseStore) FindPrompt(_ context.Context, eventID, optionKey string) (*domain.EventPrompt, error) {
	data, err := exec(s.client.From(tableEventPrompts).Select("*", "", false).
		Eq("event_id", eventID).
		Eq("option_key", optionKey))
	return firstRow[domain.EventPrompt](data, err, "Prompt not found")
}

func (s *SupabaseStore) OptionKeyExists(_ context.Context, eventID, optionKey, excludeID string) (bool, error) {
	q := s.client.From(tableEventPrompts).Select("id", "", false).
		Eq("event_id", eventID).
		Eq("option_key", optionKey)
	if excludeID != "" {
		q = q.Neq("id", excludeID)
	}
	rows, err := decodeRows[struct{ ID string }](exec(q))
	return len(rows) > 0, err
}

func (s *SupabaseStore) CreatePrompt(_ context.Context, eventID string, in domain.PromptInput) (*domain.EventPrompt, error) {
	row := map[string]any{
		"event_id":            eventID,
		"option_key":          in.OptionKey,
		"title":               in.Title,
		"prompt_text":         in.PromptText,
		"reference_image_url": in.ReferenceImageURL,
		"preview_image_url":   in.PreviewImageURL,
		"display_order":       in.DisplayOrder,
		"is_active":           in.Active(),
	}
	data, err := exec(s.client.From(tableEventPrompts).Insert(row, false, "", "representation", ""))
	return firstRow[domain.EventPrompt](data, err, "Prompt not created")
}

func (s *SupabaseStore) UpdatePrompt(_ context.Context, id string, p domain.PromptPatch) (*domain.EventPrompt, error) {
	data, err := exec(s.client.From(tableEventPrompts).Update(patchFields(p), "representation", "").Eq("id", id))
	return firstRow[domain.EventPrompt](data, err, "Prompt not found")
}

func (s *SupabaseStore) DeletePrompt(_ context.Context, id string) error {
	rows, err := decodeRows[domain.EventPrompt](exec(s.client.From(tableEventPrompts).Delete("representation", "").Eq("id", id)))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.NotFound("Prompt not found")
	}
	return nil
}

func (s *SupabaseStore) InsertGeneratedImage(_ context.Context, rec domain.GeneratedImage) error {
	row := map[string]any{
		"event_id":            rec.EventID,
		"prompt_id":           rec.PromptID,
		"original_image_url":  rec.OriginalImageURL,
		"generated_image_url": rec.GeneratedImageURL,
		"qr_code_url":         rec.QRCodeURL,
		"model_used":          rec.ModelUsed,
		"tokens_used":         rec.TokensUsed,
		"estimated_cost":      rec.EstimatedCost,
		"processing_time_ms":  rec.ProcessingTimeMS,
	}
	_, err := exec(s.client.From(tableGeneratedImages).Insert(row, false, "", "minimal", ""))
	return err
}

func (s *SupabaseStore) ListImageCosts(_ context.Context, eventID string) ([]ImageCost, error) {
	q := s.client.From(tableGeneratedImages).Select("estimated_cost,created_at", "", false)
	if eventID != "" {
		q = q.Eq("event_id", eventID)
	}
	rows, err := decodeRows[domain.GeneratedImage](exec(q))
	if err != nil {
		return nil, err
	}
	costs := make([]ImageCost, 0, len(rows))
	for _, r := range rows {
		c := ImageCost{CreatedAt: r.CreatedAt}
		if r.EstimatedCost != nil {
			c.EstimatedCost = *r.EstimatedCost
		}
		costs = append(costs, c)
	}
	return costs, nil
}

func (s *SupabaseStore) RecentImages(_ context.Context, limit int) ([]domain.GeneratedImage, error) {
	data, err := exec(s.client.From(tableGeneratedImages).Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, ""))
	return decodeRows[domain.GeneratedImage](data, err)
}

// patchFields converts a patch struct into a column map holding only the
// fields that were set.
func patchFields(patch any) map[string]any {
	raw, _ := json.Marshal(patch)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	return fields
}

var _ Store = (*SupabaseStore)(nil)
