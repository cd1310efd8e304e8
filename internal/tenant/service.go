package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"photobooth/internal/domain"
)

const (
	recentImagesLimit = 10
	maxDuplicateTries = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Service applies the tenant rules (slug and option key uniqueness, partial
// updates, stats) on top of a Store.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return &Service{store: store, validate: v, now: time.Now}
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.Invalid(fmt.Sprintf("field %s failed %s validation", jsonName(fe.Field()), fe.Tag()))
		}
		return domain.Invalid(err.Error())
	}
	return nil
}

func (s *Service) ListEvents(ctx context.Context, activeOnly bool) ([]domain.Event, error) {
	return s.store.ListEvents(ctx, activeOnly)
}

// EventBySlug returns an event with its theme and prompts. With activeOnly
// an inactive event is reported as not found and inactive prompts are
// hidden.
func (s *Service) EventBySlug(ctx context.Context, slug string, activeOnly bool) (*domain.EventWithDetails, error) {
	ev, err := s.store.GetEventBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if activeOnly && !ev.IsActive {
		return nil, domain.NotFound("Event not found")
	}
	theme, err := s.store.GetTheme(ctx, ev.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	prompts, err := s.store.ListPrompts(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	if activeOnly {
		visible := prompts[:0]
		for _, p := range prompts {
			if p.IsActive {
				visible = append(visible, p)
			}
		}
		prompts = visible
	}
	if prompts == nil {
		prompts = []domain.EventPrompt{}
	}
	return &domain.EventWithDetails{Event: *ev, Theme: theme, Prompts: prompts}, nil
}

// ActivePrompt resolves the prompt row used for generation: the event must
// be active and the prompt must be active. Anything else is not found.
func (s *Service) ActivePrompt(ctx context.Context, slug, optionKey string) (*domain.Event, *domain.EventPrompt, error) {
	ev, err := s.store.GetEventBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if !ev.IsActive {
		return nil, nil, domain.NotFound("event is not active")
	}
	p, err := s.store.FindPrompt(ctx, ev.ID, optionKey)
	if err != nil {
		return nil, nil, err
	}
	if !p.IsActive {
		return nil, nil, domain.NotFound("prompt is not active")
	}
	return ev, p, nil
}

func (s *Service) CreateEvent(ctx context.Context, in domain.EventInput, createdBy string) (*domain.Event, error) {
	in.Slug = strings.TrimSpace(in.Slug)
	if err := s.check(in); err != nil {
		return nil, err
	}
	taken, err := s.store.SlugExists(ctx, in.Slug, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Conflict("Event with this slug already exists")
	}
	var by *string
	if createdBy != "" {
		by = &createdBy
	}
	return s.store.CreateEvent(ctx, in, by)
}

func (s *Service) UpdateEvent(ctx context.Context, id string, patch domain.EventPatch) (*domain.Event, error) {
	if patch.Empty() {
		return nil, domain.Invalid("No fields to update")
	}
	if err := s.check(patch); err != nil {
		return nil, err
	}
	if patch.Slug != nil {
		taken, err := s.store.SlugExists(ctx, *patch.Slug, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.Conflict("Event with this slug already exists")
		}
	}
	return s.store.UpdateEvent(ctx, id, patch)
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	return s.store.DeleteEvent(ctx, id)
}

func (s *Service) Theme(ctx context.Context, eventID string) (*domain.EventTheme, error) {
	return s.store.GetTheme(ctx, eventID)
}

func (s *Service) UpsertTheme(ctx context.Context, eventID string, in domain.ThemeInput) (*domain.EventTheme, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.UpsertTheme(ctx, eventID, in.WithDefaults())
}

func (s *Service) Prompts(ctx context.Context, eventID string) ([]domain.EventPrompt, error) {
	prompts, err := s.store.ListPrompts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = []domain.EventPrompt{}
	}
	return prompts, nil
}

func (s *Service) Prompt(ctx context.Context, id string) (*domain.EventPrompt, error) {
	return s.store.GetPrompt(ctx, id)
}

func (s *Service) CreatePrompt(ctx context.Context, eventID string, in domain.PromptInput) (*domain.EventPrompt, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	taken, err := s.store.OptionKeyExists(ctx, eventID, in.OptionKey, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Conflict(fmt.Sprintf("Prompt with option_key '%s' already exists for this event", in.OptionKey))
	}
	return s.store.CreatePrompt(ctx, eventID, in)
}

func (s *Service) UpdatePrompt(ctx context.Context, id string, patch domain.PromptPatch) (*domain.EventPrompt, error) {
	if patch.Empty() {
		return nil, domain.Invalid("No fields to update")
	}
	if err := s.check(patch); err != nil {
		return nil, err
	}
	if patch.OptionKey != nil {
		current, err := s.store.GetPrompt(ctx, id)
		if err != nil {
			return nil, err
		}
		taken, err := s.store.OptionKeyExists(ctx, current.EventID, *patch.OptionKey, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.Conflict(fmt.Sprintf("Prompt with option_key '%s' already exists for this event", *patch.OptionKey))
		}
	}
	return s.store.UpdatePrompt(ctx, id, patch)
}

func (s *Service) DeletePrompt(ctx context.Context, id string) error {
	return s.store.DeletePrompt(ctx, id)
}

// DuplicatePrompt copies a prompt under the first free "<key>_copyN" key.
func (s *Service) DuplicatePrompt(ctx context.Context, id string) (*domain.EventPrompt, error) {
	orig, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	for n := 1; n <= maxDuplicateTries; n++ {
		key := fmt.Sprintf("%s_copy%d", orig.OptionKey, n)
		taken, err := s.store.OptionKeyExists(ctx, orig.EventID, key, "")
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		active := orig.IsActive
		return s.store.CreatePrompt(ctx, orig.EventID, domain.PromptInput{
			OptionKey:         key,
			Title:             orig.Title + " (Copy)",
			PromptText:        orig.PromptText,
			ReferenceImageURL: orig.ReferenceImageURL,
			PreviewImageURL:   orig.PreviewImageURL,
			DisplayOrder:      orig.DisplayOrder,
			IsActive:          &active,
		})
	}
	return nil, domain.Conflict("no free option_key for the copy")
}

func (s *Service) RecordUsage(ctx context.Context, rec domain.GeneratedImage) error {
	if rec.EventID == "" {
		return domain.Invalid("usage record without event")
	}
	return s.store.InsertGeneratedImage(ctx, rec)
}

// EventStats totals an event's usage; "today" is the current UTC date.
func (s *Service) EventStats(ctx context.Context, eventID string) (*domain.EventStats, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	costs, err := s.store.ListImageCosts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	stats := &domain.EventStats{EventID: ev.ID, EventName: ev.Name}
	today := s.now().UTC().Format(time.DateOnly)
	for _, c := range costs {
		stats.TotalImages++
		stats.TotalCost += c.EstimatedCost
		if c.CreatedAt.UTC().Format(time.DateOnly) == today {
			stats.ImagesToday++
			stats.CostToday += c.EstimatedCost
		}
	}
	return stats, nil
}

func (s *Service) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	total, active, err := s.store.CountEvents(ctx)
	if err != nil {
		return nil, err
	}
	costs, err := s.store.ListImageCosts(ctx, "")
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentImages(ctx, recentImagesLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []domain.GeneratedImage{}
	}
	stats := &domain.DashboardStats{
		TotalEvents:  total,
		ActiveEvents: active,
		TotalImages:  len(costs),
		RecentImages: recent,
	}
	for _, c := range costs {
		stats.TotalCost += c.EstimatedCost
	}
	return stats, nil
}

// jsonName turns a Go field name into the snake_case key clients send.
func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(field[i-1] >= 'A' && field[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
