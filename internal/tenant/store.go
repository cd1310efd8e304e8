// Package tenant manages events, their themes and prompt overrides, and the
// usage log of images generated for them.
package tenant

import (
	"context"
	"time"

	"photobooth/internal/domain"
)

// Store is the persistence contract shared by the postgres, supabase and
// in-memory backends. Lookups of a missing row return an error wrapping
// domain.ErrNotFound.
type Store interface {
	ListEvents(ctx context.Context, activeOnly bool) ([]domain.Event, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	CreateEvent(ctx context.Context, in domain.EventInput, createdBy *string) (*domain.Event, error)
	UpdateEvent(ctx context.Context, id string, patch domain.EventPatch) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	CountEvents(ctx context.Context) (total int, active int, err error)

	GetTheme(ctx context.Context, eventID string) (*domain.EventTheme, error)
	UpsertTheme(ctx context.Context, eventID string, in domain.ThemeInput) (*domain.EventTheme, error)

	// ListPrompts returns the prompts of an event ordered by display_order.
	ListPrompts(ctx context.Context, eventID string) ([]domain.EventPrompt, error)
	GetPrompt(ctx context.Context, id string) (*domain.EventPrompt, error)
	FindPrompt(ctx context.Context, eventID, optionKey string) (*domain.EventPrompt, error)
	OptionKeyExists(ctx context.Context, eventID, optionKey, excludeID string) (bool, error)
	CreatePrompt(ctx context.Context, eventID string, in domain.PromptInput) (*domain.EventPrompt, error)
	UpdatePrompt(ctx context.Context, id string, patch domain.PromptPatch) (*domain.EventPrompt, error)
	DeletePrompt(ctx context.Context, id string) error

	InsertGeneratedImage(ctx context.Context, rec domain.GeneratedImage) error
	// ListImageCosts returns cost rows for one event, or for every event
	// when eventID is empty.
	ListImageCosts(ctx context.Context, eventID string) ([]ImageCost, error)
	RecentImages(ctx context.Context, limit int) ([]domain.GeneratedImage, error)
}

type ImageCost struct {
	EstimatedCost float64
	CreatedAt     time.Time
}
