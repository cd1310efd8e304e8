package tenant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"photobooth/internal/domain"
)

// MemoryStore keeps tenants in process memory. It backs STORE_DRIVER=memory
// and the tests.
type MemoryStore struct {
	mu      sync.RWMutex
	events  map[string]domain.Event
	themes  map[string]domain.EventTheme
	prompts map[string]domain.EventPrompt
	images  []domain.GeneratedImage
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:  make(map[string]domain.Event),
		themes:  make(map[string]domain.EventTheme),
		prompts: make(map[string]domain.EventPrompt),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) ListEvents(_ context.Context, activeOnly bool) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Event, 0, len(m.events))
	for _, ev := range m.events {
		if activeOnly && !ev.IsActive {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, domain.NotFound("Event not found")
	}
	return &ev, nil
}

func (m *MemoryStore) GetEventBySlug(_ context.Context, slug string) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ev := range m.events {
		if ev.Slug == slug {
			return &ev, nil
		}
	}
	return nil, domain.NotFound("Event not found")
}

func (m *MemoryStore) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, ev := range m.events {
		if ev.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CreateEvent(_ context.Context, in domain.EventInput, createdBy *string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.Slug == in.Slug {
			return nil, domain.Conflict("Event with this slug already exists")
		}
	}
	now := m.now()
	ev := domain.Event{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		CompanyName: in.CompanyName,
		LogoURL:     in.LogoURL,
		IsActive:    in.IsActive,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.events[ev.ID] = ev
	return &ev, nil
}

func (m *MemoryStore) UpdateEvent(_ context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, domain.NotFound("Event not found")
	}
	if p.Name != nil {
		ev.Name = *p.Name
	}
	if p.Slug != nil {
		ev.Slug = *p.Slug
	}
	if p.Description != nil {
		ev.Description = p.Description
	}
	if p.CompanyName != nil {
		ev.CompanyName = *p.CompanyName
	}
	if p.LogoURL != nil {
		ev.LogoURL = p.LogoURL
	}
	if p.IsActive != nil {
		ev.IsActive = *p.IsActive
	}
	if p.StartsAt != nil {
		ev.StartsAt = p.StartsAt
	}
	if p.EndsAt != nil {
		ev.EndsAt = p.EndsAt
	}
	ev.UpdatedAt = m.now()
	m.events[id] = ev
	return &ev, nil
}

// DeleteEvent cascades to the event's theme, prompts and usage rows.
func (m *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return domain.NotFound("Event not found")
	}
	delete(m.events, id)
	delete(m.themes, id)
	for pid, p := range m.prompts {
		if p.EventID == id {
			delete(m.prompts, pid)
		}
	}
	kept := m.images[:0]
	for _, img := range m.images {
		if img.EventID != id {
			kept = append(kept, img)
		}
	}
	m.images = kept
	return nil
}

func (m *MemoryStore) CountEvents(_ context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := 0
	for _, ev := range m.events {
		if ev.IsActive {
			active++
		}
	}
	return len(m.events), active, nil
}

func (m *MemoryStore) GetTheme(_ context.Context, eventID string) (*domain.EventTheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	th, ok := m.themes[eventID]
	if !ok {
		return nil, domain.NotFound("Theme not found")
	}
	return &th, nil
}

func (m *MemoryStore) UpsertTheme(_ context.Context, eventID string, in domain.ThemeInput) (*domain.EventTheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	th, ok := m.themes[eventID]
	if !ok {
		th = domain.EventTheme{ID: uuid.NewString(), EventID: eventID, CreatedAt: now}
	}
	th.PrimaryColor = in.PrimaryColor
	th.SecondaryColor = in.SecondaryColor
	th.AccentColor = in.AccentColor
	th.BackgroundGradientStart = in.BackgroundGradientStart
	th.BackgroundGradientEnd = in.BackgroundGradientEnd
	th.FontFamily = in.FontFamily
	th.UpdatedAt = now
	m.themes[eventID] = th
	return &th, nil
}

func (m *MemoryStore) ListPrompts(_ context.Context, eventID string) ([]domain.EventPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.EventPrompt
	for _, p := range m.prompts {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetPrompt(_ context.Context, id string) (*domain.EventPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, domain.NotFound("Prompt not found")
	}
	return &p, nil
}

func (m *MemoryStore) FindPrompt(_ context.Context, eventID, optionKey string) (*domain.EventPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.prompts {
		if p.EventID == eventID && p.OptionKey == optionKey {
			return &p, nil
		}
	}
	return nil, domain.NotFound("Prompt not found")
}

func (m *MemoryStore) OptionKeyExists(_ context.Context, eventID, optionKey, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, p := range m.prompts {
		if p.EventID == eventID && p.OptionKey == optionKey && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CreatePrompt(_ context.Context, eventID string, in domain.PromptInput) (*domain.EventPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return nil, domain.NotFound("Event not found")
	}
	now := m.now()
	p := domain.EventPrompt{
		ID:                uuid.NewString(),
		EventID:           eventID,
		OptionKey:         in.OptionKey,
		Title:             in.Title,
		PromptText:        in.PromptText,
		ReferenceImageURL: in.ReferenceImageURL,
		PreviewImageURL:   in.PreviewImageURL,
		DisplayOrder:      in.DisplayOrder,
		IsActive:          in.Active(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.prompts[p.ID] = p
	return &p, nil
}

func (m *MemoryStore) UpdatePrompt(_ context.Context, id string, patch domain.PromptPatch) (*domain.EventPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, domain.NotFound("Prompt not found")
	}
	if patch.OptionKey != nil {
		p.OptionKey = *patch.OptionKey
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.PromptText != nil {
		p.PromptText = *patch.PromptText
	}
	if patch.ReferenceImageURL != nil {
		p.ReferenceImageURL = patch.ReferenceImageURL
	}
	if patch.PreviewImageURL != nil {
		p.PreviewImageURL = patch.PreviewImageURL
	}
	if patch.DisplayOrder != nil {
		p.DisplayOrder = *patch.DisplayOrder
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	p.UpdatedAt = m.now()
	m.prompts[id] = p
	return &p, nil
}

func (m *MemoryStore) DeletePrompt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[id]; !ok {
		return domain.NotFound("Prompt not found")
	}
	delete(m.prompts, id)
	return nil
}

func (m *MemoryStore) InsertGeneratedImage(_ context.Context, rec domain.GeneratedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.images = append(m.images, rec)
	return nil
}

func (m *MemoryStore) ListImageCosts(_ context.Context, eventID string) ([]ImageCost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ImageCost
	for _, img := range m.images {
		if eventID != "" && img.EventID != eventID {
			continue
		}
		c := ImageCost{CreatedAt: img.CreatedAt}
		if img.EstimatedCost != nil {
			c.EstimatedCost = *img.EstimatedCost
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) RecentImages(_ context.Context, limit int) ([]domain.GeneratedImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.GeneratedImage, len(m.images))
	copy(out, m.images)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
