package tenant

import (
	"context"

	"github.com/jackc/pgx/v5"

	"photobooth/internal/domain"
	"photobooth/internal/infra"
	"photobooth/internal/sqlinline"
)

// PostgresStore reads and writes tenants through the marked inline queries.
type PostgresStore struct {
	db infra.SQLExecutor
}

func NewPostgresStore(db infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var ev domain.Event
	if err := row.Scan(&ev.ID, &ev.Name, &ev.Slug, &ev.Description, &ev.CompanyName, &ev.LogoURL, &ev.IsActive,
		&ev.StartsAt, &ev.EndsAt, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanPrompt(row pgx.Row) (*domain.EventPrompt, error) {
	var p domain.EventPrompt
	if err := row.Scan(&p.ID, &p.EventID, &p.OptionKey, &p.Title, &p.PromptText, &p.ReferenceImageURL,
		&p.PreviewImageURL, &p.DisplayOrder, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanTheme(row pgx.Row) (*domain.EventTheme, error) {
	var t domain.EventTheme
	if err := row.Scan(&t.ID, &t.EventID, &t.PrimaryColor, &t.SecondaryColor, &t.AccentColor,
		&t.BackgroundGradientStart, &t.BackgroundGradientEnd, &t.FontFamily, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func notFound(err error, detail string) error {
	if infra.IsNoRows(err) {
		return domain.NotFound(detail)
	}
	return err
}

func (s *PostgresStore) ListEvents(ctx context.Context, activeOnly bool) ([]domain.Event, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListEvents, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	ev, err := scanEvent(s.db.QueryRow(ctx, sqlinline.QSelectEventByID, id))
	if err != nil {
		return nil, notFound(err, "Event not found")
	}
	return ev, nil
}

func (s *PostgresStore) GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	ev, err := scanEvent(s.db.QueryRow(ctx, sqlinline.QSelectEventBySlug, slug))
	if err != nil {
		return nil, notFound(err, "Event not found")
	}
	return ev, nil
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, sqlinline.QEventSlugExists, slug, excludeID).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) CreateEvent(ctx context.Context, in domain.EventInput, createdBy *string) (*domain.Event, error) {
	by := ""
	if createdBy != nil {
		by = *createdBy
	}
	return scanEvent(s.db.QueryRow(ctx, sqlinline.QInsertEvent,
		in.Name, in.Slug, in.Description, in.CompanyName, in.LogoURL, in.IsActive, in.StartsAt, in.EndsAt, by))
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	ev, err := scanEvent(s.db.QueryRow(ctx, sqlinline.QUpdateEvent,
		id, p.Name, p.Slug, p.Description, p.CompanyName, p.LogoURL, p.IsActive, p.StartsAt, p.EndsAt))
	if err != nil {
		return nil, notFound(err, "Event not found")
	}
	return ev, nil
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, sqlinline.QDeleteEvent, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("Event not found")
	}
	return nil
}

func (s *PostgresStore) CountEvents(ctx context.Context) (int, int, error) {
	var total, active int
	err := s.db.QueryRow(ctx, sqlinline.QCountEvents).Scan(&total, &active)
	return total, active, err
}

func (s *PostgresStore) GetTheme(ctx context.Context, eventID string) (*domain.EventTheme, error) {
	t, err := scanTheme(s.db.QueryRow(ctx, sqlinline.QSelectThemeByEvent, eventID))
	if err != nil {
		return nil, notFound(err, "Theme not found")
	}
	return t, nil
}

func (s *PostgresStore) UpsertTheme(ctx context.Context, eventID string, in domain.ThemeInput) (*domain.EventTheme, error) {
	return scanTheme(s.db.QueryRow(ctx, sqlinline.QUpsertTheme, eventID,
		in.PrimaryColor, in.SecondaryColor, in.AccentColor, in.BackgroundGradientStart, in.BackgroundGradientEnd, in.FontFamily))
}

func (s *PostgresStore) ListPrompts(ctx context.Context, eventID string) ([]domain.EventPrompt, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListEventPrompts, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prompts := []domain.EventPrompt{}
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

func (s *PostgresStore) GetPrompt(ctx context.Context, id string) (*domain.EventPrompt, error) {
	p, err := scanPrompt(s.db.QueryRow(ctx, sqlinline.QSelectPromptByID, id))
	if err != nil {
		return nil, notFound(err, "Prompt not found")
	}
	return p, nil
}

func (s *PostgresStore) FindPrompt(ctx context.Context, eventID, optionKey string) (*domain.EventPrompt, error) {
	p, err := scanPrompt(s.db.QueryRow(ctx, sqlinline.QSelectPromptByKey, eventID, optionKey))
	if err != nil {
		return nil, notFound(err, "Prompt not found")
	}
	return p, nil
}

func (s *PostgresStore) OptionKeyExists(ctx context.Context, eventID, optionKey, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, sqlinline.QPromptKeyExists, eventID, optionKey, excludeID).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) CreatePrompt(ctx context.Context, eventID string, in domain.PromptInput) (*domain.EventPrompt, error) {
	return scanPrompt(s.db.QueryRow(ctx, sqlinline.QInsertPrompt, eventID,
		in.OptionKey, in.Title, in.PromptText, in.ReferenceImageURL, in.PreviewImageURL, in.DisplayOrder, in.Active()))
}

func (s *PostgresStore) UpdatePrompt(ctx context.Context, id string, p domain.PromptPatch) (*domain.EventPrompt, error) {
	out, err := scanPrompt(s.db.QueryRow(ctx, sqlinline.QUpdatePrompt, id,
		p.OptionKey, p.Title, p.PromptText, p.ReferenceImageURL, p.PreviewImageURL, p.DisplayOrder, p.IsActive))
	if err != nil {
		return nil, notFound(err, "Prompt not found")
	}
	return out, nil
}

func (s *PostgresStore) DeletePrompt(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, sqlinline.QDeletePrompt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("Prompt not found")
	}
	return nil
}

func (s *PostgresStore) InsertGeneratedImage(ctx context.Context, rec domain.GeneratedImage) error {
	promptID := ""
	if rec.PromptID != nil {
		promptID = *rec.PromptID
	}
	_, err := s.db.Exec(ctx, sqlinline.QInsertGeneratedImage, rec.EventID, promptID, rec.OriginalImageURL,
		rec.GeneratedImageURL, rec.QRCodeURL, rec.ModelUsed, rec.TokensUsed, rec.EstimatedCost, rec.ProcessingTimeMS)
	return err
}

func (s *PostgresStore) ListImageCosts(ctx context.Context, eventID string) ([]ImageCost, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListImageCosts, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var costs []ImageCost
	for rows.Next() {
		var c ImageCost
		if err := rows.Scan(&c.EstimatedCost, &c.CreatedAt); err != nil {
			return nil, err
		}
		costs = append(costs, c)
	}
	return costs, rows.Err()
}

func (s *PostgresStore) RecentImages(ctx context.Context, limit int) ([]domain.GeneratedImage, error) {
	rows, err := s.db.Query(ctx, sqlinline.QRecentGeneratedImages, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []domain.GeneratedImage{}
	for rows.Next() {
		var img domain.GeneratedImage
		if err := rows.Scan(&img.ID, &img.EventID, &img.PromptID, &img.OriginalImageURL, &img.GeneratedImageURL,
			&img.QRCodeURL, &img.ModelUsed, &img.TokensUsed, &img.EstimatedCost, &img.ProcessingTimeMS, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
