package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is what the postgres tenant store needs from a connection.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// MarkerPattern matches the audit line every inline query starts with.
var MarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var (
	errEmptyQuery    = errors.New("empty query")
	errMissingMarker = errors.New("sql marker missing or invalid")
)

// SQLRunner refuses unmarked queries and logs each statement by its marker.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger.With().Str("component", "sql").Logger()}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, body, err := ParseMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.Pool.Exec(ctx, body, args...)
	if err != nil {
		r.Logger.Error().Err(err).Str("marker", marker).Str("op", "exec").Msg("sql failed")
		return tag, err
	}
	r.Logger.Debug().
		Str("marker", marker).
		Str("op", "exec").
		Int64("rows", tag.RowsAffected()).
		Dur("elapsed", time.Since(start)).
		Msg("sql ok")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, body, err := ParseMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return trackedRow{
		row:    r.Pool.QueryRow(ctx, body, args...),
		logger: r.Logger,
		marker: marker,
		start:  time.Now(),
	}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, body, err := ParseMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.Pool.Query(ctx, body, args...)
	if err != nil {
		r.Logger.Error().Err(err).Str("marker", marker).Str("op", "query").Msg("sql failed")
		return nil, err
	}
	return &trackedRows{Rows: rows, logger: r.Logger, marker: marker, start: start}, nil
}

type trackedRow struct {
	row    pgx.Row
	logger zerolog.Logger
	marker string
	start  time.Time
}

func (t trackedRow) Scan(dest ...any) error {
	err := t.row.Scan(dest...)
	switch {
	case err == nil, errors.Is(err, pgx.ErrNoRows):
		t.logger.Debug().
			Str("marker", t.marker).
			Str("op", "query_row").
			Bool("found", err == nil).
			Dur("elapsed", time.Since(t.start)).
			Msg("sql ok")
	default:
		t.logger.Error().Err(err).Str("marker", t.marker).Str("op", "query_row").Msg("sql failed")
	}
	return err
}

type trackedRows struct {
	pgx.Rows
	logger zerolog.Logger
	marker string
	start  time.Time
	seen   int
}

func (t *trackedRows) Next() bool {
	ok := t.Rows.Next()
	if ok {
		t.seen++
	}
	return ok
}

func (t *trackedRows) Close() {
	t.Rows.Close()
	ev := t.logger.Debug()
	if err := t.Rows.Err(); err != nil {
		ev = t.logger.Error().Err(err)
	}
	ev.Str("marker", t.marker).
		Str("op", "query").
		Int("rows", t.seen).
		Dur("elapsed", time.Since(t.start)).
		Msg("sql done")
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error {
	return e.err
}

// ParseMarker splits a query into its audit marker and the statement body.
func ParseMarker(query string) (marker, body string, err error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errEmptyQuery
	}
	head, rest, _ := strings.Cut(trimmed, "\n")
	head = strings.TrimSpace(head)
	if !MarkerPattern.MatchString(head) {
		return "", "", errMissingMarker
	}
	return strings.TrimPrefix(head, "--sql "), rest, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
