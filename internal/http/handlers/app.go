package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"photobooth/internal/catalog"
	"photobooth/internal/domain"
	"photobooth/internal/i18n"
	"photobooth/internal/middleware"
	"photobooth/internal/orchestrator"
	"photobooth/internal/printer"
	"photobooth/internal/tenant"
)

const (
	defaultMaxUploadBytes = 20 << 20
	// writeDeadlineSlack covers encoding and flushing the response after the
	// slow call returns.
	writeDeadlineSlack = 15 * time.Second
)

// PrintQueue prints one uploaded photo.
type PrintQueue interface {
	Submit(ctx context.Context, filename string, data []byte, copies int) (*printer.Job, error)
}

// PaymentTerminal is the EFTPOS card reader attached to the kiosk.
type PaymentTerminal interface {
	CheckConnection(ctx context.Context) (string, error)
	Purchase(ctx context.Context, amountHalalah int64) (string, error)
}

type App struct {
	Catalog      *catalog.Catalog
	Orchestrator *orchestrator.Orchestrator
	// Tenants is nil when multi-tenant support is disabled.
	Tenants        *tenant.Service
	Printer        PrintQueue
	Payments       PaymentTerminal
	Logger         zerolog.Logger
	MaxUploadBytes int64
	// GenerationTimeout and PaymentTimeout bound the slow handlers. Their
	// responses may be written later than the server's WriteTimeout allows.
	GenerationTimeout time.Duration
	PaymentTimeout    time.Duration
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error answers {"detail": ...} with the status for err's kind. Errors that
// carry no client facing detail are logged and reported generically.
func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	detail := domain.Detail(err)
	var de *domain.Error
	if !errors.As(err, &de) {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		detail = "Internal server error"
	} else if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	a.json(w, status, map[string]string{"detail": i18n.T(middleware.LocaleFromContext(r.Context()), detail)})
}

// tenants returns the tenant service or writes 503 when it is disabled.
func (a *App) tenants(w http.ResponseWriter, r *http.Request) (*tenant.Service, bool) {
	if a.Tenants == nil {
		a.error(w, r, &domain.Error{Kind: domain.ErrTenantDisabled, Detail: "Multi-tenant support not configured"})
		return nil, false
	}
	return a.Tenants, true
}

// extendWriteDeadline lets the handler outlive the server WriteTimeout by
// budget. A zero budget removes the deadline.
func (a *App) extendWriteDeadline(w http.ResponseWriter, budget time.Duration) {
	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget + writeDeadlineSlack)
	}
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		a.Logger.Warn().Err(err).Msg("extend write deadline")
	}
}

func (a *App) maxUpload() int64 {
	if a.MaxUploadBytes > 0 {
		return a.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, r, domain.Invalid("invalid request body"))
		return false
	}
	return true
}
