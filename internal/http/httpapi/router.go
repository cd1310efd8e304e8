package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"photobooth/internal/http/handlers"
	"photobooth/internal/middleware"
)

type Options struct {
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	JWTSecret       string
	RateLimitPerMin int
	// StaticDir is served under /static when artifacts are written to the
	// local filesystem.
	StaticDir string
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	// Only the tenant routes look at the caller; kiosk routes ignore tokens.
	authenticate := middleware.Authenticate(opts.JWTSecret)

	r.Get("/healthz", app.Health)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	r.Get("/options", app.Options)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/image-generator", app.ImageGenerator)
		r.Post("/generate-stream", app.GenerateStream)
	})

	r.Route("/events", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", app.EventsList)
		r.Get("/{event}", app.EventBySlug)
		r.Get("/{event}/theme", app.ThemeGet)
		r.With(middleware.RequireAuth).Get("/{event}/stats", app.EventStats)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/", app.EventCreate)
			r.Put("/{event}", app.EventUpdate)
			r.Delete("/{event}", app.EventDelete)
			r.Put("/{event}/theme", app.ThemePut)
		})
	})

	r.Route("/prompts", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/event/{event}", app.PromptsList)
		r.Get("/{prompt}", app.PromptGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/event/{event}", app.PromptCreate)
			r.Put("/{prompt}", app.PromptUpdate)
			r.Delete("/{prompt}", app.PromptDelete)
			r.Post("/{prompt}/duplicate", app.PromptDuplicate)
		})
	})

	r.With(authenticate, middleware.RequireAuth).Get("/dashboard/stats", app.DashboardStats)

	r.Post("/print", app.Print)
	r.Route("/payments", func(r chi.Router) {
		r.Post("/check", app.PaymentsCheck)
		r.Post("/purchase", app.PaymentsPurchase)
	})

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	return r
}
