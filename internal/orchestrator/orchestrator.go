// Package orchestrator turns a booth request into a generated, published
// image. It decides which prompt applies (an event override or the static
// catalog), calls the generation client and hands the result to the
// publisher, either in one shot or as a stream of events.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"photobooth/internal/catalog"
	"photobooth/internal/domain"
	"photobooth/internal/generation"
)

const DefaultTimeout = 180 * time.Second

// Tenants is the slice of the tenant service the orchestrator needs.
type Tenants interface {
	ActivePrompt(ctx context.Context, slug, optionKey string) (*domain.Event, *domain.EventPrompt, error)
	RecordUsage(ctx context.Context, rec domain.GeneratedImage) error
}

type Publisher interface {
	Configured() bool
	Publish(ctx context.Context, data []byte, tenantSlug string) (string, error)
	PublishQRCode(ctx context.Context, png []byte, tenantSlug string) (string, error)
	MakeQRCode(url string) ([]byte, error)
}

type Options struct {
	// Tenants may be nil, in which case every request uses the catalog.
	Tenants      Tenants
	QREnabled    bool
	Timeout      time.Duration
	CostPerImage float64
	Logger       zerolog.Logger
}

type Orchestrator struct {
	catalog   *catalog.Catalog
	gen       generation.Client
	publisher Publisher
	tenants   Tenants
	qr        bool
	timeout   time.Duration
	cost      float64
	usage     *usageLogger
	logger    zerolog.Logger
	now       func() time.Time
}

func New(cat *catalog.Catalog, gen generation.Client, pub Publisher, opts Options) *Orchestrator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	o := &Orchestrator{
		catalog:   cat,
		gen:       gen,
		publisher: pub,
		tenants:   opts.Tenants,
		qr:        opts.QREnabled,
		timeout:   timeout,
		cost:      opts.CostPerImage,
		logger:    opts.Logger,
		now:       time.Now,
	}
	if opts.Tenants != nil {
		o.usage = newUsageLogger(opts.Tenants, pub, opts.Logger)
	}
	return o
}

// Request is one booth submission. Image holds the decoded upload.
type Request struct {
	Image     []byte
	Option    string
	EventSlug string
}

// Plan is a validated request with its prompt source resolved.
type Plan struct {
	OptionKey string
	Prompt    string
	Images    []generation.Image
	// Event and EventPrompt are set when an event override was used.
	Event       *domain.Event
	EventPrompt *domain.EventPrompt
}

// TenantSlug returns the slug used to namespace published artifacts.
func (p *Plan) TenantSlug() string {
	if p.Event == nil {
		return ""
	}
	return p.Event.Slug
}

func (p *Plan) request() generation.Request {
	return generation.Request{Prompt: p.Prompt, Images: p.Images}
}

// Result is the JSON body of a non-streaming generation.
type Result struct {
	ImageURL string  `json:"imageUrl"`
	QRCode   *string `json:"qrCode"`
}

// Prepare validates req and resolves its prompt. It never calls the
// generation client.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (*Plan, error) {
	if len(req.Image) == 0 {
		return nil, domain.Invalid("image is required")
	}
	key := strings.TrimSpace(req.Option)
	if key == "" {
		return nil, domain.Invalid("option is required")
	}
	upload := generation.NewImage(req.Image)
	if !strings.HasPrefix(upload.MIMEType, "image/") {
		return nil, domain.Invalid("image must be a PNG, JPEG, WEBP or HEIC file")
	}

	if slug := strings.TrimSpace(req.EventSlug); slug != "" && o.tenants != nil {
		ev, row, err := o.tenants.ActivePrompt(ctx, slug, key)
		switch {
		case err == nil:
			return &Plan{
				OptionKey:   key,
				Prompt:      row.PromptText,
				Images:      []generation.Image{upload},
				Event:       ev,
				EventPrompt: row,
			}, nil
		case errors.Is(err, domain.ErrNotFound):
			o.logger.Debug().Str("event", slug).Str("option", key).Msg("no active event prompt, using catalog")
		default:
			o.logger.Warn().Err(err).Str("event", slug).Str("option", key).Msg("event prompt lookup failed, using catalog")
		}
	}

	opt, err := o.catalog.Resolve(key)
	if err != nil {
		return nil, domain.Invalid("Invalid option: " + key)
	}
	images := make([]generation.Image, 0, 1+len(opt.References))
	images = append(images, upload)
	for _, ref := range opt.References {
		images = append(images, generation.NewImage(ref))
	}
	return &Plan{OptionKey: key, Prompt: opt.Prompt, Images: images}, nil
}

// Generate runs the single-shot path and returns the published URL with an
// optional base64 QR code.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	plan, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if !o.publisher.Configured() {
		return nil, domain.StorageUnavailable(errors.New("object storage is not configured"))
	}

	start := o.now()
	gctx, cancel := context.WithTimeout(ctx, o.timeout)
	res, err := o.gen.Generate(gctx, plan.request())
	cancel()
	if err != nil {
		o.logger.Error().Err(err).Str("option", plan.OptionKey).Msg("image generation failed")
		return nil, generationFailure(err)
	}
	if len(res.Image) == 0 {
		return nil, generationFailure(generation.ErrNoImage)
	}

	url, err := o.publisher.Publish(ctx, res.Image, plan.TenantSlug())
	if err != nil {
		return nil, err
	}
	out := &Result{ImageURL: url}

	var png []byte
	if o.qr {
		png, err = o.publisher.MakeQRCode(url)
		if err != nil {
			o.logger.Warn().Err(err).Str("url", url).Msg("qr code render failed")
		} else {
			encoded := base64.StdEncoding.EncodeToString(png)
			out.QRCode = &encoded
		}
	}

	o.recordUsage(ctx, plan, usageEntry{
		imageURL: url,
		qrPNG:    png,
		model:    coalesce(res.Model, o.gen.Model()),
		usage:    res.Usage,
		elapsed:  o.now().Sub(start),
	})
	return out, nil
}

// generationFailure maps an upstream error to GenerationFailed with the most
// specific status the provider gave.
func generationFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.GenerationFailed(http.StatusGatewayTimeout, "image generation timed out", err)
	}
	var apiErr *generation.APIError
	if errors.As(err, &apiErr) {
		detail := coalesce(apiErr.Message, apiErr.Error())
		switch {
		case apiErr.ContentPolicy():
			return domain.GenerationFailed(http.StatusUnprocessableEntity, detail, err)
		case apiErr.Status == http.StatusTooManyRequests:
			return domain.GenerationFailed(http.StatusTooManyRequests, detail, err)
		default:
			return domain.GenerationFailed(0, detail, err)
		}
	}
	return domain.GenerationFailed(0, err.Error(), err)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
