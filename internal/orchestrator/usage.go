package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/rs/zerolog"

	"photobooth/internal/domain"
	"photobooth/internal/generation"
)

const usageWriteTimeout = 15 * time.Second

type usageEntry struct {
	imageURL string
	qrPNG    []byte
	model    string
	usage    *generation.Usage
	elapsed  time.Duration
}

// usageLogger writes GeneratedImage rows off the request path. Failures are
// logged and dropped.
type usageLogger struct {
	tenants   Tenants
	publisher Publisher
	logger    zerolog.Logger
	pool      gopool.Pool
	// run defaults to the pool; tests swap it for a synchronous call.
	run func(ctx context.Context, f func())
}

func newUsageLogger(tenants Tenants, pub Publisher, logger zerolog.Logger) *usageLogger {
	pool := gopool.NewPool("orchestrator.usage", math.MaxInt32, gopool.NewConfig())
	pool.SetPanicHandler(func(_ context.Context, v interface{}) {
		logger.Error().Interface("panic", v).Msg("usage logger panicked")
	})
	u := &usageLogger{tenants: tenants, publisher: pub, logger: logger, pool: pool}
	u.run = pool.CtxGo
	return u
}

// recordUsage queues a usage row when the plan came from an event override.
// The write is detached from the request so a disconnect does not drop it.
func (o *Orchestrator) recordUsage(ctx context.Context, plan *Plan, e usageEntry) {
	if o.usage == nil || plan.Event == nil {
		return
	}
	if e.imageURL == "" {
		o.logger.Debug().Str("event", plan.Event.Slug).Msg("skipping usage record without published image")
		return
	}
	rec := domain.GeneratedImage{
		EventID:           plan.Event.ID,
		GeneratedImageURL: e.imageURL,
		ModelUsed:         e.model,
		CreatedAt:         o.now().UTC(),
	}
	if plan.EventPrompt != nil {
		id := plan.EventPrompt.ID
		rec.PromptID = &id
	}
	ms := int(e.elapsed.Milliseconds())
	rec.ProcessingTimeMS = &ms
	cost := o.cost
	rec.EstimatedCost = &cost
	if e.usage != nil && e.usage.TotalTokens > 0 {
		tokens := e.usage.TotalTokens
		rec.TokensUsed = &tokens
	}

	detached := context.WithoutCancel(ctx)
	slug := plan.Event.Slug
	png := e.qrPNG
	o.usage.run(detached, func() {
		wctx, cancel := context.WithTimeout(detached, usageWriteTimeout)
		defer cancel()
		o.usage.write(wctx, slug, png, rec)
	})
}

func (u *usageLogger) write(ctx context.Context, slug string, png []byte, rec domain.GeneratedImage) {
	if len(png) > 0 && u.publisher.Configured() {
		url, err := u.publisher.PublishQRCode(ctx, png, slug)
		if err != nil {
			u.logger.Warn().Err(err).Str("event", slug).Msg("qr code upload for usage record failed")
		} else {
			rec.QRCodeURL = &url
		}
	}
	if err := u.tenants.RecordUsage(ctx, rec); err != nil {
		u.logger.Warn().Err(err).Str("event", slug).Msg(domain.ErrUsageLogFailed.Error())
		return
	}
	u.logger.Debug().Str("event", slug).Str("url", rec.GeneratedImageURL).Msg("usage recorded")
}
