package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"photobooth/internal/domain"
	"photobooth/internal/generation"
)

const (
	EventPartial = "partial"
	EventFinal   = "final"
	EventQRCode  = "qrcode"
	EventQRError = "qr_error"
	EventDone    = "done"
	EventError   = "error"
)

// StreamEvent is one message of the client facing event stream.
type StreamEvent struct {
	Type    string `json:"type"`
	Image   string `json:"image,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Sink receives stream events in order. A Send error means the client is
// gone; the stream stops without emitting anything else.
type Sink interface {
	Send(StreamEvent) error
}

type sinkError struct{ err error }

func (e *sinkError) Error() string { return "stream sink: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// Stream drives the streaming path for a prepared plan. Every stream ends
// with exactly one done or error event unless the client disconnects, in
// which case nothing more is sent and nothing is published.
func (o *Orchestrator) Stream(ctx context.Context, plan *Plan, sink Sink) error {
	start := o.now()
	gctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	send := func(ev StreamEvent) error {
		if err := sink.Send(ev); err != nil {
			cancel()
			return &sinkError{err: err}
		}
		return nil
	}

	var (
		final      []byte
		finalUsage *generation.Usage
		gotFinal   bool
	)
	err := o.gen.Stream(gctx, plan.request(), func(c generation.Chunk) error {
		if gotFinal {
			return nil
		}
		switch c.Kind {
		case generation.ChunkPartial:
			img := generation.PartialImage(c.Payload)
			if img == "" {
				return nil
			}
			return send(StreamEvent{Type: EventPartial, Image: img})
		case generation.ChunkCompleted:
			img, source, err := generation.FinalImage(c.Payload)
			if err != nil {
				return err
			}
			data, err := base64.StdEncoding.DecodeString(img)
			if err != nil {
				return fmt.Errorf("decode final image from %s: %w", source, err)
			}
			final, finalUsage, gotFinal = data, c.Usage, true
			return send(StreamEvent{Type: EventFinal, Image: img})
		}
		return nil
	})

	var se *sinkError
	if errors.As(err, &se) {
		o.logger.Info().Err(se.err).Str("option", plan.OptionKey).Msg("stream client went away")
		return se.err
	}
	if ctx.Err() != nil {
		o.logger.Info().Str("option", plan.OptionKey).Msg("stream cancelled by client")
		return ctx.Err()
	}
	if !gotFinal {
		if err == nil {
			err = generation.ErrIncompleteStream
		}
		o.logger.Error().Err(err).Str("option", plan.OptionKey).Msg("stream generation failed")
		if sendErr := sink.Send(StreamEvent{Type: EventError, Message: domain.Detail(generationFailure(err))}); sendErr != nil {
			return sendErr
		}
		return generationFailure(err)
	}
	if err != nil {
		o.logger.Warn().Err(err).Msg("upstream stream error after final image")
	}

	entry := usageEntry{
		model:   o.gen.Model(),
		usage:   finalUsage,
		elapsed: o.now().Sub(start),
	}
	if o.qr {
		url, png, err := o.publishWithQR(ctx, final, plan.TenantSlug())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			o.logger.Warn().Err(err).Str("option", plan.OptionKey).Msg("publish or qr failed after final image")
			if err := send(StreamEvent{Type: EventQRError, Message: domain.Detail(err)}); err != nil {
				return errors.Unwrap(err)
			}
		} else {
			entry.imageURL, entry.qrPNG = url, png
			if err := send(StreamEvent{Type: EventQRCode, Image: base64.StdEncoding.EncodeToString(png), URL: url}); err != nil {
				return errors.Unwrap(err)
			}
		}
	} else if o.publisher.Configured() {
		url, err := o.publisher.Publish(ctx, final, plan.TenantSlug())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			o.logger.Warn().Err(err).Str("option", plan.OptionKey).Msg("publish failed after final image")
			if err := send(StreamEvent{Type: EventQRError, Message: domain.Detail(err)}); err != nil {
				return errors.Unwrap(err)
			}
		}
		entry.imageURL = url
	}

	if err := send(StreamEvent{Type: EventDone}); err != nil {
		return errors.Unwrap(err)
	}
	o.recordUsage(ctx, plan, entry)
	return nil
}

func (o *Orchestrator) publishWithQR(ctx context.Context, data []byte, tenantSlug string) (string, []byte, error) {
	url, err := o.publisher.Publish(ctx, data, tenantSlug)
	if err != nil {
		return "", nil, err
	}
	png, err := o.publisher.MakeQRCode(url)
	if err != nil {
		return "", nil, fmt.Errorf("render qr code: %w", err)
	}
	return url, png, nil
}
