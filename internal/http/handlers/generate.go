package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"photobooth/internal/domain"
	"photobooth/internal/orchestrator"
)

type imageGeneratorRequest struct {
	Image     string `json:"image"`
	Option    string `json:"option"`
	EventSlug string `json:"eventSlug"`
	// event_slug is accepted for older kiosk builds.
	EventSlugSnake string `json:"event_slug"`
}

// ImageGenerator is the single-shot path: base64 upload in, published URL
// and optional QR code out.
func (a *App) ImageGenerator(w http.ResponseWriter, r *http.Request) {
	a.extendWriteDeadline(w, a.GenerationTimeout)
	var req imageGeneratorRequest
	if !a.decode(w, r, &req) {
		return
	}
	img, err := decodeImage(req.Image)
	if err != nil {
		a.error(w, r, domain.Invalid("invalid image encoding"))
		return
	}
	res, err := a.Orchestrator.Generate(r.Context(), orchestrator.Request{
		Image:     img,
		Option:    req.Option,
		EventSlug: firstNonEmpty(req.EventSlug, req.EventSlugSnake),
	})
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

// GenerateStream accepts a multipart upload and answers with a server-sent
// event stream. Validation errors are answered as JSON before the stream
// opens.
func (a *App) GenerateStream(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload())
	if err := r.ParseMultipartForm(a.maxUpload()); err != nil {
		a.error(w, r, domain.Invalid("invalid request body"))
		return
	}
	var img []byte
	if file, _, err := r.FormFile("image"); err == nil {
		img, err = io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			a.error(w, r, domain.Invalid("invalid request body"))
			return
		}
	}

	plan, err := a.Orchestrator.Prepare(r.Context(), orchestrator.Request{
		Image:     img,
		Option:    r.FormValue("option"),
		EventSlug: firstNonEmpty(r.FormValue("eventSlug"), r.FormValue("event_slug")),
	})
	if err != nil {
		a.error(w, r, err)
		return
	}

	sink := newSSESink(w)
	if err := a.Orchestrator.Stream(r.Context(), plan, sink); err != nil {
		a.Logger.Warn().Err(err).Str("option", plan.OptionKey).Str("event", plan.TenantSlug()).Msg("stream ended with error")
	}
}

type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSESink(w http.ResponseWriter) *sseSink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	rc := http.NewResponseController(w)
	// Generation routinely outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()
	return &sseSink{w: w, rc: rc}
}

func (s *sseSink) Send(ev orchestrator.StreamEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
