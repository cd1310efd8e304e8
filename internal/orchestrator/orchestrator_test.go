package orchestrator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth/internal/catalog"
	"photobooth/internal/domain"
	"photobooth/internal/generation"
	"photobooth/internal/publish"
)

// onePixelPNG is a complete 1x1 transparent PNG.
var onePixelPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

var generatedPNG = append([]byte("\x89PNG\r\n\x1a\n"), []byte("generated")...)

type stubGenerator struct {
	mu          sync.Mutex
	calls       int
	requests    []generation.Request
	chunks      []generation.Chunk
	streamErr   error
	block       bool
	result      *generation.Result
	generateErr error
}

func (s *stubGenerator) Model() string { return "stub-model" }

func (s *stubGenerator) record(req generation.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.requests = append(s.requests, req)
}

func (s *stubGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	s.record(req)
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return s.result, nil
}

func (s *stubGenerator) Stream(ctx context.Context, req generation.Request, fn func(generation.Chunk) error) error {
	s.record(req)
	for _, c := range s.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.streamErr
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubGenerator) lastRequest() generation.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type stubPublisher struct {
	mu         sync.Mutex
	configured bool
	publishErr error
	published  [][]byte
	slugs      []string
	qrUploads  int
}

func (p *stubPublisher) Configured() bool { return p.configured }

func (p *stubPublisher) Publish(_ context.Context, data []byte, slug string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return "", p.publishErr
	}
	p.published = append(p.published, data)
	p.slugs = append(p.slugs, slug)
	return "https://cdn.example/img.png", nil
}

func (p *stubPublisher) PublishQRCode(_ context.Context, png []byte, slug string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.qrUploads++
	return "https://cdn.example/qr.png", nil
}

func (p *stubPublisher) MakeQRCode(url string) ([]byte, error) {
	return []byte("qr:" + url), nil
}

func (p *stubPublisher) publishCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type stubTenants struct {
	mu      sync.Mutex
	event   *domain.Event
	prompt  *domain.EventPrompt
	err     error
	records []domain.GeneratedImage
}

func (s *stubTenants) ActivePrompt(_ context.Context, slug, key string) (*domain.Event, *domain.EventPrompt, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if s.event == nil || s.event.Slug != slug || s.prompt.OptionKey != key {
		return nil, nil, domain.NotFound("Prompt not found")
	}
	return s.event, s.prompt, nil
}

func (s *stubTenants) RecordUsage(_ context.Context, rec domain.GeneratedImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

type recordingSink struct {
	events []StreamEvent
	failAt int
	onSend func(StreamEvent)
}

func (r *recordingSink) Send(ev StreamEvent) error {
	if r.failAt > 0 && len(r.events)+1 == r.failAt {
		return errors.New("broken pipe")
	}
	r.events = append(r.events, ev)
	if r.onSend != nil {
		r.onSend(ev)
	}
	return nil
}

func (r *recordingSink) types() []string {
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ref1.png"), []byte("REF-ONE"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ref2.png"), []byte("REF-TWO"), 0o644))
	return catalog.Load([]catalog.Definition{
		{Key: "studio", Prompt: "studio portrait", References: []string{"ref1.png", "ref2.png"}},
		{Key: "ghibli", Prompt: "ghibli scene"},
	}, dir, zerolog.Nop())
}

func liveTenant() *stubTenants {
	return &stubTenants{
		event:  &domain.Event{ID: "ev-1", Slug: "expo", IsActive: true},
		prompt: &domain.EventPrompt{ID: "pr-1", EventID: "ev-1", OptionKey: "studio", PromptText: "expo studio prompt", IsActive: true},
	}
}

func newTestOrchestrator(t *testing.T, gen *stubGenerator, pub Publisher, tenants Tenants, qr bool) *Orchestrator {
	t.Helper()
	o := New(testCatalog(t), gen, pub, Options{
		Tenants:      tenants,
		QREnabled:    qr,
		CostPerImage: 0.04,
		Logger:       zerolog.Nop(),
	})
	if o.usage != nil {
		o.usage.run = func(_ context.Context, f func()) { f() }
	}
	return o
}

func partial(s string) generation.Chunk {
	return generation.Chunk{Kind: generation.ChunkPartial, Payload: generation.Payload{PartialImageB64: s}}
}

func completed(data []byte) generation.Chunk {
	return generation.Chunk{Kind: generation.ChunkCompleted, Payload: generation.Payload{B64JSON: base64.StdEncoding.EncodeToString(data)}}
}

func TestPrepareValidation(t *testing.T) {
	gen := &stubGenerator{}
	o := newTestOrchestrator(t, gen, &stubPublisher{configured: true}, nil, true)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty image", Request{Option: "studio"}},
		{"missing option", Request{Image: onePixelPNG}},
		{"blank option", Request{Image: onePixelPNG, Option: "  "}},
		{"not an image", Request{Image: []byte("hello there"), Option: "studio"}},
		{"unknown option", Request{Image: onePixelPNG, Option: "cyberpunk"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.Prepare(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
			assert.Equal(t, http.StatusBadRequest, domain.HTTPStatus(err))
		})
	}

	_, err := o.Generate(context.Background(), Request{Image: onePixelPNG, Option: "cyberpunk"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, 0, gen.callCount())
}

func TestPrepareAcceptsPhoneCameraFormats(t *testing.T) {
	o := newTestOrchestrator(t, &stubGenerator{}, &stubPublisher{}, nil, false)
	heic := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypheic\x00\x00\x00\x00mif1heic")...)

	plan, err := o.Prepare(context.Background(), Request{Image: heic, Option: "studio"})
	require.NoError(t, err)
	assert.Equal(t, "image/heic", plan.Images[0].MIMEType)
}

func TestPrepareCatalogAppendsReferencesInOrder(t *testing.T) {
	o := newTestOrchestrator(t, &stubGenerator{}, &stubPublisher{}, nil, false)

	plan, err := o.Prepare(context.Background(), Request{Image: onePixelPNG, Option: "studio", EventSlug: "expo"})
	require.NoError(t, err)
	assert.Equal(t, "studio portrait", plan.Prompt)
	require.Len(t, plan.Images, 3)
	assert.Equal(t, onePixelPNG, plan.Images[0].Data)
	assert.Equal(t, "image/png", plan.Images[0].MIMEType)
	assert.Equal(t, []byte("REF-ONE"), plan.Images[1].Data)
	assert.Equal(t, []byte("REF-TWO"), plan.Images[2].Data)
	assert.Nil(t, plan.Event)

	textOnly, err := o.Prepare(context.Background(), Request{Image: onePixelPNG, Option: "ghibli"})
	require.NoError(t, err)
	assert.Len(t, textOnly.Images, 1)
}

func TestPrepareUsesActiveTenantPromptVerbatim(t *testing.T) {
	o := newTestOrchestrator(t, &stubGenerator{}, &stubPublisher{}, liveTenant(), false)

	plan, err := o.Prepare(context.Background(), Request{Image: onePixelPNG, Option: "studio", EventSlug: "expo"})
	require.NoError(t, err)
	assert.Equal(t, "expo studio prompt", plan.Prompt)
	require.Len(t, plan.Images, 1)
	assert.Equal(t, onePixelPNG, plan.Images[0].Data)
	assert.Equal(t, "expo", plan.TenantSlug())
	assert.Equal(t, "pr-1", plan.EventPrompt.ID)
}

func TestPrepareFallsBackToCatalog(t *testing.T) {
	base := newTestOrchestrator(t, &stubGenerator{}, &stubPublisher{}, nil, false)
	want, err := base.Prepare(context.Background(), Request{Image: onePixelPNG, Option: "studio"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		tenants *stubTenants
		slug    string
	}{
		{"inactive event", &stubTenants{err: domain.NotFound("event is not active")}, "expo"},
		{"no matching prompt", liveTenant(), "other-event"},
		{"lookup failure", &stubTenants{err: errors.New("connection refused")}, "expo"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrchestrator(t, &stubGenerator{}, &stubPublisher{}, tc.tenants, false)
			got, err := o.Prepare(context.Background(), Request{Image: onePixelPNG, Option: "studio", EventSlug: tc.slug})
			require.NoError(t, err)
			assert.Equal(t, want.Prompt, got.Prompt)
			assert.Equal(t, want.Images, got.Images)
			assert.Nil(t, got.Event)
		})
	}
}

func streamPlan(t *testing.T, o *Orchestrator, slug string) *Plan {
	t.Helper()
	plan, err := o.Prepare(context.Background(), Request{Image: onePixelPNG, Option: "studio", EventSlug: slug})
	require.NoError(t, err)
	return plan
}

func TestStreamEventOrder(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{
		partial("p1"),
		partial("p2"),
		completed(generatedPNG),
		completed([]byte("late duplicate")),
		partial("late partial"),
	}}
	pub := &stubPublisher{configured: true}
	o := newTestOrchestrator(t, gen, pub, nil, true)
	sink := &recordingSink{}

	require.NoError(t, o.Stream(context.Background(), streamPlan(t, o, ""), sink))

	assert.Equal(t, []string{EventPartial, EventPartial, EventFinal, EventQRCode, EventDone}, sink.types())
	assert.Equal(t, "p1", sink.events[0].Image)
	assert.Equal(t, "p2", sink.events[1].Image)
	assert.Equal(t, base64.StdEncoding.EncodeToString(generatedPNG), sink.events[2].Image)
	assert.Equal(t, "https://cdn.example/img.png", sink.events[3].URL)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("qr:https://cdn.example/img.png")), sink.events[3].Image)
	require.Equal(t, 1, pub.publishCount())
	assert.Equal(t, generatedPNG, pub.published[0])
}

func TestStreamPublishFailureBecomesQRError(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{partial("p1"), completed(generatedPNG)}}
	pub := &stubPublisher{configured: true, publishErr: domain.StorageUnavailable(errors.New("bucket gone"))}
	o := newTestOrchestrator(t, gen, pub, nil, true)
	sink := &recordingSink{}

	require.NoError(t, o.Stream(context.Background(), streamPlan(t, o, ""), sink))
	assert.Equal(t, []string{EventPartial, EventFinal, EventQRError, EventDone}, sink.types())
	assert.Contains(t, sink.events[2].Message, "bucket gone")
}

func TestStreamUnconfiguredStorageBecomesQRError(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{completed(generatedPNG)}}
	pub := publish.New(nil, publish.Options{})
	o := newTestOrchestrator(t, gen, pub, nil, true)
	sink := &recordingSink{}

	require.NoError(t, o.Stream(context.Background(), streamPlan(t, o, ""), sink))
	assert.Equal(t, []string{EventFinal, EventQRError, EventDone}, sink.types())
}

func TestStreamWithoutQRStillPublishes(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{completed(generatedPNG)}}
	pub := &stubPublisher{configured: true}
	tenants := liveTenant()
	o := newTestOrchestrator(t, gen, pub, tenants, false)
	sink := &recordingSink{}

	require.NoError(t, o.Stream(context.Background(), streamPlan(t, o, "expo"), sink))
	assert.Equal(t, []string{EventFinal, EventDone}, sink.types())
	assert.Equal(t, 1, pub.publishCount())
	assert.Equal(t, []string{"expo"}, pub.slugs)
	require.Len(t, tenants.records, 1)
	assert.Equal(t, "https://cdn.example/img.png", tenants.records[0].GeneratedImageURL)
	assert.Nil(t, tenants.records[0].QRCodeURL)
}

func TestStreamWithoutQRReportsPublishFailure(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{completed(generatedPNG)}}
	pub := &stubPublisher{configured: true, publishErr: domain.StorageUnavailable(errors.New("bucket gone"))}
	o := newTestOrchestrator(t, gen, pub, nil, false)
	sink := &recordingSink{}

	require.NoError(t, o.Stream(context.Background(), streamPlan(t, o, ""), sink))
	assert.Equal(t, []string{EventFinal, EventQRError, EventDone}, sink.types())
	assert.Contains(t, sink.events[1].Message, "bucket gone")
	assert.Equal(t, 0, pub.publishCount())
}

func TestStreamUpstreamErrorAfterPartial(t *testing.T) {
	gen := &stubGenerator{
		chunks:    []generation.Chunk{partial("p1")},
		streamErr: &generation.APIError{Provider: "openai", Status: 500, Message: "server exploded"},
	}
	pub := &stubPublisher{configured: true}
	o := newTestOrchestrator(t, gen, pub, nil, true)
	sink := &recordingSink{}

	err := o.Stream(context.Background(), streamPlan(t, o, ""), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, []string{EventPartial, EventError}, sink.types())
	assert.Equal(t, "server exploded", sink.events[1].Message)
	assert.Equal(t, 0, pub.publishCount())
}

func TestStreamMissingFinalIsError(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{
		partial("p1"),
		{Kind: generation.ChunkCompleted},
	}}
	o := newTestOrchestrator(t, gen, &stubPublisher{configured: true}, nil, true)
	sink := &recordingSink{}

	require.Error(t, o.Stream(context.Background(), streamPlan(t, o, ""), sink))
	assert.Equal(t, []string{EventPartial, EventError}, sink.types())
}

func TestStreamStopsWhenClientGoesAway(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{partial("p1"), partial("p2"), completed(generatedPNG)}}
	pub := &stubPublisher{configured: true}
	tenants := liveTenant()
	o := newTestOrchestrator(t, gen, pub, tenants, true)
	sink := &recordingSink{failAt: 2}

	err := o.Stream(context.Background(), streamPlan(t, o, "expo"), sink)
	require.Error(t, err)
	assert.Equal(t, []string{EventPartial}, sink.types())
	assert.Equal(t, 0, pub.publishCount())
	assert.Empty(t, tenants.records)
}

func TestStreamCancelledAfterFinalPublishesNothing(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{completed(generatedPNG)}}
	pub := &stubPublisher{configured: true}
	o := newTestOrchestrator(t, gen, pub, nil, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{onSend: func(ev StreamEvent) {
		if ev.Type == EventFinal {
			cancel()
		}
	}}

	err := o.Stream(ctx, streamPlan(t, o, ""), sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{EventFinal}, sink.types())
	assert.Equal(t, 0, pub.publishCount())
}

func TestStreamTimeout(t *testing.T) {
	gen := &stubGenerator{chunks: []generation.Chunk{partial("p1")}, block: true}
	o := newTestOrchestrator(t, gen, &stubPublisher{configured: true}, nil, true)
	o.timeout = 20 * time.Millisecond
	sink := &recordingSink{}

	err := o.Stream(context.Background(), streamPlan(t, o, ""), sink)
	require.Error(t, err)
	assert.Equal(t, []string{EventPartial, EventError}, sink.types())
	assert.Equal(t, "image generation timed out", sink.events[1].Message)
}

type memoryObjectStore struct {
	mu   sync.Mutex
	keys []string
}

func (m *memoryObjectStore) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return "https://stub-storage/" + key, nil
}

func TestGenerateEndToEnd(t *testing.T) {
	for _, qr := range []bool{true, false} {
		gen := &stubGenerator{result: &generation.Result{Image: generatedPNG, MIMEType: "image/png", Model: "gpt-image-1"}}
		store := &memoryObjectStore{}
		pub := publish.New(store, publish.Options{KeyPrefix: "booth"})
		o := newTestOrchestrator(t, gen, pub, nil, qr)

		res, err := o.Generate(context.Background(), Request{Image: onePixelPNG, Option: "studio"})
		require.NoError(t, err)
		require.Len(t, store.keys, 1)
		assert.Equal(t, "https://stub-storage/"+store.keys[0], res.ImageURL)

		if !qr {
			assert.Nil(t, res.QRCode)
			continue
		}
		require.NotNil(t, res.QRCode)
		png, err := base64.StdEncoding.DecodeString(*res.QRCode)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
		want, err := publish.MakeQRCode(res.ImageURL, publish.DefaultQRSize)
		require.NoError(t, err)
		assert.Equal(t, want, png)

		req := gen.lastRequest()
		assert.Equal(t, "studio portrait", req.Prompt)
		assert.Len(t, req.Images, 3)
	}
}

func TestGenerateRequiresStorageBeforeCallingUpstream(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Image: generatedPNG}}
	o := newTestOrchestrator(t, gen, &stubPublisher{configured: false}, nil, true)

	_, err := o.Generate(context.Background(), Request{Image: onePixelPNG, Option: "studio"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, domain.HTTPStatus(err))
	assert.Equal(t, 0, gen.callCount())
}

func TestGenerateFailsWhenPublishFails(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Image: generatedPNG}}
	pub := &stubPublisher{configured: true, publishErr: domain.StorageUnavailable(errors.New("denied"))}
	o := newTestOrchestrator(t, gen, pub, nil, true)

	_, err := o.Generate(context.Background(), Request{Image: onePixelPNG, Option: "studio"})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestGenerateMapsUpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"content policy", &generation.APIError{Provider: "openai", Status: 400, Code: "moderation_blocked", Message: "rejected"}, http.StatusUnprocessableEntity, "rejected"},
		{"rate limited", &generation.APIError{Provider: "openai", Status: 429, Message: "slow down"}, http.StatusTooManyRequests, "slow down"},
		{"server error", &generation.APIError{Provider: "gemini", Status: 503, Message: "overloaded"}, http.StatusInternalServerError, "overloaded"},
		{"transport", errors.New("connection reset"), http.StatusInternalServerError, "connection reset"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "image generation timed out"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &stubGenerator{generateErr: tc.err}
			pub := &stubPublisher{configured: true}
			o := newTestOrchestrator(t, gen, pub, nil, true)

			_, err := o.Generate(context.Background(), Request{Image: onePixelPNG, Option: "studio"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrGenerationFailed)
			assert.Equal(t, tc.status, domain.HTTPStatus(err))
			assert.Equal(t, tc.detail, domain.Detail(err))
			assert.Equal(t, 0, pub.publishCount())
		})
	}
}

func TestGenerateRecordsUsageForTenant(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{
		Image: generatedPNG,
		Model: "gpt-image-1",
		Usage: &generation.Usage{TotalTokens: 1500},
	}}
	pub := &stubPublisher{configured: true}
	tenants := liveTenant()
	o := newTestOrchestrator(t, gen, pub, tenants, true)

	_, err := o.Generate(context.Background(), Request{Image: onePixelPNG, Option: "studio", EventSlug: "expo"})
	require.NoError(t, err)

	require.Len(t, tenants.records, 1)
	rec := tenants.records[0]
	assert.Equal(t, "ev-1", rec.EventID)
	require.NotNil(t, rec.PromptID)
	assert.Equal(t, "pr-1", *rec.PromptID)
	assert.Equal(t, "gpt-image-1", rec.ModelUsed)
	require.NotNil(t, rec.QRCodeURL)
	assert.Equal(t, "https://cdn.example/qr.png", *rec.QRCodeURL)
	require.NotNil(t, rec.TokensUsed)
	assert.Equal(t, 1500, *rec.TokensUsed)
	require.NotNil(t, rec.EstimatedCost)
	assert.InDelta(t, 0.04, *rec.EstimatedCost, 1e-9)
	assert.Equal(t, []string{"expo"}, pub.slugs)

	// catalog requests are not logged
	_, err = o.Generate(context.Background(), Request{Image: onePixelPNG, Option: "ghibli", EventSlug: "expo"})
	require.NoError(t, err)
	assert.Len(t, tenants.records, 1)
}
