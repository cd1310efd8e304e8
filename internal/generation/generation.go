// Package generation talks to third-party image edit APIs. Each provider is
// exposed through Client, in single-shot and streaming form.
package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoImage          = errors.New("generation: response carried no image")
	ErrIncompleteStream = errors.New("generation: stream ended without a completed image")
)

// Image is one input image. The first image of a request is the subject.
type Image struct {
	Data     []byte
	MIMEType string
}

// NewImage sniffs the content type of data. Unlike net/http the sniffer
// knows HEIC and AVIF, which phone cameras produce.
func NewImage(data []byte) Image {
	return Image{Data: data, MIMEType: mimetype.Detect(data).String()}
}

type Request struct {
	Prompt string
	Images []Image
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Image    []byte
	MIMEType string
	Model    string
	Usage    *Usage
}

type ChunkKind int

const (
	ChunkPartial ChunkKind = iota
	ChunkCompleted
)

func (k ChunkKind) String() string {
	if k == ChunkCompleted {
		return "completed"
	}
	return "partial"
}

// Payload is the normalized shape of an upstream image event. Providers fill
// whichever fields they carry; consumers go through PartialImage and
// FinalImage instead of reading fields directly.
type Payload struct {
	B64JSON         string
	Result          string
	PartialImageB64 string
	Image           string
	Data            []byte
}

type Chunk struct {
	Kind    ChunkKind
	Payload Payload
	Usage   *Usage
}

// Client is implemented by every provider. Stream calls fn for each chunk
// in arrival order and stops at the first error fn returns.
type Client interface {
	Model() string
	Generate(ctx context.Context, req Request) (*Result, error)
	Stream(ctx context.Context, req Request, fn func(Chunk) error) error
}

type extractor struct {
	name string
	get  func(Payload) string
}

func encoded(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

// finalExtractors is the fixed priority order for pulling the completed
// image out of a payload.
var finalExtractors = []extractor{
	{name: "b64_json", get: func(p Payload) string { return p.B64JSON }},
	{name: "result", get: func(p Payload) string { return p.Result }},
	{name: "image", get: func(p Payload) string { return p.Image }},
	{name: "partial_image_b64", get: func(p Payload) string { return p.PartialImageB64 }},
	{name: "data", get: func(p Payload) string { return encoded(p.Data) }},
}

var partialExtractors = []extractor{
	{name: "partial_image_b64", get: func(p Payload) string { return p.PartialImageB64 }},
	{name: "b64_json", get: func(p Payload) string { return p.B64JSON }},
	{name: "data", get: func(p Payload) string { return encoded(p.Data) }},
}

func extract(p Payload, chain []extractor) (string, string) {
	for _, e := range chain {
		if v := strings.TrimSpace(e.get(p)); v != "" {
			return v, e.name
		}
	}
	return "", ""
}

// FinalImage returns the base64 image of a completed payload and the name of
// the field it came from.
func FinalImage(p Payload) (string, string, error) {
	v, source := extract(p, finalExtractors)
	if v == "" {
		return "", "", ErrNoImage
	}
	return v, source, nil
}

// PartialImage returns the base64 preview carried by a partial payload, or
// an empty string.
func PartialImage(p Payload) string {
	v, _ := extract(p, partialExtractors)
	return v
}

// APIError is a non-success answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s, status %d)", e.Provider, msg, e.Code, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Provider, msg, e.Status)
}

// Retryable reports whether the failure is transient on the provider side.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

var contentPolicyCodes = map[string]struct{}{
	"moderation_blocked":        {},
	"content_policy_violation":  {},
	"safety":                    {},
	"image_safety":              {},
	"prohibited_content":        {},
	"image_prohibited_content":  {},
	"blocklist":                 {},
	"safety_filter_blocked":     {},
	"responsible_ai_violation":  {},
	"content_filter_triggered":  {},
	"content_moderation_failed": {},
}

// ContentPolicy reports a refusal by the provider's safety system.
func (e *APIError) ContentPolicy() bool {
	_, ok := contentPolicyCodes[strings.ToLower(e.Code)]
	return ok
}
