package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	geminiProviderName = "gemini"
	defaultGeminiModel = "gemini-3-pro-image-preview"
)

type GeminiOptions struct {
	APIKey      string
	Model       string
	AspectRatio string
	ImageSize   string
}

// GeminiClient sends the prompt and images as one multimodal turn and reads
// the inline image parts of the answer.
type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(opts.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  coalesce(opts.Model, defaultGeminiModel),
		config: geminiConfig(opts),
	}, nil
}

func geminiConfig(opts GeminiOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if opts.AspectRatio != "" || opts.ImageSize != "" {
		cfg.ImageConfig = &genai.ImageConfig{
			AspectRatio: opts.AspectRatio,
			ImageSize:   opts.ImageSize,
		}
	}
	return cfg
}

func (g *GeminiClient) Model() string { return g.model }

func (g *GeminiClient) Generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(req), g.config)
	if err != nil {
		return nil, geminiError(err)
	}
	blobs, err := geminiImages(resp)
	if err != nil {
		return nil, err
	}
	last := blobs[len(blobs)-1]
	return &Result{
		Image:    last.Data,
		MIMEType: coalesce(last.MIMEType, http.DetectContentType(last.Data)),
		Model:    g.model,
		Usage:    geminiUsage(resp),
	}, nil
}

// Stream forwards every image but the newest as a partial. The newest image
// seen when the upstream stream ends is the completed one.
func (g *GeminiClient) Stream(ctx context.Context, req Request, fn func(Chunk) error) error {
	var (
		pending *genai.Blob
		usage   *Usage
	)
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, geminiContents(req), g.config) {
		if err != nil {
			return geminiError(err)
		}
		if u := geminiUsage(resp); u != nil {
			usage = u
		}
		blobs, err := geminiImages(resp)
		if errors.Is(err, ErrNoImage) {
			continue
		}
		if err != nil {
			return err
		}
		for _, blob := range blobs {
			if pending != nil {
				if err := fn(Chunk{Kind: ChunkPartial, Payload: Payload{Data: pending.Data}}); err != nil {
					return err
				}
			}
			pending = blob
		}
	}
	if pending == nil {
		return ErrIncompleteStream
	}
	return fn(Chunk{Kind: ChunkCompleted, Payload: Payload{Data: pending.Data}, Usage: usage})
}

func geminiContents(req Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, coalesce(img.MIMEType, http.DetectContentType(img.Data))))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return []*genai.Content{{Role: "user", Parts: parts}}
}

var geminiBlockedReasons = map[string]struct{}{
	"SAFETY":                   {},
	"IMAGE_SAFETY":             {},
	"PROHIBITED_CONTENT":       {},
	"IMAGE_PROHIBITED_CONTENT": {},
	"BLOCKLIST":                {},
	"SPII":                     {},
}

// geminiImages returns the inline images of the first candidate. A refusal
// by the safety system is reported as a content policy APIError.
func geminiImages(resp *genai.GenerateContentResponse) ([]*genai.Blob, error) {
	if resp == nil {
		return nil, ErrNoImage
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &APIError{
			Provider: geminiProviderName,
			Status:   http.StatusUnprocessableEntity,
			Code:     strings.ToLower(string(resp.PromptFeedback.BlockReason)),
			Message:  coalesce(resp.PromptFeedback.BlockReasonMessage, "prompt blocked"),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, ErrNoImage
	}
	cand := resp.Candidates[0]
	var blobs []*genai.Blob
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				blobs = append(blobs, part.InlineData)
			}
		}
	}
	if len(blobs) == 0 {
		if _, blocked := geminiBlockedReasons[string(cand.FinishReason)]; blocked {
			return nil, &APIError{
				Provider: geminiProviderName,
				Status:   http.StatusUnprocessableEntity,
				Code:     strings.ToLower(string(cand.FinishReason)),
				Message:  coalesce(cand.FinishMessage, "image blocked by safety filters"),
			}
		}
		return nil, ErrNoImage
	}
	return blobs, nil
}

func geminiUsage(resp *genai.GenerateContentResponse) *Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	m := resp.UsageMetadata
	return &Usage{
		InputTokens:  int(m.PromptTokenCount),
		OutputTokens: int(m.CandidatesTokenCount),
		TotalTokens:  int(m.TotalTokenCount),
	}
}

func geminiError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider: geminiProviderName,
			Status:   apiErr.Code,
			Code:     strings.ToLower(apiErr.Status),
			Message:  apiErr.Message,
		}
	}
	return fmt.Errorf("gemini: %w", err)
}
