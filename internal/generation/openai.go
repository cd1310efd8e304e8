package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

const (
	openAIProviderName   = "openai"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-image-1"
)

type OpenAIOptions struct {
	APIKey        string
	BaseURL       string
	Model         string
	Size          string
	Quality       string
	InputFidelity string
	// PartialImages is the number of previews requested when streaming (0-3).
	PartialImages int
	HTTPClient    *http.Client
}

// OpenAIClient calls the images/edits endpoint with every input image
// attached as image[].
type OpenAIClient struct {
	apiKey        string
	baseURL       string
	model         string
	size          string
	quality       string
	inputFidelity string
	partialImages int
	client        *http.Client
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Usage *openAIUsage `json:"usage"`
}

type openAIUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

func (u *openAIUsage) toUsage() *Usage {
	if u == nil {
		return nil
	}
	return &Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens, TotalTokens: u.TotalTokens}
}

type openAIErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type openAIStreamEvent struct {
	Type            string           `json:"type"`
	B64JSON         string           `json:"b64_json"`
	PartialImageB64 string           `json:"partial_image_b64"`
	Result          string           `json:"result"`
	Image           string           `json:"image"`
	Usage           *openAIUsage     `json:"usage"`
	Error           *openAIErrorBody `json:"error"`
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		// No client timeout: streams are bounded by the request context.
		client = &http.Client{}
	}
	partials := opts.PartialImages
	if partials < 0 {
		partials = 0
	}
	if partials > 3 {
		partials = 3
	}
	return &OpenAIClient{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		model:         coalesce(opts.Model, defaultOpenAIModel),
		size:          opts.Size,
		quality:       opts.Quality,
		inputFidelity: opts.InputFidelity,
		partialImages: partials,
		client:        client,
	}, nil
}

func (o *OpenAIClient) Model() string { return o.model }

func (o *OpenAIClient) Generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := o.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var out openAIImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, ErrNoImage
	}
	img, _, err := FinalImage(Payload{B64JSON: out.Data[0].B64JSON})
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(img)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image: %w", err)
	}
	return &Result{
		Image:    data,
		MIMEType: http.DetectContentType(data),
		Model:    o.model,
		Usage:    out.Usage.toUsage(),
	}, nil
}

func (o *OpenAIClient) Stream(ctx context.Context, req Request, fn func(Chunk) error) error {
	resp, err := o.post(ctx, req, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	completed := false
	err = readSSE(resp.Body, func(name string, data []byte) error {
		if completed {
			return nil
		}
		if string(data) == "[DONE]" {
			return nil
		}
		var ev openAIStreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("openai: decode stream event: %w", err)
		}
		if ev.Error != nil || ev.Type == "error" {
			return openAIError(resp.StatusCode, ev.Error)
		}
		kind := ev.Type
		if kind == "" {
			kind = name
		}
		payload := Payload{
			B64JSON:         ev.B64JSON,
			PartialImageB64: ev.PartialImageB64,
			Result:          ev.Result,
			Image:           ev.Image,
		}
		switch {
		case strings.HasSuffix(kind, ".partial_image"):
			return fn(Chunk{Kind: ChunkPartial, Payload: payload})
		case strings.HasSuffix(kind, ".completed"):
			completed = true
			return fn(Chunk{Kind: ChunkCompleted, Payload: payload, Usage: ev.Usage.toUsage()})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !completed {
		return ErrIncompleteStream
	}
	return nil
}

func (o *OpenAIClient) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if len(req.Images) == 0 {
		return nil, errors.New("openai: at least one image is required")
	}
	body, contentType, err := o.encodeForm(req, stream)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/images/edits", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer func() {
			_ = resp.Body.Close()
		}()
		var envelope struct {
			Error *openAIErrorBody `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &envelope)
		return nil, openAIError(resp.StatusCode, envelope.Error)
	}
	return resp, nil
}

func (o *OpenAIClient) encodeForm(req Request, stream bool) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"model", o.model},
		{"prompt", req.Prompt},
		{"n", "1"},
	}
	if o.size != "" {
		fields = append(fields, [2]string{"size", o.size})
	}
	if o.quality != "" {
		fields = append(fields, [2]string{"quality", o.quality})
	}
	if o.inputFidelity != "" {
		fields = append(fields, [2]string{"input_fidelity", o.inputFidelity})
	}
	if stream {
		fields = append(fields,
			[2]string{"stream", "true"},
			[2]string{"partial_images", strconv.Itoa(o.partialImages)},
		)
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("openai: write field %s: %w", f[0], err)
		}
	}
	for i, img := range req.Images {
		mimeType := coalesce(img.MIMEType, http.DetectContentType(img.Data))
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="image-%d%s"`, i, extensionOf(mimeType)))
		h.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("openai: create image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("openai: write image part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("openai: close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func openAIError(status int, body *openAIErrorBody) error {
	apiErr := &APIError{Provider: openAIProviderName, Status: status}
	if body != nil {
		apiErr.Message = body.Message
		if code, ok := body.Code.(string); ok {
			apiErr.Code = code
		}
		if apiErr.Code == "" {
			apiErr.Code = body.Type
		}
	}
	return apiErr
}

func extensionOf(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "jpeg"):
		return ".jpg"
	case strings.Contains(mimeType, "webp"):
		return ".webp"
	default:
		return ".png"
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
