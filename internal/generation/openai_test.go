package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

var (
	subjectPNG   = []byte("\x89PNG\r\n\x1a\nsubject")
	referencePNG = []byte("\x89PNG\r\n\x1a\nreference")
)

type capturedForm struct {
	mu     sync.Mutex
	fields map[string]string
	images [][]byte
}

func captureForm(t *testing.T, r *http.Request, into *capturedForm) {
	t.Helper()
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		t.Errorf("ParseMultipartForm: %v", err)
		return
	}
	into.mu.Lock()
	defer into.mu.Unlock()
	into.fields = map[string]string{}
	for k, v := range r.MultipartForm.Value {
		into.fields[k] = v[0]
	}
	for _, fh := range r.MultipartForm.File["image[]"] {
		f, err := fh.Open()
		if err != nil {
			t.Errorf("open part: %v", err)
			return
		}
		b, _ := io.ReadAll(f)
		_ = f.Close()
		into.images = append(into.images, b)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var form capturedForm
	want := []byte("\x89PNG\r\n\x1a\nresult")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/edits" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		captureForm(t, r, &form)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[{"b64_json":%q}],"usage":{"input_tokens":10,"output_tokens":20,"total_tokens":30}}`,
			base64.StdEncoding.EncodeToString(want))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Quality: "medium"})
	if err != nil {
		t.Fatalf("NewOpenAIClient returned error: %v", err)
	}
	res, err := client.Generate(context.Background(), Request{
		Prompt: "make it studio",
		Images: []Image{NewImage(subjectPNG), NewImage(referencePNG)},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if string(res.Image) != string(want) {
		t.Fatalf("image = %q", res.Image)
	}
	if res.Usage == nil || res.Usage.TotalTokens != 30 {
		t.Fatalf("usage = %+v", res.Usage)
	}
	if res.Model != "gpt-image-1" {
		t.Fatalf("model = %q", res.Model)
	}
	if form.fields["prompt"] != "make it studio" || form.fields["quality"] != "medium" {
		t.Fatalf("fields = %v", form.fields)
	}
	if _, ok := form.fields["stream"]; ok {
		t.Fatal("stream must not be set for single-shot generation")
	}
	if len(form.images) != 2 || string(form.images[0]) != string(subjectPNG) || string(form.images[1]) != string(referencePNG) {
		t.Fatalf("images sent out of order: %q", form.images)
	}
}

func TestOpenAIGenerateMapsErrors(t *testing.T) {
	client, err := NewOpenAIClient(OpenAIOptions{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"Your request was rejected","type":"image_generation_user_error","code":"moderation_blocked"}}`)),
				Header:     make(http.Header),
			}, nil
		})},
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient returned error: %v", err)
	}
	_, err = client.Generate(context.Background(), Request{Prompt: "p", Images: []Image{NewImage(subjectPNG)}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || !apiErr.ContentPolicy() || apiErr.Retryable() {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestOpenAIStream(t *testing.T) {
	var form capturedForm
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captureForm(t, r, &form)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: image_edit.partial_image\n")
		fmt.Fprint(w, "data: {\"type\":\"image_edit.partial_image\",\"b64_json\":\"cDE=\",\"partial_image_index\":0}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: image_edit.partial_image\r\n")
		fmt.Fprint(w, "data: {\"type\":\"image_edit.partial_image\",\"b64_json\":\"cDI=\",\"partial_image_index\":1}\r\n\r\n")
		fmt.Fprint(w, "event: image_edit.completed\n")
		fmt.Fprint(w, "data: {\"type\":\"image_edit.completed\",\"b64_json\":\"ZmluYWw=\",\"usage\":{\"total_tokens\":7}}\n\n")
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, PartialImages: 5})
	if err != nil {
		t.Fatalf("NewOpenAIClient returned error: %v", err)
	}
	var chunks []Chunk
	err = client.Stream(context.Background(), Request{Prompt: "p", Images: []Image{NewImage(subjectPNG)}}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if form.fields["stream"] != "true" || form.fields["partial_images"] != "3" {
		t.Fatalf("fields = %v", form.fields)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if chunks[0].Kind != ChunkPartial || PartialImage(chunks[0].Payload) != "cDE=" {
		t.Fatalf("chunk 0 = %+v", chunks[0])
	}
	if chunks[1].Kind != ChunkPartial || PartialImage(chunks[1].Payload) != "cDI=" {
		t.Fatalf("chunk 1 = %+v", chunks[1])
	}
	final, source, err := FinalImage(chunks[2].Payload)
	if chunks[2].Kind != ChunkCompleted || err != nil || final != "ZmluYWw=" || source != "b64_json" {
		t.Fatalf("chunk 2 = %+v (%q, %q, %v)", chunks[2], final, source, err)
	}
	if chunks[2].Usage == nil || chunks[2].Usage.TotalTokens != 7 {
		t.Fatalf("usage = %+v", chunks[2].Usage)
	}
}

func TestOpenAIStreamWithoutCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"image_edit.partial_image\",\"b64_json\":\"cDE=\"}\n\n")
	}))
	defer srv.Close()

	client, _ := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL})
	err := client.Stream(context.Background(), Request{Prompt: "p", Images: []Image{NewImage(subjectPNG)}}, func(Chunk) error { return nil })
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("error = %v, want ErrIncompleteStream", err)
	}
}

func TestOpenAIStreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"image_edit.partial_image\",\"b64_json\":\"cDE=\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"message\":\"server overloaded\",\"code\":\"server_error\"}}\n\n")
	}))
	defer srv.Close()

	client, _ := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL})
	var partials int
	err := client.Stream(context.Background(), Request{Prompt: "p", Images: []Image{NewImage(subjectPNG)}}, func(c Chunk) error {
		partials++
		return nil
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "server overloaded" {
		t.Fatalf("error = %v", err)
	}
	if partials != 1 {
		t.Fatalf("partials = %d, want 1", partials)
	}
}

func TestOpenAIStreamStopsWhenCallbackFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"image_edit.partial_image\",\"b64_json\":\"cDE=\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"image_edit.partial_image\",\"b64_json\":\"cDI=\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"image_edit.completed\",\"b64_json\":\"Zg==\"}\n\n")
	}))
	defer srv.Close()

	client, _ := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL})
	gone := errors.New("client gone")
	calls := 0
	err := client.Stream(context.Background(), Request{Prompt: "p", Images: []Image{NewImage(subjectPNG)}}, func(Chunk) error {
		calls++
		return gone
	})
	if !errors.Is(err, gone) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIOptions{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
