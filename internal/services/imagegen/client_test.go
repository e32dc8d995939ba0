package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelsmith/internal/services/apiclient"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestGenerateReturnsFirstImagePart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "blue ink on paper" || req.N != 1 || req.Size != "1024x1536" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []any{
				map[string]any{"b64_json": ""},
				map[string]any{"b64_json": base64.StdEncoding.EncodeToString(pngHeader)},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Size: "1024x1536"})
	img, err := client.Generate(context.Background(), " blue ink on paper ")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(img.Data) != string(pngHeader) {
		t.Fatalf("unexpected data %q", img.Data)
	}
	if img.MimeType != "image/png" || img.Extension() != ".png" {
		t.Fatalf("unexpected mime %q", img.MimeType)
	}
}

func TestGenerateWithoutImagePartFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{map[string]any{"revised_prompt": "x"}}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := client.Generate(context.Background(), "prompt"); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output_format": "jpeg",
			"data":          []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("jpg"))}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL},
		WithRetrier(apiclient.Retrier{MaxAttempts: 3, Sleeper: func(time.Duration) {}}))
	img, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if calls != 2 || img.Extension() != ".jpg" {
		t.Fatalf("calls=%d ext=%s", calls, img.Extension())
	}
}

func TestGenerateValidatesInput(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Generate(context.Background(), " "); err == nil {
		t.Fatal("expected prompt error")
	}
	if _, err := client.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected api key error")
	}
}
