package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/services"
)

// RequestIDHeader carries the correlation id to collaborator APIs.
const RequestIDHeader = "X-Request-ID"

// Request describes one POST to a collaborator API.
type Request struct {
	URL         string
	APIKey      string
	ContentType string
	Body        []byte
	Headers     map[string]string
}

// JSONRequest encodes payload as the body of a JSON POST.
func JSONRequest(endpoint, apiKey string, payload any) (Request, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("encode body: %w", err)
	}
	return Request{URL: endpoint, APIKey: apiKey, ContentType: "application/json", Body: encoded}, nil
}

// Response is the raw result of a successful POST.
type Response struct {
	ContentType string
	Body        []byte
}

// Post sends req once. Non-2xx responses come back as *StatusError.
func Post(ctx context.Context, client *http.Client, req Request) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(RequestIDHeader, requestID)
	for key, value := range req.Headers {
		if strings.TrimSpace(value) != "" {
			httpReq.Header.Set(key, value)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("http error (timeout=%s): %w", timeoutOf(client), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body (timeout=%s): %w", timeoutOf(client), err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return Response{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return Response{ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// NewHTTPClient returns a client with the given timeout in seconds, falling
// back to fallback when seconds is not positive.
func NewHTTPClient(seconds int, fallback time.Duration) *http.Client {
	timeout := fallback
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func timeoutOf(client *http.Client) time.Duration {
	if client == nil || client.Timeout <= 0 {
		return 0
	}
	return client.Timeout
}

// Snippet condenses a payload for error messages.
func Snippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
