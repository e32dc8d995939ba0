package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/services"
)

func TestRetrierRetriesTransientStatus(t *testing.T) {
	var slept []time.Duration
	r := Retrier{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 3 * time.Second, Sleeper: func(d time.Duration) { slept = append(slept, d) }}
	calls := 0
	err := r.Do(context.Background(), "demo", func(context.Context) error {
		calls++
		if calls < 4 {
			return &StatusError{StatusCode: http.StatusBadGateway}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("slept %v, want %v", slept, want)
		}
	}
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := Retrier{MaxAttempts: 5, Sleeper: func(time.Duration) {}}
	calls := 0
	err := r.Do(context.Background(), "demo", func(context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusUnauthorized, Body: "nope"}
	})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRetrierHonoursRetryAfterAndExhaustion(t *testing.T) {
	var slept []time.Duration
	r := Retrier{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Second, Sleeper: func(d time.Duration) { slept = append(slept, d) }}
	err := r.Do(context.Background(), "demo", func(context.Context) error {
		return &StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 2 * time.Second}
	})
	if err == nil || !strings.Contains(err.Error(), "failed after 2 attempts") {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected Retry-After sleep, got %v", slept)
	}
}

func TestRetrierCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Retrier{MaxAttempts: 3}
	calls := 0
	err := r.Do(ctx, "demo", func(context.Context) error {
		calls++
		return &Retryable{Err: errors.New("empty")}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected immediate stop, calls=%d err=%v", calls, err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"", 0, false},
		{"3", 3 * time.Second, true},
		{"-1", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseRetryAfter(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRetryAfter(%q) = %v, %v; want %v, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPostSetsHeadersAndReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get(RequestIDHeader); got != "req-1" {
			t.Errorf("request id = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "reelsmith" {
			t.Errorf("x-title = %q", got)
		}
		w.Header().Set("Retry-After", "4")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	}))
	defer server.Close()

	ctx := services.WithRequestID(context.Background(), "req-1")
	req, err := JSONRequest(server.URL, "key", map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("JSONRequest: %v", err)
	}
	req.Headers = map[string]string{"X-Title": "reelsmith", "X-Empty": " "}
	_, err = Post(ctx, server.Client(), req)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Body != "busy" || statusErr.RetryAfter != 4*time.Second {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
	if !IsRetryable(err) {
		t.Fatal("503 should be retryable")
	}
}

func TestSnippetTruncates(t *testing.T) {
	if got := Snippet("  "); got != "<empty>" {
		t.Fatalf("Snippet(blank) = %q", got)
	}
	long := strings.Repeat("word ", 100)
	if got := Snippet(long); !strings.HasSuffix(got, "...") || len([]rune(got)) != 163 {
		t.Fatalf("unexpected snippet %q", got)
	}
}
