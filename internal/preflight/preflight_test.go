package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, 1<<62)
	if result.Passed {
		t.Fatal("expected failure for an impossible minimum")
	}
	if !strings.Contains(result.Detail, "need") {
		t.Fatalf("detail = %q", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for a missing path")
	}
}

func TestCheckEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good-key":
			w.WriteHeader(http.StatusMethodNotAllowed)
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		url    string
		key    string
		passed bool
	}{
		{name: "reachable", url: srv.URL, key: "good-key", passed: true},
		{name: "bad key", url: srv.URL, key: "bad-key"},
		{name: "server error", url: srv.URL, key: "broken"},
		{name: "missing url", url: "", key: "good-key"},
		{name: "missing key", url: srv.URL, key: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckEndpoint(context.Background(), "Images", tt.url, tt.key)
			if result.Passed != tt.passed {
				t.Fatalf("passed = %v, want %v (%s)", result.Passed, tt.passed, result.Detail)
			}
		})
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_OfflineCollaboratorsSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.LLM.APIKey = ""
	cfg.Images.APIKey = ""
	cfg.Speech.APIKey = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	// three directories, free space, ffmpeg, ffprobe
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if err := Error(results); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestRunAll_ReportsMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(),
		testsupport.WithAPIBase("http://127.0.0.1:1"))
	cfg.LLM.APIKey = ""
	cfg.Images.APIKey = ""
	cfg.Speech.APIKey = ""

	results := RunAll(context.Background(), cfg)
	failed := Failed(results)
	if len(failed) == 0 {
		t.Fatal("expected failures for directories that were never created")
	}
	if err := Error(results); err == nil || !strings.Contains(err.Error(), "Staging directory") {
		t.Fatalf("Error = %v", err)
	}
}

func TestRunAll_ChecksCollaborators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chat/completions" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithAPIBase(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	names := map[string]Result{}
	for _, r := range results {
		names[r.Name] = r
	}
	for _, name := range []string{"LLM", "Image generation", "Speech synthesis"} {
		r, ok := names[name]
		if !ok {
			t.Fatalf("missing %s check", name)
		}
		if !r.Passed {
			t.Fatalf("%s failed: %s", name, r.Detail)
		}
	}
}
