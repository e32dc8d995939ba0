package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelsmith/internal/config"
)

func clearAPIKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"REELSMITH_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY", "REELSMITH_NTFY_TOPIC"} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearAPIKeyEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "reelsmith", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "Videos", "reelsmith") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Render.Width != 720 || cfg.Render.Height != 1280 {
		t.Fatalf("unexpected canvas %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	if cfg.Render.SceneCount != 8 {
		t.Fatalf("expected 8 scenes, got %d", cfg.Render.SceneCount)
	}
	if cfg.TailPadding() != 1200*time.Millisecond {
		t.Fatalf("unexpected tail padding %s", cfg.TailPadding())
	}
	if cfg.LeadIn() != 500*time.Millisecond {
		t.Fatalf("unexpected lead-in %s", cfg.LeadIn())
	}
	if cfg.Offline() {
		t.Fatal("expected realtime pace by default")
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty LLM key, got %q", cfg.LLM.APIKey)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected binaries %q %q", cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearAPIKeyEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
staging_dir = "~/staging"
output_dir = "~/out"

[render]
fps = 24
pace = "OFFLINE"
asset_timeout_seconds = 5

[llm]
api_key = "file-key"

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StagingDir != filepath.Join(tempHome, "staging") {
		t.Fatalf("unexpected staging dir %q", cfg.Paths.StagingDir)
	}
	if cfg.Render.FPS != 24 {
		t.Fatalf("expected fps 24, got %d", cfg.Render.FPS)
	}
	if !cfg.Offline() {
		t.Fatal("expected offline pace after normalization")
	}
	if cfg.AssetTimeout() != 5*time.Second {
		t.Fatalf("unexpected asset timeout %s", cfg.AssetTimeout())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercase log format, got %q", cfg.Logging.Format)
	}
	if cfg.Images.APIKey != "file-key" || cfg.Speech.APIKey != "file-key" {
		t.Fatalf("expected image and speech keys to fall back to llm key, got %q %q", cfg.Images.APIKey, cfg.Speech.APIKey)
	}
	if cfg.Render.Width != 720 {
		t.Fatalf("expected unspecified fields to keep defaults, got width %d", cfg.Render.Width)
	}
}

func TestEnvAPIKeyFallback(t *testing.T) {
	clearAPIKeyEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.GetLLM().APIKey != "env-key" {
		t.Fatalf("expected GetLLM to carry env key, got %q", cfg.GetLLM().APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StagingDir, "reelsmith") {
		t.Fatalf("expected staging dir to contain reelsmith, got %q", cfg.Paths.StagingDir)
	}
	if cfg.Render.SceneCount != 8 {
		t.Fatalf("sample scene count = %d, want 8", cfg.Render.SceneCount)
	}
	if cfg.Speech.ResponseFormat != "pcm" {
		t.Fatalf("sample speech format = %q, want pcm", cfg.Speech.ResponseFormat)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"odd width", func(c *config.Config) { c.Render.Width = 721 }, "even"},
		{"zero fps", func(c *config.Config) { c.Render.FPS = 0 }, "render.fps"},
		{"low sample rate", func(c *config.Config) { c.Render.SampleRate = 4000 }, "render.sample_rate"},
		{"negative padding", func(c *config.Config) { c.Render.TailPaddingSeconds = -1 }, "tail_padding"},
		{"bad pace", func(c *config.Config) { c.Render.Pace = "turbo" }, "render.pace"},
		{"monitor offline", func(c *config.Config) {
			c.Render.Pace = config.PaceOffline
			c.Render.Monitor = true
		}, "render.monitor"},
		{"bad container", func(c *config.Config) { c.Render.Container = "gif" }, "render.container"},
		{"zero asset timeout", func(c *config.Config) { c.Render.AssetTimeoutSeconds = 0 }, "asset_timeout"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.StagingDir = t.TempDir()
			cfg.Paths.OutputDir = t.TempDir()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
