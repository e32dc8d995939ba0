package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Renders default to a small offline canvas so tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.LLM.APIKey = "test"
	cfgVal.Images.APIKey = "test"
	cfgVal.Speech.APIKey = "test"
	cfgVal.Render.Pace = config.PaceOffline
	cfgVal.Render.Monitor = false
	cfgVal.Render.Width = 72
	cfgVal.Render.Height = 128
	cfgVal.Render.FPS = 10
	cfgVal.Render.SampleRate = 8000
	cfgVal.Render.GrainDots = 10
	cfgVal.Render.CaptionFontSize = 8

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIBase points every HTTP collaborator at url.
func WithAPIBase(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url + "/chat/completions"
		b.cfg.Images.BaseURL = url + "/images/generations"
		b.cfg.Speech.SynthesisURL = url + "/audio/speech"
		b.cfg.Speech.TranscriptionURL = url + "/audio/transcriptions"
	}
}

// WithRender lets a test adjust render settings in place.
func WithRender(fn func(*config.Render)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Render)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteStub(b.t, binDir, name, "exit 0")
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
