package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Render contains canvas, clock, mix, and recorder settings.
type Render struct {
	Width               int      `toml:"width"`
	Height              int      `toml:"height"`
	FPS                 int      `toml:"fps"`
	SampleRate          int      `toml:"sample_rate"`
	SceneCount          int      `toml:"scene_count"`
	VideoSegments       int      `toml:"video_segments"`
	TailPaddingSeconds  float64  `toml:"tail_padding_seconds"`
	LeadInSeconds       float64  `toml:"lead_in_seconds"`
	GrainDots           int      `toml:"grain_dots"`
	CaptionFontSize     float64  `toml:"caption_font_size"`
	AssetTimeoutSeconds int      `toml:"asset_timeout_seconds"`
	Pace                string   `toml:"pace"`
	Monitor             bool     `toml:"monitor"`
	Container           string   `toml:"container"`
	VideoCodecArgs      []string `toml:"video_codec_args"`
	AudioCodecArgs      []string `toml:"audio_codec_args"`
}

// LLM contains chat-completion settings used for scripts, scene
// descriptions, metadata, and voice profiles.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Images contains image generation settings. Styles are applied cyclically
// by scene position.
type Images struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	Size           string   `toml:"size"`
	Styles         []string `toml:"styles"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Speech contains speech synthesis and transcription settings.
type Speech struct {
	APIKey             string `toml:"api_key"`
	SynthesisURL       string `toml:"synthesis_url"`
	TranscriptionURL   string `toml:"transcription_url"`
	Model              string `toml:"model"`
	TranscriptionModel string `toml:"transcription_model"`
	Voice              string `toml:"voice"`
	ResponseFormat     string `toml:"response_format"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// FFmpeg names the external media binaries.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, and log directories
//   - Render: canvas size, frame rate, mix rate, scene layout, recorder args
//   - LLM: chat completions for scripts, descriptions, metadata, voice profiles
//   - Images: image generation endpoint and cyclic styles
//   - Speech: speech synthesis and transcription endpoints
//   - Notifications: ntfy push notification settings
//   - FFmpeg: external binary names
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Render        Render        `toml:"render"`
	LLM           LLM           `toml:"llm"`
	Images        Images        `toml:"images"`
	Speech        Speech        `toml:"speech"`
	Notifications Notifications `toml:"notifications"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staging, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for decoding and capture.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// AssetTimeout returns the bounded wait applied to each asset preload.
func (c *Config) AssetTimeout() time.Duration {
	return time.Duration(c.Render.AssetTimeoutSeconds) * time.Second
}

// LeadIn returns the delay between production start and narration start.
func (c *Config) LeadIn() time.Duration {
	return time.Duration(c.Render.LeadInSeconds * float64(time.Second))
}

// TailPadding returns the silence appended after the narration.
func (c *Config) TailPadding() time.Duration {
	return time.Duration(c.Render.TailPaddingSeconds * float64(time.Second))
}

// Offline reports whether renders run against a virtual clock.
func (c *Config) Offline() bool {
	return c.Render.Pace == PaceOffline
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved chat-completion connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
