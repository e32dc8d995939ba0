package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	r := c.Render
	if r.Width <= 0 || r.Height <= 0 {
		return errors.New("render.width and render.height must be positive")
	}
	if r.Width%2 != 0 || r.Height%2 != 0 {
		return fmt.Errorf("render dimensions must be even for yuv420p output (got %dx%d)", r.Width, r.Height)
	}
	if r.FPS <= 0 || r.FPS > 120 {
		return errors.New("render.fps must be between 1 and 120")
	}
	if r.SampleRate < 8000 || r.SampleRate > 192000 {
		return errors.New("render.sample_rate must be between 8000 and 192000")
	}
	if r.SceneCount <= 0 {
		return errors.New("render.scene_count must be positive")
	}
	if r.VideoSegments <= 0 {
		return errors.New("render.video_segments must be positive")
	}
	if r.TailPaddingSeconds < 0 {
		return errors.New("render.tail_padding_seconds must not be negative")
	}
	if r.LeadInSeconds < 0 {
		return errors.New("render.lead_in_seconds must not be negative")
	}
	if r.GrainDots < 0 {
		return errors.New("render.grain_dots must not be negative")
	}
	if r.CaptionFontSize <= 0 {
		return errors.New("render.caption_font_size must be positive")
	}
	switch r.Pace {
	case PaceRealtime, PaceOffline:
	default:
		return fmt.Errorf("render.pace: unsupported value %q (want %q or %q)", r.Pace, PaceRealtime, PaceOffline)
	}
	if r.Monitor && r.Pace != PaceRealtime {
		return errors.New("render.monitor requires render.pace = \"realtime\"")
	}
	switch r.Container {
	case "mp4", "mov", "mkv", "webm":
	default:
		return fmt.Errorf("render.container: unsupported value %q", r.Container)
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	for key, value := range map[string]int{
		"render.asset_timeout_seconds":  c.Render.AssetTimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
