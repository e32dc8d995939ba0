package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeLLM()
	c.normalizeImages()
	c.normalizeSpeech()
	c.normalizeNotifications()
	c.normalizeFFmpeg()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.Pace = strings.ToLower(strings.TrimSpace(c.Render.Pace))
	if c.Render.Pace == "" {
		c.Render.Pace = PaceRealtime
	}
	c.Render.Container = strings.ToLower(strings.TrimSpace(c.Render.Container))
	if c.Render.Container == "" {
		c.Render.Container = defaultContainer
	}
	if c.Render.SceneCount == 0 {
		c.Render.SceneCount = defaultSceneCount
	}
	if c.Render.VideoSegments == 0 {
		c.Render.VideoSegments = defaultVideoSegments
	}
	if c.Render.CaptionFontSize == 0 {
		c.Render.CaptionFontSize = defaultCaptionFontSize
	}
	if len(c.Render.VideoCodecArgs) == 0 {
		c.Render.VideoCodecArgs = append([]string(nil), defaultVideoCodecArgs...)
	}
	if len(c.Render.AudioCodecArgs) == 0 {
		c.Render.AudioCodecArgs = append([]string(nil), defaultAudioCodecArgs...)
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = apiKeyFromEnv()
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeImages() {
	c.Images.APIKey = strings.TrimSpace(c.Images.APIKey)
	if c.Images.APIKey == "" {
		c.Images.APIKey = c.LLM.APIKey
	}
	c.Images.BaseURL = strings.TrimSpace(c.Images.BaseURL)
	if c.Images.BaseURL == "" {
		c.Images.BaseURL = defaultImagesBaseURL
	}
	styles := make([]string, 0, len(c.Images.Styles))
	for _, style := range c.Images.Styles {
		if trimmed := strings.TrimSpace(style); trimmed != "" {
			styles = append(styles, trimmed)
		}
	}
	if len(styles) == 0 {
		styles = append(styles, defaultImageStyles...)
	}
	c.Images.Styles = styles
	if c.Images.TimeoutSeconds <= 0 {
		c.Images.TimeoutSeconds = defaultImagesTimeout
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.LLM.APIKey
	}
	c.Speech.SynthesisURL = strings.TrimSpace(c.Speech.SynthesisURL)
	if c.Speech.SynthesisURL == "" {
		c.Speech.SynthesisURL = defaultSynthesisURL
	}
	c.Speech.TranscriptionURL = strings.TrimSpace(c.Speech.TranscriptionURL)
	if c.Speech.TranscriptionURL == "" {
		c.Speech.TranscriptionURL = defaultTranscriptionURL
	}
	c.Speech.ResponseFormat = strings.ToLower(strings.TrimSpace(c.Speech.ResponseFormat))
	if c.Speech.ResponseFormat == "" {
		c.Speech.ResponseFormat = defaultSpeechFormat
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("REELSMITH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func apiKeyFromEnv() string {
	for _, name := range []string{"REELSMITH_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"} {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
