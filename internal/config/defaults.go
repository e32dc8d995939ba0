package config

const (
	// PaceRealtime drives the render loop from the wall clock.
	PaceRealtime = "realtime"
	// PaceOffline drives the render loop from a virtual clock, one frame per tick.
	PaceOffline = "offline"
)

const (
	defaultConfigPath          = "~/.config/reelsmith/config.toml"
	defaultStagingDir          = "~/.local/share/reelsmith/staging"
	defaultOutputDir           = "~/Videos/reelsmith"
	defaultLogDir              = "~/.local/share/reelsmith/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultWidth               = 720
	defaultHeight              = 1280
	defaultFPS                 = 30
	defaultSampleRate          = 48000
	defaultSceneCount          = 8
	defaultVideoSegments       = 4
	defaultTailPaddingSeconds  = 1.2
	defaultLeadInSeconds       = 0.5
	defaultGrainDots           = 1200
	defaultCaptionFontSize     = 52
	defaultAssetTimeoutSeconds = 30
	defaultContainer           = "mp4"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-2.5-flash"
	defaultLLMReferer          = "https://github.com/reelsmith/reelsmith"
	defaultLLMTitle            = "reelsmith"
	defaultLLMTimeoutSeconds   = 60
	defaultImagesBaseURL       = "https://api.openai.com/v1/images/generations"
	defaultImagesModel         = "gpt-image-1"
	defaultImagesSize          = "1024x1536"
	defaultImagesTimeout       = 120
	defaultSynthesisURL        = "https://api.openai.com/v1/audio/speech"
	defaultTranscriptionURL    = "https://api.openai.com/v1/audio/transcriptions"
	defaultSpeechModel         = "gpt-4o-mini-tts"
	defaultTranscriptionModel  = "whisper-1"
	defaultSpeechVoice         = "onyx"
	defaultSpeechFormat        = "pcm"
	defaultSpeechTimeout       = 120
	defaultNotifyTimeout       = 10
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
)

var (
	defaultVideoCodecArgs = []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "20", "-pix_fmt", "yuv420p"}
	defaultAudioCodecArgs = []string{"-c:a", "aac", "-b:a", "192k"}
	defaultImageStyles    = []string{
		"cinematic photograph, shallow depth of field, moody natural light",
		"macro photograph, rich texture, soft diffuse light",
		"documentary still, muted film colours, 35mm grain",
	}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Render: Render{
			Width:               defaultWidth,
			Height:              defaultHeight,
			FPS:                 defaultFPS,
			SampleRate:          defaultSampleRate,
			SceneCount:          defaultSceneCount,
			VideoSegments:       defaultVideoSegments,
			TailPaddingSeconds:  defaultTailPaddingSeconds,
			LeadInSeconds:       defaultLeadInSeconds,
			GrainDots:           defaultGrainDots,
			CaptionFontSize:     defaultCaptionFontSize,
			AssetTimeoutSeconds: defaultAssetTimeoutSeconds,
			Pace:                PaceRealtime,
			Container:           defaultContainer,
			VideoCodecArgs:      append([]string(nil), defaultVideoCodecArgs...),
			AudioCodecArgs:      append([]string(nil), defaultAudioCodecArgs...),
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Images: Images{
			BaseURL:        defaultImagesBaseURL,
			Model:          defaultImagesModel,
			Size:           defaultImagesSize,
			Styles:         append([]string(nil), defaultImageStyles...),
			TimeoutSeconds: defaultImagesTimeout,
		},
		Speech: Speech{
			SynthesisURL:       defaultSynthesisURL,
			TranscriptionURL:   defaultTranscriptionURL,
			Model:              defaultSpeechModel,
			TranscriptionModel: defaultTranscriptionModel,
			Voice:              defaultSpeechVoice,
			ResponseFormat:     defaultSpeechFormat,
			TimeoutSeconds:     defaultSpeechTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Errors:         true,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
