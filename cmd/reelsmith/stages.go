package main

import (
	"log/slog"

	"reelsmith/internal/assets"
	"reelsmith/internal/authoring"
	"reelsmith/internal/config"
	"reelsmith/internal/content"
	"reelsmith/internal/delivery"
	"reelsmith/internal/ingest"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/llm"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/workflow"
)

// newContentService wires the HTTP collaborators behind the content facade.
func newContentService(cfg *config.Config, logger *slog.Logger) *content.Service {
	llmCfg := cfg.GetLLM()
	text := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
	images := imagegen.NewClient(imagegen.Config{
		APIKey:         cfg.Images.APIKey,
		BaseURL:        cfg.Images.BaseURL,
		Model:          cfg.Images.Model,
		Size:           cfg.Images.Size,
		TimeoutSeconds: cfg.Images.TimeoutSeconds,
	})
	voice := speech.NewClient(speech.Config{
		APIKey:             cfg.Speech.APIKey,
		SynthesisURL:       cfg.Speech.SynthesisURL,
		TranscriptionURL:   cfg.Speech.TranscriptionURL,
		Model:              cfg.Speech.Model,
		TranscriptionModel: cfg.Speech.TranscriptionModel,
		Voice:              cfg.Speech.Voice,
		ResponseFormat:     cfg.Speech.ResponseFormat,
		TimeoutSeconds:     cfg.Speech.TimeoutSeconds,
	})
	return content.NewService(text, images, voice, cfg.Images.Styles, logger)
}

// buildStageSet constructs one handler per pipeline state.
func buildStageSet(cfg *config.Config, svc *content.Service, logger *slog.Logger, opts ...delivery.Option) workflow.StageSet {
	runner := ffmpeg.NewRunner(cfg.FFmpegBinary(), cfg.Render.SampleRate)
	return workflow.StageSet{
		Transcriber:   ingest.NewTranscriber(cfg, svc, runner, nil, logger),
		Partitioner:   ingest.NewPartitioner(cfg, nil, logger),
		Images:        authoring.NewImageGenerator(cfg, svc, logger),
		ScriptWriter:  authoring.NewScriptWriter(cfg, svc, logger),
		VoiceProfiler: authoring.NewVoiceProfiler(cfg, svc, logger),
		Narrator:      authoring.NewNarrator(cfg, svc, runner, logger),
		Preloader:     delivery.NewPreloader(cfg, assets.FFmpegOpener{Runner: runner}, runner, logger),
		Renderer:      delivery.NewRenderer(cfg, logger, opts...),
	}
}
