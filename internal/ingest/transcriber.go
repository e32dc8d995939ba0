package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const transcribingStage = "transcribing"

// Transcriber turns uploaded narration, or the soundtrack of an uploaded
// clip, into text. Uploaded narration also becomes the run's narration
// payload so no speech is synthesized later.
type Transcriber struct {
	cfg       *config.Config
	speech    Speech
	extractor AudioExtractor
	probe     Prober
	logger    *slog.Logger
}

// NewTranscriber constructs the transcribing stage handler.
func NewTranscriber(cfg *config.Config, speech Speech, extractor AudioExtractor, probe Prober, logger *slog.Logger) *Transcriber {
	if probe == nil {
		probe = defaultProbe
	}
	return &Transcriber{
		cfg:       cfg,
		speech:    speech,
		extractor: extractor,
		probe:     probe,
		logger:    logger,
	}
}

// SetLogger swaps in the per-run stage logger.
func (t *Transcriber) SetLogger(logger *slog.Logger) {
	t.logger = logger
}

func (t *Transcriber) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Transcribing", "Preparing transcription", 0)
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(t.logger, "transcriber"))
	switch {
	case run.HasNarration():
		return t.transcribeNarration(ctx, logger, run)
	case run.HasVideo() && t.extractor != nil:
		return t.transcribeClip(ctx, logger, run)
	default:
		logger.Info("nothing to transcribe", logging.String(logging.FieldEventType, "stage_noop"))
		run.SetProgressComplete("Transcribing", "No uploaded audio to transcribe")
		return nil
	}
}

func (t *Transcriber) transcribeNarration(ctx context.Context, logger *slog.Logger, run *production.Run) error {
	path := run.Inputs.NarrationPath
	payload, err := stage.ReadInput(transcribingStage, "narration", path)
	if err != nil {
		return err
	}
	run.SetProgress("Transcribing", "Transcribing uploaded narration", 20)
	text, err := t.speech.Transcribe(ctx, payload, stage.MimeType(path), filepath.Base(path))
	if err != nil {
		return err
	}
	run.NarrationPayload = payload
	run.Transcript = strings.TrimSpace(text)
	logger.Info("narration transcribed",
		logging.String("source_file", path),
		logging.Int("transcript_chars", len(run.Transcript)),
	)
	run.SetProgressComplete("Transcribing", "Narration transcribed")
	return nil
}

func (t *Transcriber) transcribeClip(ctx context.Context, logger *slog.Logger, run *production.Run) error {
	path := run.Inputs.VideoPath
	probe, err := t.probe(ctx, t.cfg.FFprobeBinary(), path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, transcribingStage, "probe clip", filepath.Base(path), err)
	}
	if probe.AudioStreamCount() == 0 {
		logger.Info("uploaded clip has no audio; skipping transcription",
			logging.String(logging.FieldEventType, "stage_noop"),
			logging.String("source_file", path),
		)
		run.SetProgressComplete("Transcribing", "Uploaded clip has no audio")
		return nil
	}

	if err := os.MkdirAll(run.StagingDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, transcribingStage, "create staging dir", run.StagingDir, err)
	}
	wav := filepath.Join(run.StagingDir, "clip-audio.wav")
	run.SetProgress("Transcribing", "Extracting clip audio", 10)
	if err := t.extractor.ExtractTranscriptionAudio(ctx, path, wav); err != nil {
		return services.Wrap(services.ErrExternalTool, transcribingStage, "extract clip audio", filepath.Base(path), err)
	}
	payload, err := stage.ReadInput(transcribingStage, "clip audio", wav)
	if err != nil {
		return err
	}
	run.SetProgress("Transcribing", "Transcribing clip audio", 40)
	text, err := t.speech.Transcribe(ctx, payload, "audio/wav", filepath.Base(wav))
	if err != nil {
		return err
	}
	run.Transcript = strings.TrimSpace(text)
	logger.Info("clip audio transcribed",
		logging.String("source_file", path),
		logging.Int("transcript_chars", len(run.Transcript)),
	)
	run.SetProgressComplete("Transcribing", "Clip audio transcribed")
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcriber"
	if t.speech == nil {
		return stage.Unhealthy(name, "speech collaborator unavailable")
	}
	if strings.TrimSpace(t.cfg.Speech.TranscriptionURL) == "" {
		return stage.Unhealthy(name, "speech.transcription_url not configured")
	}
	return stage.Healthy(name)
}
