package authoring

import (
	"context"
	"log/slog"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const generatingScriptStage = "generating_script"

// ScriptWriter produces the narration script and its publishing metadata.
// Uploaded narration is already spoken, so its transcript is the script.
type ScriptWriter struct {
	cfg    *config.Config
	writer Writer
	logger *slog.Logger
}

// NewScriptWriter constructs the generating_script stage handler.
func NewScriptWriter(cfg *config.Config, writer Writer, logger *slog.Logger) *ScriptWriter {
	return &ScriptWriter{cfg: cfg, writer: writer, logger: logger}
}

// SetLogger swaps in the per-run stage logger.
func (s *ScriptWriter) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *ScriptWriter) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Generating script", "Preparing script", 0)
	if s.writer == nil {
		return services.Wrap(services.ErrConfiguration, generatingScriptStage, "prepare", "text collaborator unavailable", nil)
	}
	return nil
}

func (s *ScriptWriter) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(s.logger, "script"))

	script, source, err := s.draft(ctx, run)
	if err != nil {
		return err
	}
	run.Script = script
	run.SetProgress("Generating script", "Writing metadata", 60)

	meta, err := s.writer.Metadata(ctx, script)
	if err != nil {
		return err
	}
	run.Metadata = meta

	logger.Info("script ready",
		logging.String("script_source", source),
		logging.Int("script_chars", len(script)),
		logging.String("title", meta.Title),
		logging.Int("tags", len(meta.Tags)),
	)
	run.SetProgressComplete("Generating script", meta.Title)
	return nil
}

func (s *ScriptWriter) draft(ctx context.Context, run *production.Run) (string, string, error) {
	if run.HasNarration() {
		script := strings.TrimSpace(run.Transcript)
		if script == "" {
			return "", "", services.Wrap(services.ErrValidation, generatingScriptStage, "script", "uploaded narration produced no transcript", nil)
		}
		return script, "narration", nil
	}
	topic := effectiveTopic(run)
	run.SetProgress("Generating script", "Writing narration", 10)
	if len(run.Descriptions) > 0 {
		script, err := s.writer.ScriptForDescriptions(ctx, topic, run.Descriptions)
		return script, "descriptions", err
	}
	if topic == "" {
		return "", "", services.Wrap(services.ErrValidation, generatingScriptStage, "script", "topic required", nil)
	}
	script, err := s.writer.Script(ctx, topic)
	return script, "topic", err
}

func (s *ScriptWriter) HealthCheck(ctx context.Context) stage.Health {
	const name = "script writer"
	if s.writer == nil {
		return stage.Unhealthy(name, "text collaborator unavailable")
	}
	if strings.TrimSpace(s.cfg.LLM.APIKey) == "" {
		return stage.Unhealthy(name, "llm.api_key not configured")
	}
	return stage.Healthy(name)
}
