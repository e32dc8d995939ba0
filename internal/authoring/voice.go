package authoring

import (
	"context"
	"log/slog"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/stage"
)

// VoiceProfiler turns a reference link into a delivery profile passed to
// speech synthesis.
type VoiceProfiler struct {
	cfg     *config.Config
	analyst VoiceAnalyst
	logger  *slog.Logger
}

// NewVoiceProfiler constructs the profiling_voice stage handler.
func NewVoiceProfiler(cfg *config.Config, analyst VoiceAnalyst, logger *slog.Logger) *VoiceProfiler {
	return &VoiceProfiler{cfg: cfg, analyst: analyst, logger: logger}
}

// SetLogger swaps in the per-run stage logger.
func (v *VoiceProfiler) SetLogger(logger *slog.Logger) {
	v.logger = logger
}

func (v *VoiceProfiler) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Profiling voice", "Preparing voice analysis", 0)
	run.VoiceProfile = ""
	return nil
}

func (v *VoiceProfiler) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(v.logger, "voice"))
	link := strings.TrimSpace(run.Inputs.VoiceLink)
	switch {
	case run.HasNarration():
		logger.Info("narration uploaded; voice profile not needed", logging.String(logging.FieldEventType, "stage_noop"))
		run.SetProgressComplete("Profiling voice", "Narration uploaded")
		return nil
	case link == "" || v.analyst == nil:
		logger.Info("no voice reference link", logging.String(logging.FieldEventType, "stage_noop"))
		run.SetProgressComplete("Profiling voice", "Default voice")
		return nil
	}

	run.SetProgress("Profiling voice", "Analyzing reference voice", 20)
	profile, err := v.analyst.VoiceProfile(ctx, link)
	if err != nil {
		return err
	}
	run.VoiceProfile = profile
	logger.Info("voice profiled",
		logging.String("voice_link", link),
		logging.Int("profile_chars", len(profile)),
	)
	run.SetProgressComplete("Profiling voice", "Voice profile ready")
	return nil
}

func (v *VoiceProfiler) HealthCheck(ctx context.Context) stage.Health {
	const name = "voice profiler"
	if v.analyst == nil {
		return stage.Unhealthy(name, "text collaborator unavailable")
	}
	return stage.Healthy(name)
}
