package authoring

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"reelsmith/internal/audio"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/subtitles"
	"reelsmith/internal/timeline"
)

const generatingAudioStage = "generating_audio"

// Narrator voices the script (or takes the uploaded narration), decodes it,
// and builds the caption track.
type Narrator struct {
	cfg    *config.Config
	voice  Voice
	native audio.NativeDecoder
	logger *slog.Logger
}

// NewNarrator constructs the generating_audio stage handler. native may be
// nil, in which case only raw PCM payloads decode.
func NewNarrator(cfg *config.Config, voice Voice, native audio.NativeDecoder, logger *slog.Logger) *Narrator {
	return &Narrator{cfg: cfg, voice: voice, native: native, logger: logger}
}

// SetLogger swaps in the per-run stage logger.
func (n *Narrator) SetLogger(logger *slog.Logger) {
	n.logger = logger
}

func (n *Narrator) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Generating audio", "Preparing narration", 0)
	if strings.TrimSpace(run.Script) == "" {
		return services.Wrap(services.ErrValidation, generatingAudioStage, "prepare", "script required", nil)
	}
	run.Narration = audio.Buffer{}
	run.Subtitles = nil
	return nil
}

func (n *Narrator) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(n.logger, "narration"))

	payload, source, err := n.payload(ctx, run)
	if err != nil {
		return err
	}
	run.NarrationPayload = payload

	run.SetProgress("Generating audio", "Decoding narration", 50)
	decoder := audio.Decoder{Native: n.native, Logger: n.logger}
	buf, err := decoder.Decode(ctx, payload)
	if err != nil {
		return err
	}
	run.Narration = buf

	run.SetProgress("Generating audio", "Timing captions", 80)
	subs, captionSource, err := n.captions(run, buf.Seconds())
	if err != nil {
		return err
	}
	run.Subtitles = subs
	if issues := subtitles.Validate(subs, buf.Seconds()); len(issues) > 0 {
		logging.WarnWithContext(logger, "caption track has issues", "caption_validation",
			logging.String("caption_source", captionSource),
			logging.Any("issues", issues),
			logging.String(logging.FieldImpact, "captions may be out of sync; the first matching cue is shown"),
			logging.String(logging.FieldErrorHint, "check the caption file against the narration length"),
		)
	}

	logger.Info("narration ready",
		logging.String("narration_source", source),
		logging.Float64("narration_seconds", buf.Seconds()),
		logging.Int("sample_rate", buf.SampleRate),
		logging.String("caption_source", captionSource),
		logging.Int("captions", len(subs)),
	)
	run.SetProgressComplete("Generating audio", fmt.Sprintf("%.1fs narration, %d captions", buf.Seconds(), len(subs)))
	return nil
}

func (n *Narrator) payload(ctx context.Context, run *production.Run) ([]byte, string, error) {
	if len(run.NarrationPayload) > 0 {
		return run.NarrationPayload, "upload", nil
	}
	if run.HasNarration() {
		data, err := stage.ReadInput(generatingAudioStage, "narration", run.Inputs.NarrationPath)
		return data, "upload", err
	}
	if n.voice == nil {
		return nil, "", services.Wrap(services.ErrConfiguration, generatingAudioStage, "synthesize", "speech collaborator unavailable", nil)
	}

	var voiceRef []byte
	if strings.TrimSpace(run.Inputs.VoiceRefPath) != "" {
		ref, err := stage.ReadInput(generatingAudioStage, "voice reference", run.Inputs.VoiceRefPath)
		if err != nil {
			return nil, "", err
		}
		voiceRef = ref
	}

	run.SetProgress("Generating audio", "Synthesizing narration", 10)
	spoken, err := n.voice.Synthesize(ctx, run.Script, voiceRef, run.VoiceProfile)
	if err != nil {
		return nil, "", err
	}
	if run.StagingDir != "" {
		path := filepath.Join(run.StagingDir, "narration."+payloadExtension(spoken.Format))
		if err := fileutil.WriteFileAtomic(path, spoken.Data, 0o644); err != nil {
			return nil, "", services.Wrap(services.ErrConfiguration, generatingAudioStage, "stage narration", filepath.Base(path), err)
		}
	}
	return spoken.Data, "synthesis", nil
}

func (n *Narrator) captions(run *production.Run, seconds float64) ([]timeline.Subtitle, string, error) {
	if path := strings.TrimSpace(run.Inputs.CaptionsPath); path != "" {
		subs, err := subtitles.ReadSRT(path)
		if err != nil {
			return nil, "", services.Wrap(services.ErrValidation, generatingAudioStage, "read captions", filepath.Base(path), err)
		}
		return subs, "file", nil
	}
	return subtitles.Estimate(run.Script, seconds), "estimate", nil
}

func (n *Narrator) HealthCheck(ctx context.Context) stage.Health {
	const name = "narrator"
	if n.voice == nil {
		return stage.Unhealthy(name, "speech collaborator unavailable")
	}
	if strings.TrimSpace(n.cfg.Speech.SynthesisURL) == "" {
		return stage.Unhealthy(name, "speech.synthesis_url not configured")
	}
	return stage.Healthy(name)
}

func payloadExtension(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "pcm":
		return "pcm"
	default:
		return strings.TrimPrefix(format, ".")
	}
}
