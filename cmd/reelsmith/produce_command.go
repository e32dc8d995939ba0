package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/journal"
	"reelsmith/internal/logging"
	"reelsmith/internal/preflight"
	"reelsmith/internal/production"
	"reelsmith/internal/workflow"
)

type produceOptions struct {
	inputs        production.Inputs
	outputDir     string
	offline       bool
	monitor       bool
	skipPreflight bool
	jsonOutput    bool
}

func newProduceCommand(ctx *commandContext) *cobra.Command {
	var opts produceOptions

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Produce one video from a topic and optional uploads",
		Long: `Produce runs every stage in order: transcribe uploads, partition the
clip, generate scene images, write the script, profile the reference voice,
synthesize narration, preload assets, and render the final video.

At least one of --topic, --video, --image, or --narration is required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyProduceOverrides(cmd, cfg, opts); err != nil {
				return err
			}
			if err := validateInputs(opts.inputs); err != nil {
				return err
			}
			return runProduce(cmd, ctx, cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.inputs.Topic, "topic", "t", "", "What the video is about")
	flags.StringVar(&opts.inputs.VideoPath, "video", "", "Uploaded clip to cut into segments")
	flags.StringArrayVar(&opts.inputs.ImagePaths, "image", nil, "Uploaded still image (repeatable)")
	flags.StringVar(&opts.inputs.VoiceRefPath, "voice-ref", "", "Reference recording to clone the narrator voice from")
	flags.StringVar(&opts.inputs.VoiceLink, "voice-link", "", "Link describing the narrator voice to imitate")
	flags.StringVar(&opts.inputs.NarrationPath, "narration", "", "Pre-recorded narration to use instead of synthesis")
	flags.StringVar(&opts.inputs.CaptionsPath, "captions", "", "SRT captions matching --narration")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "Directory for the finished video and sidecars (default paths.output_dir)")
	flags.BoolVar(&opts.offline, "offline", false, "Render against a virtual clock instead of the wall clock")
	flags.BoolVar(&opts.monitor, "monitor", false, "Play the mix on the default audio device while rendering")
	flags.BoolVar(&opts.skipPreflight, "skip-preflight", false, "Skip directory, binary, and API checks")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func applyProduceOverrides(cmd *cobra.Command, cfg *config.Config, opts produceOptions) error {
	if cmd.Flags().Changed("offline") {
		cfg.Render.Pace = config.PaceRealtime
		if opts.offline {
			cfg.Render.Pace = config.PaceOffline
			if !cmd.Flags().Changed("monitor") {
				cfg.Render.Monitor = false
			}
		}
	}
	if cmd.Flags().Changed("monitor") {
		cfg.Render.Monitor = opts.monitor
	}
	if dir := strings.TrimSpace(opts.outputDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("resolve --output: %w", err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return fmt.Errorf("resolve --output: %w", err)
		}
		cfg.Paths.OutputDir = abs
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
	}
	return cfg.Validate()
}

func validateInputs(inputs production.Inputs) error {
	if strings.TrimSpace(inputs.Topic) == "" &&
		strings.TrimSpace(inputs.VideoPath) == "" &&
		strings.TrimSpace(inputs.NarrationPath) == "" &&
		len(inputs.ImagePaths) == 0 {
		return errors.New("nothing to produce: pass --topic or at least one upload")
	}
	if strings.TrimSpace(inputs.CaptionsPath) != "" && strings.TrimSpace(inputs.NarrationPath) == "" {
		return errors.New("--captions requires --narration")
	}
	if strings.TrimSpace(inputs.VoiceRefPath) != "" && strings.TrimSpace(inputs.NarrationPath) != "" {
		return errors.New("--voice-ref has no effect with --narration")
	}
	return nil
}

func runProduce(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, opts produceOptions) error {
	lockPath := filepath.Join(cfg.Paths.StagingDir, ".reelsmith.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another production is using %s", cfg.Paths.StagingDir)
	}
	defer lock.Unlock() //nolint:errcheck

	if !opts.skipPreflight {
		if err := preflight.Error(preflight.RunAll(cmd.Context(), cfg)); err != nil {
			return err
		}
	}

	logger, err := ctx.logger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	j, err := journal.Open(journal.PathFor(cfg))
	if err != nil {
		return err
	}
	defer j.Close()

	svc := newContentService(cfg, logger)
	mgr := workflow.NewManager(cfg, j, logger)
	mgr.ConfigureStages(buildStageSet(cfg, svc, logger))

	run, runErr := mgr.Run(cmd.Context(), opts.inputs)
	if run == nil {
		return runErr
	}
	status := mgr.Status(cmd.Context())
	logPath := ""
	if status.LastRun != nil {
		logPath = status.LastRun.LogPath
	}
	if runErr != nil {
		logging.NewComponentLogger(logger, "cli").Debug("production failed", logging.Error(runErr))
		if logPath != "" {
			return fmt.Errorf("%s (run log: %s)", run.Message, logPath)
		}
		return errors.New(run.Message)
	}

	summary := newProduceSummary(run, logPath)
	if opts.jsonOutput {
		return writeJSON(cmd, summary)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderProduceSummary(summary))
	return nil
}

type produceSummary struct {
	RunID         string  `json:"run_id"`
	Status        string  `json:"status"`
	Title         string  `json:"title"`
	OutputPath    string  `json:"output_path"`
	SubtitlePath  string  `json:"subtitle_path,omitempty"`
	MetadataPath  string  `json:"metadata_path,omitempty"`
	SizeBytes     int64   `json:"size_bytes"`
	Duration      float64 `json:"duration_seconds"`
	Frames        int     `json:"frames"`
	Scenes        int     `json:"scenes"`
	Captions      int     `json:"captions"`
	RunLogPath    string  `json:"run_log,omitempty"`
	NarrationUsed string  `json:"narration"`
}

func newProduceSummary(run *production.Run, logPath string) produceSummary {
	narration := "synthesized"
	if run.HasNarration() {
		narration = "uploaded"
	}
	return produceSummary{
		RunID:         run.ID,
		Status:        string(run.Status),
		Title:         run.Title(),
		OutputPath:    run.OutputPath,
		SubtitlePath:  run.SubtitlePath,
		MetadataPath:  run.MetadataPath,
		SizeBytes:     run.Artifact.SizeBytes,
		Duration:      run.Artifact.Duration().Seconds(),
		Frames:        run.Artifact.Frames,
		Scenes:        len(run.Assets),
		Captions:      len(run.Subtitles),
		RunLogPath:    logPath,
		NarrationUsed: narration,
	}
}

func renderProduceSummary(s produceSummary) string {
	rows := [][]string{
		{"Run", s.RunID},
		{"Title", s.Title},
		{"Video", s.OutputPath},
		{"Size", humanize.Bytes(uint64(max(s.SizeBytes, 0)))},
		{"Duration", fmt.Sprintf("%.1fs (%s frames)", s.Duration, humanize.Comma(int64(s.Frames)))},
		{"Scenes", fmt.Sprintf("%d", s.Scenes)},
		{"Narration", s.NarrationUsed},
		{"Captions", fmt.Sprintf("%d", s.Captions)},
	}
	if s.SubtitlePath != "" {
		rows = append(rows, []string{"Subtitles", s.SubtitlePath})
	}
	if s.MetadataPath != "" {
		rows = append(rows, []string{"Metadata", s.MetadataPath})
	}
	if s.RunLogPath != "" {
		rows = append(rows, []string{"Run log", s.RunLogPath})
	}
	return renderFields(rows)
}
