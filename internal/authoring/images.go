package authoring

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/sequencer"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/textutil"
)

const generatingImagesStage = "generating_images"

// ImageGenerator fills the scene list: uploaded clip segments and images
// first, generated stills for whatever slots remain.
type ImageGenerator struct {
	cfg         *config.Config
	illustrator Illustrator
	logger      *slog.Logger
}

// NewImageGenerator constructs the generating_images stage handler.
func NewImageGenerator(cfg *config.Config, illustrator Illustrator, logger *slog.Logger) *ImageGenerator {
	return &ImageGenerator{cfg: cfg, illustrator: illustrator, logger: logger}
}

// SetLogger swaps in the per-run stage logger.
func (g *ImageGenerator) SetLogger(logger *slog.Logger) {
	g.logger = logger
}

func (g *ImageGenerator) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Generating images", "Checking uploaded images", 0)
	run.Descriptions = nil
	run.Assets = nil
	return nil
}

func (g *ImageGenerator) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(g.logger, "images"))

	userImages, err := collectUserImages(run.Inputs.ImagePaths)
	if err != nil {
		return err
	}
	in := sequencer.Inputs{
		VideoSegments: run.Segments,
		UserImages:    userImages,
		TotalScenes:   g.cfg.Render.SceneCount,
	}

	slots := sequencer.GeneratedSlots(in)
	if len(slots) > 0 {
		if g.illustrator == nil {
			return services.Wrap(services.ErrConfiguration, generatingImagesStage, "plan scenes", "image collaborator unavailable", nil)
		}
		topic := effectiveTopic(run)
		if topic == "" {
			return services.Wrap(services.ErrValidation, generatingImagesStage, "plan scenes",
				fmt.Sprintf("a topic is required to generate %d scene(s)", len(slots)), nil)
		}
		run.SetProgress("Generating images", "Planning scenes", 5)
		planned, err := g.illustrator.SceneDescriptions(ctx, topic, len(slots))
		if err != nil {
			return err
		}
		in.Descriptions = textutil.Distinct(planned, descriptionSimilarity)
		if dropped := len(planned) - len(in.Descriptions); dropped > 0 {
			logger.Info("near-duplicate scene descriptions dropped",
				logging.Int("planned", len(planned)),
				logging.Int("dropped", dropped),
			)
		}
		run.Descriptions = in.Descriptions
	}

	source := &stagedImages{
		illustrator: g.illustrator,
		dir:         run.StagingDir,
		run:         run,
		total:       len(slots),
		logger:      logger,
	}
	assets, err := sequencer.Sequence(ctx, in, source)
	if err != nil {
		return err
	}
	run.Assets = assets

	logger.Info("scenes sequenced",
		logging.Int("scenes", len(assets)),
		logging.Int("video_segments", len(run.Segments)),
		logging.Int("user_images", len(userImages)),
		logging.Int("generated_images", source.done),
	)
	run.SetProgressComplete("Generating images", fmt.Sprintf("%d scenes ready (%d generated)", len(assets), source.done))
	return nil
}

func (g *ImageGenerator) HealthCheck(ctx context.Context) stage.Health {
	const name = "image generator"
	if g.illustrator == nil {
		return stage.Unhealthy(name, "image collaborator unavailable")
	}
	if g.cfg.Render.SceneCount <= 0 {
		return stage.Unhealthy(name, "render.scene_count must be positive")
	}
	if strings.TrimSpace(g.cfg.Images.APIKey) == "" {
		return stage.Unhealthy(name, "images.api_key not configured")
	}
	return stage.Healthy(name)
}

func collectUserImages(paths []string) ([]sequencer.MediaAsset, error) {
	out := make([]sequencer.MediaAsset, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			marker := services.ErrValidation
			if errors.Is(err, fs.ErrNotExist) {
				marker = services.ErrNotFound
			}
			return nil, services.Wrap(marker, generatingImagesStage, "read image", filepath.Base(path), err)
		}
		if info.IsDir() || info.Size() == 0 {
			return nil, services.Wrap(services.ErrValidation, generatingImagesStage, "read image", filepath.Base(path)+" is not a usable image file", nil)
		}
		out = append(out, sequencer.Image(path))
	}
	return out, nil
}

// stagedImages renders stills into the run's staging directory.
type stagedImages struct {
	illustrator Illustrator
	dir         string
	run         *production.Run
	total       int
	done        int
	logger      *slog.Logger
}

func (s *stagedImages) Generate(ctx context.Context, description string, index int) (string, error) {
	img, err := s.illustrator.GenerateImage(ctx, description, index)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("scene-%02d%s", index+1, img.Extension()))
	if err := fileutil.WriteFileAtomic(path, img.Data, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, generatingImagesStage, "write image", filepath.Base(path), err)
	}
	s.done++
	if s.total > 0 {
		percent := 10 + 90*float64(s.done)/float64(s.total)
		s.run.SetProgress("Generating images", fmt.Sprintf("Generated image %d/%d", s.done, s.total), percent)
	}
	s.logger.Debug("scene image staged",
		logging.Int("scene_index", index),
		logging.String("path", path),
	)
	return path, nil
}
