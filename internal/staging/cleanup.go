package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/logging"
)

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Freed   int64
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo contains metadata about one run's staging directory.
type DirInfo struct {
	RunID   string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns the run directories under stagingDir. Files such as
// the production lock are ignored.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(stagingDir, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			RunID:   entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}
	return dirs, nil
}

// CleanStale removes run directories not modified within maxAge.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	cutoff := time.Now().Add(-maxAge)
	return clean(ctx, stagingDir, logger, "stale", func(dir DirInfo) bool {
		return dir.ModTime.Before(cutoff)
	})
}

// CleanRuns removes the directories of the given runs, typically the ones the
// journal reports as completed or failed. Unknown ids are ignored.
func CleanRuns(ctx context.Context, stagingDir string, runIDs map[string]struct{}, logger *slog.Logger) CleanResult {
	return clean(ctx, stagingDir, logger, "finished", func(dir DirInfo) bool {
		_, ok := runIDs[dir.RunID]
		return ok
	})
}

func clean(ctx context.Context, stagingDir string, logger *slog.Logger, reason string, match func(DirInfo) bool) CleanResult {
	result := CleanResult{}
	logger = logging.NewComponentLogger(logger, "staging")

	dirs, err := ListDirectories(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: ctx.Err()})
			return result
		}
		if !match(dir) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logger.Warn("failed to remove staging directory",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		result.Freed += dir.Size
		logger.Info("removed staging directory",
			logging.String("path", dir.Path),
			logging.String("reason", reason),
			logging.Int64("bytes", dir.Size),
			logging.Duration("age", time.Since(dir.ModTime)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
