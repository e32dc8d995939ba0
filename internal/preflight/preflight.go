package preflight

import (
	"context"
	"fmt"

	"reelsmith/internal/config"
	"reelsmith/internal/deps"
)

// minFreeBytes is the staging space below which a render is refused.
const minFreeBytes = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results,
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, minFreeBytes),
	)

	for _, status := range deps.CheckBinaries(ctx, deps.MediaRequirements(cfg)) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Path
			if status.Version != "" {
				result.Detail = status.Version
			}
		}
		results = append(results, result)
	}

	if llmCfg := cfg.GetLLM(); llmCfg.APIKey != "" {
		results = append(results, CheckLLM(ctx, "LLM", llmCfg))
	}
	if cfg.Images.APIKey != "" {
		results = append(results, CheckEndpoint(ctx, "Image generation", cfg.Images.BaseURL, cfg.Images.APIKey))
	}
	if cfg.Speech.APIKey != "" {
		results = append(results, CheckEndpoint(ctx, "Speech synthesis", cfg.Speech.SynthesisURL, cfg.Speech.APIKey))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Error summarizes failed results, or returns nil when all passed.
func Error(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	first := failed[0]
	if len(failed) == 1 {
		return fmt.Errorf("preflight: %s: %s", first.Name, first.Detail)
	}
	return fmt.Errorf("preflight: %s: %s (and %d more)", first.Name, first.Detail, len(failed)-1)
}
