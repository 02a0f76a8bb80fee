package preflight

import (
	"context"

	"shotforge/internal/config"
)

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

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckLLM(ctx, "Generation LLM", cfg.GetLLM()),
	}

	// Scoring LLM (only when model scoring is on and it resolves to a different endpoint)
	if cfg.Quality.Mode == config.QualityModeModel && qualityUsesDistinctLLM(cfg) {
		results = append(results, CheckLLM(ctx, "Scoring LLM", cfg.QualityLLM()))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func qualityUsesDistinctLLM(cfg *config.Config) bool {
	gen := cfg.GetLLM()
	scoring := cfg.QualityLLM()
	return gen.APIKey != scoring.APIKey || gen.BaseURL != scoring.BaseURL || gen.Model != scoring.Model
}
