package preflight

import (
	"context"
	"strings"

	"deskdrop/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Watch folder", cfg.Paths.WatchDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	if cfg.Devices.Enabled {
		results = append(results, CheckNetlink())
	}

	for _, dep := range CheckSystemDeps(cfg) {
		detail := dep.Path
		if !dep.Available {
			detail = dep.Detail
		}
		results = append(results, Result{
			Name:   dep.Name,
			Passed: dep.Available || dep.Optional,
			Detail: detail,
		})
	}

	if strings.TrimSpace(cfg.Notify.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notify.NtfyTopic))
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
