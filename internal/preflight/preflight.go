package preflight

import (
	"fmt"
	"strings"

	"skytag/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for an extract run into destination.
// An empty destination limits the checks to the configured directories.
func RunAll(cfg *config.Config, video, destination string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if video != "" {
		results = append(results, CheckReadableFile("Video", video))
	}
	if destination != "" {
		dest := CheckDirectoryAccess("Destination", destination)
		results = append(results, dest)
		if dest.Passed {
			results = append(results, CheckFreeSpace("Destination space", destination, MinFreeBytes))
		}
	}
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	return results
}

// FirstFailure returns an error describing every failed result, or nil.
func FirstFailure(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failed, "; "))
}
