package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skytag/internal/config"
	"skytag/internal/media/ffprobe"
)

// VideoProbe reports what the extract pipeline will find in a video.
type VideoProbe struct {
	Path            string
	Inspected       bool
	Error           string
	Duration        time.Duration
	VideoStreams    int
	SubtitleStreams int
	CreationTime    time.Time
}

// ProbeVideo inspects path with ffprobe. Failures are recorded in the probe
// rather than returned, so status output can still render.
func ProbeVideo(ctx context.Context, cfg *config.Config, path string) VideoProbe {
	probe := VideoProbe{Path: path}
	binary := "ffprobe"
	if cfg != nil && strings.TrimSpace(cfg.Tools.FFprobe) != "" {
		binary = cfg.Tools.FFprobe
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		probe.Error = err.Error()
		return probe
	}
	probe.Inspected = true
	probe.Duration = time.Duration(result.DurationSeconds() * float64(time.Second))
	probe.VideoStreams = result.VideoStreamCount()
	probe.SubtitleStreams = result.SubtitleStreamCount()
	if ts, ok := result.CreationTime(); ok {
		probe.CreationTime = ts
	}
	return probe
}

// HasTelemetry reports whether the video carries a caption track.
func (p VideoProbe) HasTelemetry() bool {
	return p.Inspected && p.SubtitleStreams > 0
}

// ExpectedFrames estimates how many 1 fps stills the video yields.
func (p VideoProbe) ExpectedFrames() int {
	if p.Duration <= 0 {
		return 0
	}
	return int(p.Duration / time.Second)
}

// Detail renders a display-friendly summary for status UIs.
func (p VideoProbe) Detail() string {
	if !p.Inspected {
		if p.Error != "" {
			return fmt.Sprintf("%s (error: %s)", p.Path, p.Error)
		}
		return fmt.Sprintf("%s (not inspected)", p.Path)
	}
	telemetry := "no telemetry track"
	if p.HasTelemetry() {
		telemetry = fmt.Sprintf("%d telemetry track(s)", p.SubtitleStreams)
	}
	return fmt.Sprintf("%s (%s, ~%d frames, %s)", p.Path, p.Duration.Round(time.Second), p.ExpectedFrames(), telemetry)
}
