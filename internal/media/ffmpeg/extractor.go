package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"skytag/internal/logging"
)

// CounterDigits is the zero-padded width of the frame counter in file names.
const CounterDigits = 6

// CommandRunner executes an external command and waits for it to finish.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Options configures an Extractor.
type Options struct {
	Binary         string
	ImageExtension string
	// Quality is the JPEG qscale (1 best, 31 worst).
	Quality        int
	SubtitleStream int
	Logger         *slog.Logger
}

// Extractor runs ffmpeg for frame and subtitle extraction.
type Extractor struct {
	binary         string
	extension      string
	quality        int
	subtitleStream int
	run            CommandRunner
	logger         *slog.Logger
}

// FrameSet describes where extracted frames were written.
type FrameSet struct {
	Dir       string
	Prefix    string
	Extension string
	// Pattern is the printf-style output template handed to ffmpeg.
	Pattern string
}

// NewExtractor builds an extractor with defaults for unset options.
func NewExtractor(opts Options) *Extractor {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(opts.ImageExtension)), ".")
	if ext == "" {
		ext = "jpg"
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = 1
	}
	return &Extractor{
		binary:         binary,
		extension:      ext,
		quality:        quality,
		subtitleStream: opts.SubtitleStream,
		run:            defaultCommandRunner,
		logger:         logging.NewComponentLogger(opts.Logger, "ffmpeg"),
	}
}

// WithCommandRunner injects a custom command runner (primarily for tests).
func (e *Extractor) WithCommandRunner(r CommandRunner) {
	if r != nil {
		e.run = r
	}
}

// Extension returns the image extension frames are written with.
func (e *Extractor) Extension() string {
	return e.extension
}

// ExtractFrames samples video at one frame per second into dest and blocks
// until ffmpeg exits.
func (e *Extractor) ExtractFrames(ctx context.Context, video, dest, prefix string) (FrameSet, error) {
	if err := validateInputs(video, dest, prefix); err != nil {
		return FrameSet{}, fmt.Errorf("ffmpeg extract frames: %w", err)
	}
	set := FrameSet{
		Dir:       dest,
		Prefix:    prefix,
		Extension: e.extension,
		Pattern:   filepath.Join(dest, FramePattern(prefix, e.extension)),
	}
	args := buildFrameArgs(video, set.Pattern, e.quality)

	start := time.Now()
	e.logger.Info("extracting frames",
		logging.String("video", video),
		logging.String("pattern", set.Pattern),
	)
	if err := e.run(ctx, e.binary, args...); err != nil {
		return FrameSet{}, fmt.Errorf("ffmpeg extract frames: %w", err)
	}
	e.logger.Info("frames extracted",
		logging.String("dir", dest),
		logging.Duration("elapsed", time.Since(start)),
	)
	return set, nil
}

// ExtractSubtitles copies the telemetry caption track to dest/<prefix>.srt and
// returns its path.
func (e *Extractor) ExtractSubtitles(ctx context.Context, video, dest, prefix string) (string, error) {
	if err := validateInputs(video, dest, prefix); err != nil {
		return "", fmt.Errorf("ffmpeg extract subtitles: %w", err)
	}
	output := filepath.Join(dest, prefix+".srt")
	args := buildSubtitleArgs(video, e.subtitleStream, output)
	e.logger.Debug("extracting telemetry track",
		logging.String("video", video),
		logging.Int("stream", e.subtitleStream),
		logging.String("output", output),
	)
	if err := e.run(ctx, e.binary, args...); err != nil {
		return "", fmt.Errorf("ffmpeg extract subtitles: %w", err)
	}
	return output, nil
}

// FramePattern returns the file name template for a prefix and extension.
func FramePattern(prefix, ext string) string {
	return prefix + "_%0" + strconv.Itoa(CounterDigits) + "d." + ext
}

// FrameName returns the file name ffmpeg writes for a 1-based counter.
func FrameName(prefix string, counter int, ext string) string {
	return fmt.Sprintf("%s_%0*d.%s", prefix, CounterDigits, counter, ext)
}

func buildFrameArgs(video, pattern string, quality int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", video,
		"-vf", "fps=1/1",
		"-qmin", "1",
		"-qscale:v", strconv.Itoa(quality),
		pattern,
	}
}

func buildSubtitleArgs(video string, stream int, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", video,
		"-map", fmt.Sprintf("0:s:%d", stream),
		"-f", "srt",
		output,
	}
}

func validateInputs(video, dest, prefix string) error {
	switch {
	case strings.TrimSpace(video) == "":
		return errors.New("empty video path")
	case strings.TrimSpace(dest) == "":
		return errors.New("empty destination")
	case strings.TrimSpace(prefix) == "":
		return errors.New("empty prefix")
	case strings.ContainsAny(prefix, `/\%`):
		return fmt.Errorf("prefix %q contains path or format characters", prefix)
	}
	return nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(strings.TrimSpace(string(output)), 20))
	}
	return nil
}

// tail keeps the last n lines of ffmpeg's output, where the actual error lives.
func tail(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
