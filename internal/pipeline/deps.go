package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skytag/internal/config"
	"skytag/internal/deps"
	"skytag/internal/exiftool"
	"skytag/internal/fusion"
	"skytag/internal/journal"
	"skytag/internal/media/ffmpeg"
	"skytag/internal/media/ffprobe"
	"skytag/internal/preflight"
)

// Prober inspects the source container.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Extractor produces the caption file and the 1 fps stills.
type Extractor interface {
	ExtractSubtitles(ctx context.Context, video, dest, prefix string) (string, error)
	ExtractFrames(ctx context.Context, video, dest, prefix string) (ffmpeg.FrameSet, error)
}

// TagSession is the exclusive tag writer used for a whole run.
type TagSession interface {
	fusion.TagWriter
	ReadCreateDate(ctx context.Context, path string) (time.Time, error)
	Close() error
}

// SessionOpener starts a TagSession.
type SessionOpener func(ctx context.Context) (TagSession, error)

// Checker validates the environment before any work starts.
type Checker func(ctx context.Context, cfg *config.Config, video, destination string) error

// Journal persists run and frame state.
type Journal interface {
	BeginRun(ctx context.Context, id string, target journal.Target) (*journal.Run, error)
	Recorder(runID string) fusion.StateRecorder
	FinishRun(ctx context.Context, runID string, outcome journal.Outcome) error
	CorrectedFrames(ctx context.Context, target journal.Target) ([]int, error)
	StartExtraction(ctx context.Context, runID string) error
	CompleteExtraction(ctx context.Context, runID string, frames int) error
	LastExtraction(ctx context.Context, target journal.Target) (*journal.Run, error)
}

// Deps carries the collaborators of Run. Nil fields are built from the
// config; a nil Journal disables run tracking and resume.
type Deps struct {
	Logger      *slog.Logger
	Check       Checker
	Prober      Prober
	Extractor   Extractor
	OpenSession SessionOpener
	Journal     Journal
}

func (d Deps) withDefaults(cfg *config.Config, logger *slog.Logger) Deps {
	if d.Check == nil {
		d.Check = DefaultCheck
	}
	if d.Prober == nil {
		d.Prober = ffprobeProber{binary: cfg.Tools.FFprobe}
	}
	if d.Extractor == nil {
		d.Extractor = ffmpeg.NewExtractor(ffmpeg.Options{
			Binary:         cfg.Tools.FFmpeg,
			ImageExtension: cfg.Extraction.ImageExtension,
			Quality:        cfg.Extraction.Quality,
			SubtitleStream: cfg.Extraction.SubtitleStream,
			Logger:         logger,
		})
	}
	if d.OpenSession == nil {
		d.OpenSession = ExiftoolOpener(cfg.Tools.Exiftool, logger)
	}
	return d
}

// DefaultCheck runs the filesystem preflight checks and verifies that the
// external tools are installed.
func DefaultCheck(ctx context.Context, cfg *config.Config, video, destination string) error {
	if err := preflight.FirstFailure(preflight.RunAll(cfg, video, destination)); err != nil {
		return err
	}
	return deps.MissingRequired(preflight.CheckSystemDeps(ctx, cfg))
}

type ffprobeProber struct {
	binary string
}

func (p ffprobeProber) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.binary, path)
}

// exiftoolCommonArgs lead every command; frame and video paths are passed as
// UTF-8.
var exiftoolCommonArgs = []string{"-charset", "filename=UTF8"}

// ExiftoolOpener returns a SessionOpener backed by a stay-open exiftool process.
func ExiftoolOpener(binary string, logger *slog.Logger) SessionOpener {
	return func(ctx context.Context) (TagSession, error) {
		session, err := exiftool.Open(ctx, exiftool.Options{
			Binary:     binary,
			CommonArgs: exiftoolCommonArgs,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return &exiftoolWriter{session: session}, nil
	}
}

// exiftoolWriter adapts an exiftool session to fusion.TagWriter.
type exiftoolWriter struct {
	session *exiftool.Session
}

func (w *exiftoolWriter) WriteTags(ctx context.Context, path string, fields []fusion.Field) error {
	assignments, err := Assignments(fields)
	if err != nil {
		return err
	}
	return w.session.WriteMetadata(ctx, path, assignments, exiftool.OptOverwriteOriginal)
}

func (w *exiftoolWriter) ReadCreateDate(ctx context.Context, path string) (time.Time, error) {
	return w.session.ReadCreateDate(ctx, path)
}

func (w *exiftoolWriter) Close() error {
	return w.session.Close()
}

// Assignments converts fused fields into exiftool assignments.
func Assignments(fields []fusion.Field) ([]exiftool.Assignment, error) {
	out := make([]exiftool.Assignment, 0, len(fields))
	for _, field := range fields {
		var op exiftool.Op
		switch field.Op {
		case fusion.OpSet, "":
			op = exiftool.OpSet
		case fusion.OpAdd:
			op = exiftool.OpShift
		default:
			return nil, fmt.Errorf("field %s: unsupported operation %q", field.Key, field.Op)
		}
		out = append(out, exiftool.Assignment{Tag: field.Key, Value: field.Value, Op: op})
	}
	if len(out) == 0 {
		return nil, errors.New("no fields to write")
	}
	return out, nil
}
