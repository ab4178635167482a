package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"skytag/internal/config"
	"skytag/internal/fusion"
	"skytag/internal/journal"
	"skytag/internal/logging"
	"skytag/internal/media/ffprobe"
)

// reusableExtraction reports whether a resumed run may keep the captions and
// stills already in the destination. That needs a completed extraction in the
// journal whose frame count still matches the stills on disk; anything else is
// extracted again.
func reusableExtraction(ctx context.Context, cfg *config.Config, req Request, j Journal, target journal.Target, logger *slog.Logger) (bool, error) {
	if !req.Resume {
		return false, nil
	}
	if j == nil {
		logging.WarnWithContext(logger, "resume requested without a journal", "resume_without_journal",
			logging.String(logging.FieldErrorHint, "enable the journal to resume interrupted runs"),
			logging.String(logging.FieldImpact, "captions and frames are extracted and tagged again"),
		)
		return false, nil
	}
	last, err := j.LastExtraction(ctx, target)
	if err != nil {
		return false, fmt.Errorf("load resume state: %w", err)
	}
	if last == nil || last.Extraction != journal.ExtractionCompleted {
		logger.Info("no completed extraction to resume from; extracting again")
		return false, nil
	}
	if !fileExists(captionPath(req)) {
		logger.Info("extracted captions are missing; extracting again", logging.String("path", captionPath(req)))
		return false, nil
	}
	existing, err := fusion.ListFrames(req.Destination, req.Prefix, cfg.Extraction.ImageExtension)
	if err != nil {
		return false, err
	}
	if len(existing) == 0 || len(existing) != last.ExtractedFrames {
		logger.Info("extracted frames changed since the last extraction; extracting again",
			logging.Int("expected", last.ExtractedFrames),
			logging.Int("found", len(existing)),
		)
		return false, nil
	}
	logger.Info("reusing extraction output",
		logging.String("extracted_by", last.ID),
		logging.Int("frames", len(existing)),
	)
	return true, nil
}

// loadFrames extracts the stills and lists them. Reused stills are only
// listed: re-extracting would overwrite them and drop their tags.
func loadFrames(ctx context.Context, cfg *config.Config, req Request, reuse bool, extractor Extractor, logger *slog.Logger) ([]fusion.Frame, error) {
	ext := cfg.Extraction.ImageExtension
	if reuse {
		return fusion.ListFrames(req.Destination, req.Prefix, ext)
	}

	start := time.Now()
	set, err := extractor.ExtractFrames(ctx, req.Video, req.Destination, req.Prefix)
	if err != nil {
		return nil, err
	}
	if set.Extension != "" {
		ext = set.Extension
	}
	frames, err := fusion.ListFrames(req.Destination, req.Prefix, ext)
	if err != nil {
		return nil, err
	}
	logger.Info("frames extracted",
		logging.Int("frames", len(frames)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return frames, nil
}

// resolveCreateDate prefers the exiftool reading and falls back to the
// container creation_time reported by ffprobe.
func resolveCreateDate(ctx context.Context, session TagSession, video string, probe ffprobe.Result, logger *slog.Logger) (time.Time, error) {
	createDate, err := session.ReadCreateDate(ctx, video)
	if err == nil {
		return createDate, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return time.Time{}, ctxErr
	}
	if fallback, ok := probe.CreationTime(); ok {
		logging.WarnWithContext(logger, "using container creation time", "create_date_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "exiftool could not read CreateDate from the video"),
			logging.String(logging.FieldImpact, "frame timestamps are derived from the ffprobe creation_time"),
		)
		return fallback.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%s: %w", video, errors.Join(ErrNoCreateDate, err))
}

func captionPath(req Request) string {
	return filepath.Join(req.Destination, req.Prefix+".srt")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
