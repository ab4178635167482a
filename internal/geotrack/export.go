package geotrack

import (
	"context"
	"log/slog"
	"time"

	"skytag/internal/logging"
	"skytag/internal/telemetry"
)

// Export is a track write running in the background.
type Export struct {
	path string
	done chan struct{}
	err  error
}

// ExportAsync starts writing the track file and returns immediately. The
// outcome is logged; Wait only reports it to callers that want to join.
func ExportAsync(ctx context.Context, logger *slog.Logger, path string, points []telemetry.Trackpoint, opts Options) *Export {
	logger = logging.NewComponentLogger(logger, "geotrack")
	exp := &Export{path: path, done: make(chan struct{})}
	go func() {
		defer close(exp.done)
		start := time.Now()
		if err := ctx.Err(); err != nil {
			exp.err = &AuxiliaryWriteError{Path: path, Err: err}
		} else {
			exp.err = WriteFile(path, points, opts)
		}
		if exp.err != nil {
			logging.WarnWithContext(logger, "track export failed", "geotrack_write_failed",
				logging.String("path", path),
				logging.Error(exp.err),
				logging.String(logging.FieldErrorHint, "check destination permissions and free space"),
				logging.String(logging.FieldImpact, "frames are still tagged; no track file for this run"),
			)
			return
		}
		logger.Info("track exported",
			logging.String("path", path),
			logging.Int("points", len(points)),
			logging.Duration("elapsed", time.Since(start)),
		)
	}()
	return exp
}

// Path returns the destination of the export.
func (e *Export) Path() string {
	if e == nil {
		return ""
	}
	return e.path
}

// Wait blocks until the export finishes and returns its error, if any.
func (e *Export) Wait() error {
	if e == nil {
		return nil
	}
	<-e.done
	return e.err
}
