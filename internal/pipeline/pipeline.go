package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"skytag/internal/config"
	"skytag/internal/fusion"
	"skytag/internal/geotrack"
	"skytag/internal/journal"
	"skytag/internal/logging"
	"skytag/internal/telemetry"
)

var (
	// ErrDestinationBusy is returned when another run holds the destination lock.
	ErrDestinationBusy = errors.New("destination is locked by another run")
	// ErrNoTelemetry is returned when the video carries no caption track.
	ErrNoTelemetry = errors.New("video has no telemetry caption track")
	// ErrNoCreateDate is returned when neither exiftool nor ffprobe report a creation date.
	ErrNoCreateDate = errors.New("video has no creation date")
)

// Request describes one extract invocation.
type Request struct {
	// RunID names the journal run; empty lets the journal assign one.
	RunID       string
	Video       string
	Destination string
	// Prefix defaults to the video file name without extension.
	Prefix string
	// Resume reuses the output of the last completed extraction and skips
	// frames a run since then already finished.
	Resume       bool
	SkipGeoTrack bool
}

// Report summarizes a run.
type Report struct {
	RunID        string
	Video        string
	Destination  string
	Prefix       string
	Trackpoints  int
	Frames       int
	Tagged       int
	Skipped      int
	BaseFailed   int
	ShiftFailed  int
	FramesReused bool
	CreateDate   time.Time
	GeoTrackPath string
	GeoTrackErr  error
	Elapsed      time.Duration
}

// Failed returns the number of frames left in a failure state.
func (r Report) Failed() int {
	return r.BaseFailed + r.ShiftFailed
}

// Run executes the extract workflow. Fatal errors are returned; per-frame
// tag failures are only counted in the report.
func Run(ctx context.Context, cfg *config.Config, req Request, d Deps) (report Report, err error) {
	if cfg == nil {
		return Report{}, errors.New("pipeline: nil config")
	}
	start := time.Now()
	logger := logging.NewComponentLogger(d.Logger, "pipeline")
	d = d.withDefaults(cfg, d.Logger)

	req, err = resolveRequest(req)
	if err != nil {
		return Report{}, err
	}
	report = Report{Video: req.Video, Destination: req.Destination, Prefix: req.Prefix}
	defer func() { report.Elapsed = time.Since(start) }()

	if err := os.MkdirAll(req.Destination, 0o755); err != nil {
		return report, fmt.Errorf("create destination: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return report, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(filepath.Join(req.Destination, "."+req.Prefix+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("acquire destination lock: %w", err)
	}
	if !locked {
		return report, fmt.Errorf("%s: %w", req.Destination, ErrDestinationBusy)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release destination lock", logging.Error(unlockErr))
		}
	}()

	target := journal.Target{Video: req.Video, Destination: req.Destination, Prefix: req.Prefix}
	report.RunID = req.RunID
	if d.Journal != nil {
		run, beginErr := d.Journal.BeginRun(ctx, req.RunID, target)
		if beginErr != nil {
			return report, fmt.Errorf("begin run: %w", beginErr)
		}
		report.RunID = run.ID
		defer func() {
			outcome := journal.Outcome{
				Frames:  report.Frames,
				Tagged:  report.Tagged,
				Skipped: report.Skipped,
				Failed:  report.Failed(),
				Err:     err,
			}
			if finishErr := d.Journal.FinishRun(context.WithoutCancel(ctx), report.RunID, outcome); finishErr != nil {
				logger.Warn("failed to finish journal run", logging.Error(finishErr))
			}
		}()
	}
	if report.RunID != "" {
		ctx = logging.WithRunID(ctx, report.RunID)
	}
	logger = logging.WithContext(ctx, logger)
	logger.Debug("run started",
		logging.String("video", req.Video),
		logging.String("destination", req.Destination),
		logging.Bool("resume", req.Resume),
	)

	if err := d.Check(ctx, cfg, req.Video, req.Destination); err != nil {
		return report, fmt.Errorf("preflight: %w", err)
	}

	probe, err := d.Prober.Inspect(ctx, req.Video)
	if err != nil {
		return report, fmt.Errorf("inspect video: %w", err)
	}
	if streams := probe.SubtitleStreamCount(); streams <= cfg.Extraction.SubtitleStream {
		return report, fmt.Errorf("%s (found %d caption streams, want index %d): %w",
			req.Video, streams, cfg.Extraction.SubtitleStream, ErrNoTelemetry)
	}

	reuse, err := reusableExtraction(ctx, cfg, req, d.Journal, target, logger)
	if err != nil {
		return report, err
	}
	report.FramesReused = reuse
	if !reuse && d.Journal != nil {
		if err := d.Journal.StartExtraction(ctx, report.RunID); err != nil {
			return report, err
		}
	}

	points, err := loadTelemetry(ctx, cfg, req, reuse, d.Extractor, logger)
	if err != nil {
		return report, err
	}
	report.Trackpoints = len(points)
	track, err := fusion.NewTrack(points)
	if err != nil {
		return report, err
	}

	var export *geotrack.Export
	if cfg.GeoTrack.Enabled && !req.SkipGeoTrack {
		path := filepath.Join(req.Destination, req.Prefix+"."+cfg.GeoTrack.Extension)
		export = geotrack.ExportAsync(ctx, d.Logger, path, points, geotrack.Options{CRS: cfg.GeoTrack.CRS, Indent: true})
		report.GeoTrackPath = path
	}
	defer func() {
		report.GeoTrackErr = export.Wait()
	}()

	frames, err := loadFrames(ctx, cfg, req, reuse, d.Extractor, logger)
	if err != nil {
		return report, err
	}
	if !reuse && d.Journal != nil {
		if err := d.Journal.CompleteExtraction(ctx, report.RunID, len(frames)); err != nil {
			return report, err
		}
	}

	session, err := d.OpenSession(ctx)
	if err != nil {
		return report, fmt.Errorf("open tag session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logging.WarnWithContext(logger, "tag session did not close cleanly", "tag_session_close_failed",
				logging.Error(closeErr),
				logging.String(logging.FieldErrorHint, "inspect the log for exiftool errors"),
				logging.String(logging.FieldImpact, "tags already written are kept"),
			)
		}
	}()

	createDate, err := resolveCreateDate(ctx, session, req.Video, probe, logger)
	if err != nil {
		return report, err
	}
	report.CreateDate = createDate
	common := fusion.CommonMetadata{
		CreateDate:        createDate,
		FocalLength:       cfg.Camera.FocalLength,
		FocalLengthIn35mm: cfg.Camera.FocalLength35mm,
	}

	engineOpts := []fusion.Option{fusion.WithLogger(logging.WithContext(ctx, d.Logger))}
	if d.Journal != nil {
		if reuse {
			corrected, err := d.Journal.CorrectedFrames(ctx, target)
			if err != nil {
				return report, fmt.Errorf("load resume state: %w", err)
			}
			engineOpts = append(engineOpts, fusion.WithSkip(corrected))
		}
		engineOpts = append(engineOpts, fusion.WithStateRecorder(d.Journal.Recorder(report.RunID)))
	}

	logger.Info("tagging frames",
		logging.Int("frames", len(frames)),
		logging.Int("trackpoints", track.Len()),
		logging.String("create_date", createDate.Format(fusion.DateLayout)),
	)
	engine := fusion.NewEngine(session, engineOpts...)
	summary, runErr := engine.Run(ctx, common, track, frames)
	report.Frames = summary.Frames
	report.Tagged = summary.Tagged
	report.Skipped = summary.Skipped
	report.BaseFailed = summary.BaseFailed
	report.ShiftFailed = summary.ShiftFailed
	if runErr != nil {
		return report, runErr
	}

	logger.Info("frames tagged",
		logging.Int("tagged", report.Tagged),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed()),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return report, nil
}

func resolveRequest(req Request) (Request, error) {
	video := strings.TrimSpace(req.Video)
	if video == "" {
		return req, errors.New("video path is required")
	}
	absVideo, err := filepath.Abs(video)
	if err != nil {
		return req, fmt.Errorf("resolve video path: %w", err)
	}
	req.Video = absVideo

	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		dest = "."
	}
	if dest, err = config.ExpandPath(dest); err != nil {
		return req, fmt.Errorf("resolve destination: %w", err)
	}
	if req.Destination, err = filepath.Abs(dest); err != nil {
		return req, fmt.Errorf("resolve destination: %w", err)
	}

	if strings.TrimSpace(req.Prefix) == "" {
		base := filepath.Base(absVideo)
		req.Prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return req, nil
}

func loadTelemetry(ctx context.Context, cfg *config.Config, req Request, reuse bool, extractor Extractor, logger *slog.Logger) ([]telemetry.Trackpoint, error) {
	order, err := telemetry.ParseGPSOrder(cfg.Telemetry.GPSOrder)
	if err != nil {
		return nil, err
	}

	srtPath := captionPath(req)
	if !reuse {
		srtPath, err = extractor.ExtractSubtitles(ctx, req.Video, req.Destination, req.Prefix)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("reusing extracted captions", logging.String("path", srtPath))
	}

	points, err := telemetry.ParseFile(srtPath, telemetry.WithGPSOrder(order))
	if err != nil {
		return nil, err
	}
	logger.Info("telemetry parsed",
		logging.String("path", srtPath),
		logging.Int("trackpoints", len(points)),
	)
	return points, nil
}
