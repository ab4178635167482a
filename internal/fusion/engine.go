package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"skytag/internal/logging"
)

// TagWriter writes fields into one file. Implementations must overwrite the
// original file in place.
type TagWriter interface {
	WriteTags(ctx context.Context, path string, fields []Field) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStateRecorder sends every frame state transition to r.
func WithStateRecorder(r StateRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithSkip marks frame indices that already reached TimestampCorrected in an
// earlier run. They are not written again.
func WithSkip(indices []int) Option {
	return func(e *Engine) {
		for _, idx := range indices {
			e.skip[idx] = true
		}
	}
}

// Engine applies fused records to frames one at a time.
type Engine struct {
	writer   TagWriter
	logger   *slog.Logger
	recorder StateRecorder
	skip     map[int]bool
}

// NewEngine builds an engine writing through writer.
func NewEngine(writer TagWriter, opts ...Option) *Engine {
	e := &Engine{writer: writer, skip: make(map[int]bool)}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "fusion")
	return e
}

// FrameResult is the outcome for one frame.
type FrameResult struct {
	Frame   Frame
	State   FrameState
	Err     error
	Skipped bool
}

// Summary aggregates a run.
type Summary struct {
	Frames      int
	TrackLength int
	Tagged      int
	Skipped     int
	BaseFailed  int
	ShiftFailed int
	Elapsed     time.Duration
	Results     []FrameResult
}

// Failed returns the number of frames in a failure state.
func (s Summary) Failed() int {
	return s.BaseFailed + s.ShiftFailed
}

// Apply runs both write phases for one record. Phase 2 is not attempted when
// phase 1 fails, and a phase 2 failure leaves the base tags in place.
func (e *Engine) Apply(ctx context.Context, rec Record) FrameResult {
	frame := rec.Frame
	result := FrameResult{Frame: frame, State: StatePending}
	e.record(ctx, frame, StatePending, nil)

	if err := e.writer.WriteTags(ctx, frame.Path, rec.Fields); err != nil {
		result.Err = &TagWriteError{Frame: frame.Name, Index: frame.Index, Phase: PhaseBase, Err: err}
		e.advance(ctx, &result, StateTaggedBaseFailed)
		return result
	}
	e.advance(ctx, &result, StateTaggedBase)

	if err := e.writer.WriteTags(ctx, frame.Path, []Field{rec.ShiftField()}); err != nil {
		result.Err = &TagWriteError{Frame: frame.Name, Index: frame.Index, Phase: PhaseTimestamp, Err: err}
		e.advance(ctx, &result, StateTimestampCorrectionFailed)
		return result
	}
	e.advance(ctx, &result, StateTimestampCorrected)
	return result
}

// Run fuses and applies every frame in ascending index order. Per-frame write
// failures are logged and counted; a frame without a trackpoint stops the run
// with an IndexMismatchError, as does context cancellation.
func (e *Engine) Run(ctx context.Context, common CommonMetadata, track *Track, frames []Frame) (Summary, error) {
	ordered := append([]Frame(nil), frames...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	start := time.Now()
	summary := Summary{Frames: len(ordered), TrackLength: track.Len()}
	if len(ordered) > track.Len() {
		e.logger.Warn("more frames than trackpoints",
			logging.Int("frames", len(ordered)),
			logging.Int("trackpoints", track.Len()),
			logging.String(logging.FieldEventType, "frame_count_mismatch"),
			logging.String(logging.FieldErrorHint, "check that the caption track covers the whole video"),
			logging.String(logging.FieldImpact, "the run stops at the first frame without telemetry"),
		)
	}

	for _, frame := range ordered {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		rec, err := Fuse(common, track, frame)
		if err != nil {
			summary.Elapsed = time.Since(start)
			logging.ErrorWithContext(e.logger, "frame has no telemetry", "index_mismatch",
				logging.String(logging.FieldFrame, frame.Name),
				logging.Int(logging.FieldFrameIndex, frame.Index),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "telemetry track is shorter than the extracted frames"),
			)
			return summary, err
		}

		if e.skip[frame.Index] {
			summary.Skipped++
			summary.Results = append(summary.Results, FrameResult{Frame: frame, State: StateTimestampCorrected, Skipped: true})
			e.logger.Debug("frame already tagged", logging.String(logging.FieldFrame, frame.Name))
			continue
		}

		result := e.Apply(ctx, rec)
		summary.Results = append(summary.Results, result)
		switch result.State {
		case StateTimestampCorrected:
			summary.Tagged++
			e.logger.Info("frame tagged",
				logging.String(logging.FieldFrame, frame.Name),
				logging.Int(logging.FieldFrameIndex, frame.Index),
			)
		case StateTaggedBaseFailed:
			summary.BaseFailed++
			e.warnFailure(result)
		case StateTimestampCorrectionFailed:
			summary.ShiftFailed++
			e.warnFailure(result)
		}
	}

	summary.Elapsed = time.Since(start)
	e.logger.Info("tagging finished",
		logging.Int("frames", summary.Frames),
		logging.Int("tagged", summary.Tagged),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed()),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (e *Engine) warnFailure(result FrameResult) {
	impact := "frame has no GPS tags"
	if result.State == StateTimestampCorrectionFailed {
		impact = "frame keeps the video CreateDate without its offset"
	}
	logging.WarnWithContext(e.logger, "frame tagging failed", "tag_write_failed",
		logging.String(logging.FieldFrame, result.Frame.Name),
		logging.Int(logging.FieldFrameIndex, result.Frame.Index),
		logging.String("state", string(result.State)),
		logging.Error(result.Err),
		logging.String(logging.FieldErrorHint, "inspect the frame with exiftool and rerun with --resume"),
		logging.String(logging.FieldImpact, impact),
	)
}

func (e *Engine) advance(ctx context.Context, result *FrameResult, to FrameState) {
	if !CanTransition(result.State, to) {
		panic(fmt.Sprintf("fusion: illegal frame transition %s -> %s", result.State, to))
	}
	result.State = to
	e.record(ctx, result.Frame, to, result.Err)
}

func (e *Engine) record(ctx context.Context, frame Frame, state FrameState, cause error) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordState(context.WithoutCancel(ctx), frame, state, cause); err != nil {
		logging.WarnWithContext(e.logger, "frame state not recorded", "journal_write_failed",
			logging.String(logging.FieldFrame, frame.Name),
			logging.String("state", string(state)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "resume may retag this frame"),
		)
	}
}

// IsFatal reports whether err stops a run rather than a single frame.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrTagWrite)
}
