package journal

import (
	"time"

	"skytag/internal/fusion"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	// RunPartial finished the loop with at least one failed frame.
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// Run is one extract invocation.
type Run struct {
	ID          string
	Video       string
	Destination string
	Prefix      string
	Status      RunStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	Frames      int
	Tagged      int
	Skipped     int
	Failed      int
	Error       string
	// Extraction is ExtractionNone when the run reused earlier output.
	Extraction      ExtractionState
	ExtractedFrames int
}

// ExtractionState tracks whether a run rewrote the captions and stills of its
// target.
type ExtractionState string

const (
	ExtractionNone      ExtractionState = ""
	ExtractionStarted   ExtractionState = "started"
	ExtractionCompleted ExtractionState = "completed"
)

// Target identifies the inputs a run works on. Resume only trusts runs with
// an identical target.
type Target struct {
	Video       string
	Destination string
	Prefix      string
}

// Outcome is what FinishRun stores.
type Outcome struct {
	Frames  int
	Tagged  int
	Skipped int
	Failed  int
	Err     error
}

// FrameRecord is the last stored state of a frame within a run.
type FrameRecord struct {
	RunID     string
	Index     int
	Name      string
	Path      string
	State     fusion.FrameState
	Error     string
	UpdatedAt time.Time
}
