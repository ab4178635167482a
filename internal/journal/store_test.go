package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"skytag/internal/fusion"
	"skytag/internal/journal"
	"skytag/internal/testsupport"
)

var target = journal.Target{Video: "/videos/DJI_0001.MP4", Destination: "/frames", Prefix: "DJI_0001"}

func frame(i int) fusion.Frame {
	return fusion.Frame{Index: i, Counter: i + 1, Name: "f", Path: "/frames/f"}
}

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	if store.Path() != cfg.JournalPath() {
		t.Fatalf("unexpected journal path %q", store.Path())
	}
	if _, err := store.BeginRun(context.Background(), "run-1", target); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("run lost across reopen: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run, err := store.BeginRun(ctx, "", target)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if len(run.ID) != 36 || run.Status != journal.RunRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	recorder := store.Recorder(run.ID)
	for _, state := range []fusion.FrameState{fusion.StatePending, fusion.StateTaggedBase, fusion.StateTimestampCorrected} {
		if err := recorder.RecordState(ctx, frame(0), state, nil); err != nil {
			t.Fatalf("RecordState: %v", err)
		}
	}
	if err := recorder.RecordState(ctx, frame(1), fusion.StatePending, nil); err != nil {
		t.Fatal(err)
	}
	if err := recorder.RecordState(ctx, frame(1), fusion.StateTaggedBaseFailed, errors.New("not a valid JPG")); err != nil {
		t.Fatal(err)
	}

	if err := store.FinishRun(ctx, run.ID, journal.Outcome{Frames: 2, Tagged: 1, Failed: 1}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	fetched, err := store.GetRun(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if fetched.Status != journal.RunPartial || fetched.Tagged != 1 || fetched.Failed != 1 || fetched.FinishedAt.IsZero() {
		t.Fatalf("unexpected finished run %+v", fetched)
	}

	states, err := store.FrameStates(ctx, run.ID)
	if err != nil {
		t.Fatalf("FrameStates: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected one row per frame, got %d", len(states))
	}
	if states[0].State != fusion.StateTimestampCorrected || states[0].Error != "" {
		t.Fatalf("unexpected frame 0 record %+v", states[0])
	}
	if states[1].State != fusion.StateTaggedBaseFailed || states[1].Error != "not a valid JPG" {
		t.Fatalf("unexpected frame 1 record %+v", states[1])
	}
}

func TestFinishRunStatuses(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ok, _ := store.BeginRun(ctx, "ok", target)
	failed, _ := store.BeginRun(ctx, "failed", target)
	if err := store.FinishRun(ctx, ok.ID, journal.Outcome{Frames: 3, Tagged: 3}); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, failed.ID, journal.Outcome{Err: errors.New("index mismatch")}); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, "missing", journal.Outcome{}); !errors.Is(err, journal.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "failed" {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	if runs[0].Status != journal.RunFailed || runs[0].Error != "index mismatch" {
		t.Fatalf("unexpected failed run %+v", runs[0])
	}
	if runs[1].Status != journal.RunCompleted {
		t.Fatalf("unexpected completed run %+v", runs[1])
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns limit: %v, %d", err, len(limited))
	}
}

func TestCorrectedFramesUsesLatestState(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, _ := store.BeginRun(ctx, "first", target)
	for i := 0; i < 3; i++ {
		if err := store.RecordState(ctx, first.ID, frame(i), fusion.StateTimestampCorrected, nil); err != nil {
			t.Fatal(err)
		}
	}
	second, _ := store.BeginRun(ctx, "second", target)
	if err := store.RecordState(ctx, second.ID, frame(1), fusion.StateTimestampCorrectionFailed, errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	other, _ := store.BeginRun(ctx, "other", journal.Target{Video: target.Video, Destination: "/elsewhere", Prefix: target.Prefix})
	if err := store.RecordState(ctx, other.ID, frame(5), fusion.StateTimestampCorrected, nil); err != nil {
		t.Fatal(err)
	}

	got, err := store.CorrectedFrames(ctx, target)
	if err != nil {
		t.Fatalf("CorrectedFrames: %v", err)
	}
	if !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("expected frames 0 and 2, got %v", got)
	}
}

func TestCorrectedFramesIgnoresStatesBeforeExtraction(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, _ := store.BeginRun(ctx, "first", target)
	if err := store.CompleteExtraction(ctx, first.ID, 3); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := store.RecordState(ctx, first.ID, frame(i), fusion.StateTimestampCorrected, nil); err != nil {
			t.Fatal(err)
		}
	}

	// A later run overwrites the stills and stops before tagging any of them.
	second, _ := store.BeginRun(ctx, "second", target)
	if err := store.StartExtraction(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	got, err := store.CorrectedFrames(ctx, target)
	if err != nil {
		t.Fatalf("CorrectedFrames: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no corrected frames after re-extraction, got %v", got)
	}

	third, _ := store.BeginRun(ctx, "third", target)
	if err := store.RecordState(ctx, third.ID, frame(2), fusion.StateTimestampCorrected, nil); err != nil {
		t.Fatal(err)
	}
	got, err = store.CorrectedFrames(ctx, target)
	if err != nil {
		t.Fatalf("CorrectedFrames: %v", err)
	}
	if !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("expected only frame 2 from the resumed run, got %v", got)
	}
}

func TestLastExtraction(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run, err := store.LastExtraction(ctx, target)
	if err != nil || run != nil {
		t.Fatalf("expected no extraction on a fresh journal, got %+v, %v", run, err)
	}

	first, _ := store.BeginRun(ctx, "first", target)
	if err := store.StartExtraction(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteExtraction(ctx, first.ID, 12); err != nil {
		t.Fatal(err)
	}
	second, _ := store.BeginRun(ctx, "second", target)
	if err := store.StartExtraction(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	// Runs that reuse output do not count.
	if _, err := store.BeginRun(ctx, "third", target); err != nil {
		t.Fatal(err)
	}

	run, err = store.LastExtraction(ctx, target)
	if err != nil {
		t.Fatalf("LastExtraction: %v", err)
	}
	if run == nil || run.ID != "second" || run.Extraction != journal.ExtractionStarted {
		t.Fatalf("expected the interrupted extraction of run second, got %+v", run)
	}

	stored, err := store.GetRun(ctx, "first")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Extraction != journal.ExtractionCompleted || stored.ExtractedFrames != 12 {
		t.Fatalf("unexpected extraction record %q/%d", stored.Extraction, stored.ExtractedFrames)
	}

	if err := store.StartExtraction(ctx, "missing"); !errors.Is(err, journal.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	if _, err := store.GetRun(context.Background(), "nope"); !errors.Is(err, journal.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := store.GetRun(context.Background(), ""); !errors.Is(err, journal.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for empty id, got %v", err)
	}
}

func TestOpenPathRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := journal.OpenPath(path); !errors.Is(err, journal.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
