package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"skytag/internal/config"
	"skytag/internal/exiftool"
	"skytag/internal/fusion"
	"skytag/internal/geotrack"
	"skytag/internal/journal"
	"skytag/internal/media/ffmpeg"
	"skytag/internal/media/ffprobe"
	"skytag/internal/pipeline"
	"skytag/internal/telemetry"
	"skytag/internal/testsupport"
)

const probeWithCaptions = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264"},
    {"index": 1, "codec_type": "subtitle", "codec_name": "mov_text"}
  ],
  "format": {"duration": "3.000", "tags": {"creation_time": "2024-05-01T09:30:00.000000Z"}}
}`

const probeWithoutCaptions = `{"streams": [{"index": 0, "codec_type": "video"}], "format": {"duration": "3.0"}}`

func captions(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d\n00:00:%02d,000 --> 00:00:%02d,000\n", i+1, i+1, i+2)
		fmt.Fprintf(&b, "GPS=[10.5, -20.3] H=-5.2 H_S=12.0 SS=1/500 ISO=100 DZOOM=1.0 F=2.8 EV=0 TIMECODE=\"%d,000\"\n\n", i+2)
	}
	return b.String()
}

type fakeProber struct {
	raw string
}

func (p fakeProber) Inspect(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Decode([]byte(p.raw))
}

type fakeExtractor struct {
	t        *testing.T
	srt      string
	frames   int
	srtCalls int
	fmCalls  int
	// fail stops frame extraction after writing partial stills.
	fail    error
	partial int
}

func (e *fakeExtractor) ExtractSubtitles(_ context.Context, _, dest, prefix string) (string, error) {
	e.srtCalls++
	path := filepath.Join(dest, prefix+".srt")
	if err := os.WriteFile(path, []byte(e.srt), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (e *fakeExtractor) ExtractFrames(_ context.Context, _, dest, prefix string) (ffmpeg.FrameSet, error) {
	e.fmCalls++
	if e.fail != nil {
		testsupport.WriteFrames(e.t, dest, prefix, "jpg", e.partial)
		return ffmpeg.FrameSet{}, e.fail
	}
	testsupport.WriteFrames(e.t, dest, prefix, "jpg", e.frames)
	return ffmpeg.FrameSet{Dir: dest, Prefix: prefix, Extension: "jpg", Pattern: ffmpeg.FramePattern(prefix, "jpg")}, nil
}

type write struct {
	name   string
	fields []fusion.Field
}

type fakeSession struct {
	mu         sync.Mutex
	writes     []write
	failBase   map[string]bool
	failShift  map[string]bool
	createDate time.Time
	dateErr    error
	closed     int
}

func (s *fakeSession) WriteTags(_ context.Context, path string, fields []fusion.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := filepath.Base(path)
	s.writes = append(s.writes, write{name: name, fields: fields})
	shift := len(fields) == 1 && fields[0].Op == fusion.OpAdd
	if shift && s.failShift[name] {
		return errors.New("shift rejected")
	}
	if !shift && s.failBase[name] {
		return errors.New("not a valid JPG")
	}
	return nil
}

func (s *fakeSession) ReadCreateDate(context.Context, string) (time.Time, error) {
	if s.dateErr != nil {
		return time.Time{}, s.dateErr
	}
	return s.createDate, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type harness struct {
	cfg       *config.Config
	dest      string
	video     string
	extractor *fakeExtractor
	session   *fakeSession
	opened    int
	store     *journal.Store
	deps      pipeline.Deps
}

func newHarness(t *testing.T, trackpoints, frames int) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	h := &harness{
		cfg:       cfg,
		dest:      filepath.Join(base, "out"),
		video:     filepath.Join(base, "DJI_0001.MP4"),
		extractor: &fakeExtractor{t: t, srt: captions(trackpoints), frames: frames},
		session:   &fakeSession{createDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	testsupport.WriteFile(t, h.video, 1024)
	h.store = testsupport.MustOpenJournal(t, cfg)
	h.deps = pipeline.Deps{
		Check:     func(context.Context, *config.Config, string, string) error { return nil },
		Prober:    fakeProber{raw: probeWithCaptions},
		Extractor: h.extractor,
		OpenSession: func(context.Context) (pipeline.TagSession, error) {
			h.opened++
			return h.session, nil
		},
		Journal: h.store,
	}
	return h
}

func (h *harness) run(t *testing.T, req pipeline.Request) (pipeline.Report, error) {
	t.Helper()
	if req.Video == "" {
		req.Video = h.video
	}
	if req.Destination == "" {
		req.Destination = h.dest
	}
	return pipeline.Run(context.Background(), h.cfg, req, h.deps)
}

func TestRunTagsEveryFrame(t *testing.T) {
	h := newHarness(t, 3, 3)
	report, err := h.run(t, pipeline.Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Prefix != "DJI_0001" {
		t.Fatalf("expected prefix from video name, got %q", report.Prefix)
	}
	if report.Frames != 3 || report.Tagged != 3 || report.Failed() != 0 || report.Trackpoints != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if h.opened != 1 || h.session.closed != 1 {
		t.Fatalf("expected one session opened and closed, got %d/%d", h.opened, h.session.closed)
	}
	if len(h.session.writes) != 6 {
		t.Fatalf("expected two writes per frame, got %d", len(h.session.writes))
	}
	for i := 0; i < 3; i++ {
		base, shift := h.session.writes[2*i], h.session.writes[2*i+1]
		name := fmt.Sprintf("DJI_0001_%06d.jpg", i+1)
		if base.name != name || shift.name != name {
			t.Fatalf("frame %d written out of order: %s, %s", i, base.name, shift.name)
		}
		if base.fields[0].Key != fusion.KeyCreateDate || base.fields[0].Value != "2024:05:01 10:00:00" {
			t.Fatalf("frame %d base create date = %+v", i, base.fields[0])
		}
		want := fmt.Sprintf("0:0:%d", i+2)
		if shift.fields[0].Value != want {
			t.Fatalf("frame %d shift = %q, want %q", i, shift.fields[0].Value, want)
		}
	}

	if report.GeoTrackErr != nil {
		t.Fatalf("unexpected geotrack error: %v", report.GeoTrackErr)
	}
	if report.GeoTrackPath != filepath.Join(h.dest, "DJI_0001.geojson") {
		t.Fatalf("unexpected geotrack path %q", report.GeoTrackPath)
	}
	if _, err := os.Stat(report.GeoTrackPath); err != nil {
		t.Fatalf("geotrack file missing: %v", err)
	}

	run, err := h.store.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != journal.RunCompleted || run.Tagged != 3 {
		t.Fatalf("unexpected journal run %+v", run)
	}
}

func TestRunGeoTrackFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, 2, 2)
	if err := os.MkdirAll(filepath.Join(h.dest, "DJI_0001.geojson", "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}
	report, err := h.run(t, pipeline.Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Tagged != 2 {
		t.Fatalf("expected both frames tagged, got %+v", report)
	}
	if !errors.Is(report.GeoTrackErr, geotrack.ErrAuxiliaryWrite) {
		t.Fatalf("expected auxiliary write error, got %v", report.GeoTrackErr)
	}
}

func TestRunSkipGeoTrack(t *testing.T) {
	h := newHarness(t, 1, 1)
	report, err := h.run(t, pipeline.Request{SkipGeoTrack: true, Prefix: "flight"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.GeoTrackPath != "" {
		t.Fatalf("expected no geotrack export, got %q", report.GeoTrackPath)
	}
	if _, err := os.Stat(filepath.Join(h.dest, "flight.geojson")); !os.IsNotExist(err) {
		t.Fatalf("unexpected geotrack file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.dest, "flight_000001.jpg")); err != nil {
		t.Fatalf("expected frame with custom prefix: %v", err)
	}
}

func TestRunMalformedTelemetryStopsBeforeTagging(t *testing.T) {
	h := newHarness(t, 0, 3)
	h.extractor.srt = "00:00:00,000 --> 00:00:01,000\nH=0 H_S=0 TIMECODE=0\n"
	_, err := h.run(t, pipeline.Request{})
	if !errors.Is(err, telemetry.ErrMalformedTelemetry) {
		t.Fatalf("expected malformed telemetry, got %v", err)
	}
	if h.extractor.fmCalls != 0 || h.opened != 0 {
		t.Fatalf("expected no frame extraction or tag session, got %d/%d", h.extractor.fmCalls, h.opened)
	}
}

func TestRunIndexMismatchIsFatal(t *testing.T) {
	h := newHarness(t, 2, 3)
	report, err := h.run(t, pipeline.Request{})
	if !errors.Is(err, fusion.ErrIndexMismatch) {
		t.Fatalf("expected index mismatch, got %v", err)
	}
	if report.Tagged != 2 {
		t.Fatalf("frames before the gap should be tagged, got %+v", report)
	}
	if h.session.closed != 1 {
		t.Fatalf("session must be closed on fatal error, closed %d times", h.session.closed)
	}
	run, err := h.store.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != journal.RunFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
}

func TestRunRequiresCaptionStream(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.deps.Prober = fakeProber{raw: probeWithoutCaptions}
	_, err := h.run(t, pipeline.Request{})
	if !errors.Is(err, pipeline.ErrNoTelemetry) {
		t.Fatalf("expected ErrNoTelemetry, got %v", err)
	}
	if h.extractor.srtCalls != 0 {
		t.Fatal("captions should not be extracted")
	}
}

func TestRunFallsBackToContainerCreationTime(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.session.dateErr = exiftool.ErrNoCreateDate
	report, err := h.run(t, pipeline.Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	if !report.CreateDate.Equal(want) {
		t.Fatalf("expected container creation time, got %v", report.CreateDate)
	}
	if got := h.session.writes[0].fields[0].Value; got != "2024:05:01 09:30:00" {
		t.Fatalf("unexpected create date written: %q", got)
	}
}

func TestRunWithoutAnyCreateDateFails(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.session.dateErr = exiftool.ErrNoCreateDate
	h.deps.Prober = fakeProber{raw: `{"streams": [{"codec_type": "subtitle"}], "format": {}}`}
	_, err := h.run(t, pipeline.Request{})
	if !errors.Is(err, pipeline.ErrNoCreateDate) {
		t.Fatalf("expected ErrNoCreateDate, got %v", err)
	}
	if h.session.closed != 1 {
		t.Fatalf("session must be closed, closed %d times", h.session.closed)
	}
}

func TestRunResumeSkipsCorrectedFrames(t *testing.T) {
	h := newHarness(t, 3, 3)
	h.session.failShift = map[string]bool{"DJI_0001_000002.jpg": true}
	first, err := h.run(t, pipeline.Request{})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.ShiftFailed != 1 || first.Tagged != 2 {
		t.Fatalf("unexpected first report %+v", first)
	}

	h.session.failShift = nil
	h.session.writes = nil
	second, err := h.run(t, pipeline.Request{Resume: true})
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if !second.FramesReused || h.extractor.fmCalls != 1 || h.extractor.srtCalls != 1 {
		t.Fatalf("resume should reuse extraction output, calls=%d/%d", h.extractor.srtCalls, h.extractor.fmCalls)
	}
	if second.Skipped != 2 || second.Tagged != 1 {
		t.Fatalf("unexpected resumed report %+v", second)
	}
	for _, w := range h.session.writes {
		if w.name != "DJI_0001_000002.jpg" {
			t.Fatalf("resume rewrote %s", w.name)
		}
	}
}

func TestRunResumeAfterReextractionTagsEveryFrame(t *testing.T) {
	h := newHarness(t, 3, 3)
	if _, err := h.run(t, pipeline.Request{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// The second run overwrites every still, then fails before tagging.
	open := h.deps.OpenSession
	h.deps.OpenSession = func(context.Context) (pipeline.TagSession, error) {
		return nil, errors.New("exiftool crashed")
	}
	if _, err := h.run(t, pipeline.Request{}); err == nil {
		t.Fatal("expected the second run to fail")
	}
	h.deps.OpenSession = open

	h.session.writes = nil
	third, err := h.run(t, pipeline.Request{Resume: true})
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if !third.FramesReused || h.extractor.fmCalls != 2 {
		t.Fatalf("resume should reuse the completed re-extraction, reused=%v calls=%d", third.FramesReused, h.extractor.fmCalls)
	}
	if third.Tagged != 3 || third.Skipped != 0 {
		t.Fatalf("overwritten frames must be tagged again, got %+v", third)
	}
}

func TestRunResumeExtractsAgainWithoutVerifiedOutput(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, h *harness)
	}{
		{
			name:    "no previous run",
			prepare: func(*testing.T, *harness) {},
		},
		{
			name: "interrupted extraction",
			prepare: func(t *testing.T, h *harness) {
				if _, err := h.run(t, pipeline.Request{}); err != nil {
					t.Fatalf("first Run: %v", err)
				}
				h.extractor.fail, h.extractor.partial = errors.New("ffmpeg killed"), 1
				if _, err := h.run(t, pipeline.Request{}); err == nil {
					t.Fatal("expected the interrupted run to fail")
				}
				h.extractor.fail, h.extractor.partial = nil, 0
			},
		},
		{
			name: "frame removed",
			prepare: func(t *testing.T, h *harness) {
				if _, err := h.run(t, pipeline.Request{}); err != nil {
					t.Fatalf("first Run: %v", err)
				}
				if err := os.Remove(filepath.Join(h.dest, "DJI_0001_000003.jpg")); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "captions removed",
			prepare: func(t *testing.T, h *harness) {
				if _, err := h.run(t, pipeline.Request{}); err != nil {
					t.Fatalf("first Run: %v", err)
				}
				if err := os.Remove(filepath.Join(h.dest, "DJI_0001.srt")); err != nil {
					t.Fatal(err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3, 3)
			tt.prepare(t, h)
			srtCalls, fmCalls := h.extractor.srtCalls, h.extractor.fmCalls

			report, err := h.run(t, pipeline.Request{Resume: true})
			if err != nil {
				t.Fatalf("resumed Run: %v", err)
			}
			if report.FramesReused || h.extractor.srtCalls != srtCalls+1 || h.extractor.fmCalls != fmCalls+1 {
				t.Fatalf("expected a fresh extraction, reused=%v calls=%d/%d", report.FramesReused, h.extractor.srtCalls, h.extractor.fmCalls)
			}
			if report.Tagged != 3 || report.Skipped != 0 {
				t.Fatalf("every frame must be tagged after a fresh extraction, got %+v", report)
			}
		})
	}
}

func TestRunRejectsLockedDestination(t *testing.T) {
	h := newHarness(t, 1, 1)
	if err := os.MkdirAll(h.dest, 0o755); err != nil {
		t.Fatal(err)
	}
	lock := flock.New(filepath.Join(h.dest, ".DJI_0001.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-lock: %v %v", locked, err)
	}
	defer lock.Unlock()

	_, err = h.run(t, pipeline.Request{})
	if !errors.Is(err, pipeline.ErrDestinationBusy) {
		t.Fatalf("expected ErrDestinationBusy, got %v", err)
	}
	if h.extractor.srtCalls != 0 {
		t.Fatal("no work should start while the destination is locked")
	}
}

func TestRunPreflightFailureIsFatal(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.deps.Check = func(context.Context, *config.Config, string, string) error {
		return errors.New("exiftool not found")
	}
	report, err := h.run(t, pipeline.Request{})
	if err == nil || !strings.Contains(err.Error(), "preflight") {
		t.Fatalf("expected preflight error, got %v", err)
	}
	run, err := h.store.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != journal.RunFailed || !strings.Contains(run.Error, "exiftool not found") {
		t.Fatalf("expected the failed preflight to be journaled, got %s %q", run.Status, run.Error)
	}
}

func TestExiftoolOpenerWritesUTF8Paths(t *testing.T) {
	binary := testsupport.WriteFakeExiftool(t, t.TempDir())
	session, err := pipeline.ExiftoolOpener(binary, nil)(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	err = session.WriteTags(context.Background(), "/frames/vidéo_000001.jpg", []fusion.Field{
		{Key: "CreateDate", Value: "0:0:2", Op: fusion.OpAdd},
	})
	if err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	commands := testsupport.FakeExiftoolCommands(t, binary)
	want := []string{"-charset", "filename=UTF8", "-overwrite_original", "-CreateDate+=0:0:2", "/frames/vidéo_000001.jpg"}
	if len(commands) != 1 || strings.Join(commands[0], "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected commands %q", commands)
	}
}

func TestAssignments(t *testing.T) {
	got, err := pipeline.Assignments([]fusion.Field{
		{Key: "exif:GPSLatitude", Value: "10.5", Op: fusion.OpSet},
		{Key: "CreateDate", Value: "0:0:2", Op: fusion.OpAdd},
	})
	if err != nil {
		t.Fatalf("Assignments: %v", err)
	}
	if got[0].Arg() != "-exif:GPSLatitude=10.5" || got[1].Arg() != "-CreateDate+=0:0:2" {
		t.Fatalf("unexpected args %q %q", got[0].Arg(), got[1].Arg())
	}
	if _, err := pipeline.Assignments(nil); err == nil {
		t.Fatal("expected error for empty field list")
	}
	if _, err := pipeline.Assignments([]fusion.Field{{Key: "X", Op: "-="}}); err == nil {
		t.Fatal("expected error for unknown op")
	}
}
