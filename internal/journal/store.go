package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"skytag/internal/config"
	"skytag/internal/fusion"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database in the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JournalPath())
}

// OpenPath opens the journal at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a running run. An empty id is replaced with a new UUID.
func (s *Store) BeginRun(ctx context.Context, id string, target Target) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, video, destination, prefix, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, target.Video, target.Destination, target.Prefix, RunRunning, now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{
		ID:          id,
		Video:       target.Video,
		Destination: target.Destination,
		Prefix:      target.Prefix,
		Status:      RunRunning,
		StartedAt:   now,
	}, nil
}

// RecordState stores the latest state of a frame within a run.
func (s *Store) RecordState(ctx context.Context, runID string, frame fusion.Frame, state fusion.FrameState, cause error) error {
	var errText any
	if cause != nil {
		errText = cause.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO frames (run_id, frame_index, name, path, state, error, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (run_id, frame_index) DO UPDATE SET
            name = excluded.name,
            path = excluded.path,
            state = excluded.state,
            error = excluded.error,
            updated_at = excluded.updated_at`,
		runID, frame.Index, frame.Name, frame.Path, string(state), errText, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record frame state: %w", err)
	}
	return nil
}

// Recorder binds the store to one run so it can be handed to the fusion engine.
func (s *Store) Recorder(runID string) fusion.StateRecorder {
	return runRecorder{store: s, runID: runID}
}

type runRecorder struct {
	store *Store
	runID string
}

func (r runRecorder) RecordState(ctx context.Context, frame fusion.Frame, state fusion.FrameState, cause error) error {
	return r.store.RecordState(ctx, r.runID, frame, state, cause)
}

// FinishRun stores the outcome and final status of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, outcome Outcome) error {
	status := RunCompleted
	var errText any
	switch {
	case outcome.Err != nil:
		status = RunFailed
		errText = outcome.Err.Error()
	case outcome.Failed > 0:
		status = RunPartial
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, frames = ?, tagged = ?, skipped = ?, failed = ?, error = ?
         WHERE id = ?`,
		status, time.Now().UTC().Format(timeLayout),
		outcome.Frames, outcome.Tagged, outcome.Skipped, outcome.Failed, errText, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// StartExtraction marks runID as rewriting the captions and stills of its
// target. Frame states recorded by earlier runs no longer count for resume.
func (s *Store) StartExtraction(ctx context.Context, runID string) error {
	return s.setExtraction(ctx, runID, ExtractionStarted, 0)
}

// CompleteExtraction records that runID finished writing frames stills.
func (s *Store) CompleteExtraction(ctx context.Context, runID string, frames int) error {
	return s.setExtraction(ctx, runID, ExtractionCompleted, frames)
}

func (s *Store) setExtraction(ctx context.Context, runID string, state ExtractionState, frames int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET extraction = ?, extracted_frames = ? WHERE id = ?`,
		string(state), frames, runID,
	)
	if err != nil {
		return fmt.Errorf("record extraction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record extraction %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// LastExtraction returns the latest run over target that started an
// extraction, or nil when none did.
func (s *Store) LastExtraction(ctx context.Context, target Target) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs
         WHERE video = ? AND destination = ? AND prefix = ? AND extraction != ''
         ORDER BY rowid DESC LIMIT 1`,
		target.Video, target.Destination, target.Prefix,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CorrectedFrames returns the frame indices whose most recent stored state for
// target is TimestampCorrected. Only runs since the latest extraction count:
// older states describe stills that have since been overwritten.
func (s *Store) CorrectedFrames(ctx context.Context, target Target) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.frame_index, f.state
         FROM frames f JOIN runs r ON r.id = f.run_id
         WHERE r.video = ? AND r.destination = ? AND r.prefix = ?
           AND r.rowid >= (
               SELECT COALESCE(MAX(rowid), 0) FROM runs
               WHERE video = ? AND destination = ? AND prefix = ? AND extraction != '')
         ORDER BY f.updated_at, r.rowid`,
		target.Video, target.Destination, target.Prefix,
		target.Video, target.Destination, target.Prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("query corrected frames: %w", err)
	}
	defer rows.Close()

	latest := make(map[int]fusion.FrameState)
	for rows.Next() {
		var (
			index int
			state string
		)
		if err := rows.Scan(&index, &state); err != nil {
			return nil, fmt.Errorf("scan frame state: %w", err)
		}
		latest[index] = fusion.FrameState(state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frame states: %w", err)
	}

	var indices []int
	for index, state := range latest {
		if state == fusion.StateTimestampCorrected {
			indices = append(indices, index)
		}
	}
	sort.Ints(indices)
	return indices, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches a run by id. A unique id prefix is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY started_at DESC, rowid DESC LIMIT 2`,
		id, escapeLike(id)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		if run.ID == id {
			return run, nil
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// FrameStates returns the stored frame states of a run ordered by index.
func (s *Store) FrameStates(ctx context.Context, runID string) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, frame_index, name, path, state, error, updated_at
         FROM frames WHERE run_id = ? ORDER BY frame_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query frame states: %w", err)
	}
	defer rows.Close()

	var records []FrameRecord
	for rows.Next() {
		var (
			rec     FrameRecord
			state   string
			errText sql.NullString
			updated string
		)
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Name, &rec.Path, &state, &errText, &updated); err != nil {
			return nil, fmt.Errorf("scan frame state: %w", err)
		}
		parsed, err := fusion.ParseFrameState(state)
		if err != nil {
			return nil, err
		}
		rec.State = parsed
		rec.Error = errText.String
		rec.UpdatedAt = parseTime(updated)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frame states: %w", err)
	}
	return records, nil
}
