package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, video, destination, prefix, status, started_at, finished_at, frames, tagged, skipped, failed, error, extraction, extracted_frames`

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		status     string
		started    string
		finished   sql.NullString
		errText    sql.NullString
		extraction string
	)
	if err := scanner.Scan(
		&run.ID, &run.Video, &run.Destination, &run.Prefix, &status, &started, &finished,
		&run.Frames, &run.Tagged, &run.Skipped, &run.Failed, &errText,
		&extraction, &run.ExtractedFrames,
	); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	run.Error = errText.String
	run.Extraction = ExtractionState(extraction)
	return &run, nil
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
