package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rmrfslashbin/avrflash/pkg/models"
)

// InsertRun records a run and sets its ID.
func InsertRun(db *sql.DB, run *models.Run) error {
	res, err := db.Exec(`
		INSERT INTO runs
		(project, operation, status, exit_code, error, stderr_tail, image_bytes, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Project,
		run.Operation,
		run.Status,
		run.ExitCode,
		nullString(run.Error),
		nullString(run.StderrTail),
		run.ImageBytes,
		run.StartedAt.UnixMilli(),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns runs newest first, optionally filtered by project and
// operation.
func ListRuns(db *sql.DB, q models.RunQuery) ([]models.Run, error) {
	query := `
		SELECT id, project, operation, status, exit_code, error, stderr_tail,
			image_bytes, started_at, duration_ms
		FROM runs
		WHERE 1 = 1
	`
	args := []interface{}{}

	if q.Project != "" {
		query += " AND project = ?"
		args = append(args, q.Project)
	}

	if q.Operation != nil {
		query += " AND operation = ?"
		args = append(args, *q.Operation)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		var errText, stderrTail sql.NullString
		var startedAt, durationMs int64

		err := rows.Scan(
			&run.ID,
			&run.Project,
			&run.Operation,
			&run.Status,
			&run.ExitCode,
			&errText,
			&stderrTail,
			&run.ImageBytes,
			&startedAt,
			&durationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.Error = errText.String
		run.StderrTail = stderrTail.String
		run.StartedAt = time.UnixMilli(startedAt)
		run.Duration = time.Duration(durationMs) * time.Millisecond

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetStats retrieves history statistics.
func GetStats(db *sql.DB) (*models.HistoryStats, error) {
	var stats models.HistoryStats
	var lastUpload sql.NullInt64

	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM runs) as total_runs,
			(SELECT COUNT(*) FROM runs WHERE status = 'failed') as failed_runs,
			(SELECT COUNT(*) FROM runs WHERE operation = 'compile') as compile_runs,
			(SELECT COUNT(*) FROM runs WHERE operation = 'upload') as upload_runs,
			(SELECT COUNT(*) FROM runs WHERE operation = 'flash') as flash_runs,
			(SELECT COUNT(DISTINCT project) FROM runs) as projects,
			(SELECT MAX(started_at) FROM runs
				WHERE operation IN ('upload', 'flash') AND status = 'ok') as last_upload
	`).Scan(
		&stats.TotalRuns,
		&stats.FailedRuns,
		&stats.CompileRuns,
		&stats.UploadRuns,
		&stats.FlashRuns,
		&stats.Projects,
		&lastUpload,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	if lastUpload.Valid {
		stats.LastUploadedAt = time.UnixMilli(lastUpload.Int64)
	}

	return &stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
