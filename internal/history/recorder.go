// Package history records toolchain runs in the SQLite history database.
package history

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/rmrfslashbin/avrflash/internal/db"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/rmrfslashbin/avrflash/pkg/models"
)

// Recorder writes one row per operation. A nil *Recorder records nothing.
type Recorder struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes the history database at path.
func Open(path string, logger *slog.Logger) (*Recorder, error) {
	database, err := db.InitDatabase(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: database, logger: logger}, nil
}

// NewRecorder wraps an already initialized database.
func NewRecorder(database *sql.DB, logger *slog.Logger) *Recorder {
	return &Recorder{db: database, logger: logger}
}

// DB returns the underlying database, or nil when history is disabled.
func (r *Recorder) DB() *sql.DB {
	if r == nil {
		return nil
	}
	return r.db
}

// Close closes the database.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}

// Record stores the outcome of an operation. Write failures are logged, not
// returned.
func (r *Recorder) Record(project string, op models.Operation, started time.Time, imageBytes int, opErr error) *models.Run {
	run := NewRun(project, op, started, imageBytes, opErr)
	if r == nil {
		return run
	}
	if err := db.InsertRun(r.db, run); err != nil {
		r.logger.Warn("failed to record run", "project", project, "operation", op, "error", err)
	}
	return run
}

// NewRun builds the history row for an operation outcome.
func NewRun(project string, op models.Operation, started time.Time, imageBytes int, opErr error) *models.Run {
	run := &models.Run{
		Project:    project,
		Operation:  op,
		Status:     models.StatusOK,
		ImageBytes: imageBytes,
		StartedAt:  started,
		Duration:   time.Since(started),
	}
	if opErr == nil {
		return run
	}

	run.Status = models.StatusFailed
	run.Error = opErr.Error()
	run.ExitCode = -1

	var perr *toolchain.ProcessError
	if errors.As(opErr, &perr) {
		run.ExitCode = perr.ExitCode
		run.StderrTail = perr.StderrTail
	}
	return run
}
