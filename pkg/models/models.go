// Package models defines the data structures used throughout the application.
package models

import (
	"fmt"
	"time"
)

// Operation identifies which toolchain operation a run executed.
type Operation string

const (
	// OperationCompile compiles a sketch and converts it to a hex image.
	OperationCompile Operation = "compile"
	// OperationUpload writes a hex image onto the device.
	OperationUpload Operation = "upload"
	// OperationFlash runs compile followed by upload.
	OperationFlash Operation = "flash"
)

// ParseOperation returns the Operation named by s.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationCompile, OperationUpload, OperationFlash:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q (must be compile, upload or flash)", s)
}

// Status is the outcome of a run.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Run is one recorded execution of a toolchain operation.
type Run struct {
	ID         int64         `json:"id"`
	Project    string        `json:"project"`
	Operation  Operation     `json:"operation"`
	Status     Status        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Error      string        `json:"error,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	ImageBytes int           `json:"image_bytes"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// RunQuery filters a history listing.
type RunQuery struct {
	Project   string
	Operation *Operation
	Limit     int
	Offset    int
}

// HistoryStats summarizes the run history.
type HistoryStats struct {
	TotalRuns      int       `json:"total_runs"`
	FailedRuns     int       `json:"failed_runs"`
	CompileRuns    int       `json:"compile_runs"`
	UploadRuns     int       `json:"upload_runs"`
	FlashRuns      int       `json:"flash_runs"`
	Projects       int       `json:"projects"`
	LastUploadedAt time.Time `json:"last_uploaded_at,omitempty"`
}
