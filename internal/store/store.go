package store

import (
	"errors"
	"fmt"
	"strings"
)

// Store persists the outcome of bound computations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically writes the record of a run, replacing any
	// previous record with the same RunID.
	SaveRun(record *Record) error

	// LoadRun returns the record for runID, or ErrNotFound.
	LoadRun(runID string) (*Record, error)

	// ListRuns returns a summary of every stored run, oldest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the record and trace of runID, or returns
	// ErrNotFound.
	DeleteRun(runID string) error

	// LoadTrace returns the committed search steps of runID, or
	// ErrNotFound when the run has no trace.
	LoadTrace(runID string) ([]TraceEntry, error)
}

// ErrInvalidRunID is returned for run ids that are empty or would leave
// the run directory.
var ErrInvalidRunID = errors.New("invalid run id")

// CheckRunID rejects ids that cannot name a single run directory.
func CheckRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
