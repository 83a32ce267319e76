package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned by a data source that has nothing for the
// requested key. It is an expected outcome, not a failure.
var ErrUnavailable = errors.New("data unavailable")

// MalformedInputError reports file content that does not follow its format.
// Line is 1-based; zero means the problem concerns the file as a whole.
type MalformedInputError struct {
	File   string
	Line   int
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed %s (line %d): %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed %s: %s", e.File, e.Reason)
}

// DataUnavailableError reports that no source could supply a dataset for a
// brewer and day. Batch modes skip the day when they see it.
type DataUnavailableError struct {
	Dataset  string
	BrewerID string
	Date     time.Time
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable for brewer %s on %s", e.Dataset, e.BrewerID, e.Date.Format(time.DateOnly))
}

// Is makes errors.Is(err, ErrUnavailable) true for a DataUnavailableError.
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// SolverError reports a failed run of the external radiative transfer solver.
type SolverError struct {
	Reason   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *SolverError) Error() string {
	msg := "solver: " + e.Reason
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SolverError) Unwrap() error { return e.Err }

// RemoteServiceError reports a network, authentication or decoding failure of
// a remote provider. Callers downgrade it to ErrUnavailable.
type RemoteServiceError struct {
	Provider   string
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s returned status %d", e.Provider, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.URL, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err means "skip this day" rather than a hard
// failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsMalformed reports whether err carries a MalformedInputError.
func IsMalformed(err error) bool {
	var m *MalformedInputError
	return errors.As(err, &m)
}
