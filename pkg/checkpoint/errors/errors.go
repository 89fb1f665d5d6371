// Package errors provides error types and error codes for the checkpoint
// pipeline. This is a leaf package with no internal dependencies, designed
// to be imported by both the archive package and the checkpoint engine
// without causing circular imports.
//
// Import graph: errors <- archive <- checkpoint
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNoActiveState indicates a save was attempted while the machine
	// holds no valid state to capture.
	ErrNoActiveState ErrorCode = iota + 1

	// ErrCannotCreateFile indicates the archive temp file could not be
	// created for writing.
	ErrCannotCreateFile

	// ErrCannotOpenFile indicates the archive is missing or unreadable.
	ErrCannotOpenFile

	// ErrInvalidArchive indicates the file is not a well-formed container.
	ErrInvalidArchive

	// ErrIncompatibleVersion indicates a major format version mismatch.
	// Fatal; no partial read is attempted.
	ErrIncompatibleVersion

	// ErrMissingCoreData indicates the version or internal-structures
	// record is absent from the archive.
	ErrMissingCoreData

	// ErrMissingComponents indicates one or more mandatory components are
	// absent from the archive. The missing names are enumerated.
	ErrMissingComponents

	// ErrComponentIO indicates a component's save/load protocol returned
	// failure mid-operation.
	ErrComponentIO

	// ErrCancelled indicates the operation was cancelled at a phase
	// boundary before completing.
	ErrCancelled
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNoActiveState:
		return "NoActiveState"
	case ErrCannotCreateFile:
		return "CannotCreateFile"
	case ErrCannotOpenFile:
		return "CannotOpenFile"
	case ErrInvalidArchive:
		return "InvalidArchive"
	case ErrIncompatibleVersion:
		return "IncompatibleVersion"
	case ErrMissingCoreData:
		return "MissingCoreData"
	case ErrMissingComponents:
		return "MissingComponents"
	case ErrComponentIO:
		return "ComponentIOError"
	case ErrCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// CheckpointError represents a checkpoint pipeline error. It carries both a
// technical diagnostic message and a short user-facing message suitable for
// the collaborator's notification channel.
type CheckpointError struct {
	Code    ErrorCode
	Diag    string   // technical diagnostic, for logs
	User    string   // short user-facing message
	Archive string   // archive path, when relevant
	Missing []string // missing component names (ErrMissingComponents)
	Err     error    // wrapped cause, when any
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	msg := e.Diag
	if e.Archive != "" {
		msg = fmt.Sprintf("%s: %s (archive: %s)", e.Code, msg, e.Archive)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// UserMessage returns the short user-facing message, falling back to the
// diagnostic when none was set.
func (e *CheckpointError) UserMessage() string {
	if e.User != "" {
		return e.User
	}
	return e.Diag
}

// CodeOf returns the error code carried by err, or 0 when err is not a
// CheckpointError.
func CodeOf(err error) ErrorCode {
	var ce *CheckpointError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewNoActiveState creates a NoActiveState error.
func NewNoActiveState() *CheckpointError {
	return &CheckpointError{
		Code: ErrNoActiveState,
		Diag: "cannot freeze an invalid machine state",
		User: "There is no active machine state to save.",
	}
}

// NewCannotCreateFile creates a CannotCreateFile error.
func NewCannotCreateFile(path string, err error) *CheckpointError {
	return &CheckpointError{
		Code:    ErrCannotCreateFile,
		Diag:    "cannot open file for writing",
		User:    "The save file could not be created.",
		Archive: path,
		Err:     err,
	}
}

// NewCannotOpenFile creates a CannotOpenFile error.
func NewCannotOpenFile(path string, err error) *CheckpointError {
	return &CheckpointError{
		Code:    ErrCannotOpenFile,
		Diag:    "cannot open file for reading",
		User:    "The save file could not be opened.",
		Archive: path,
		Err:     err,
	}
}

// NewInvalidArchive creates an InvalidArchive error.
func NewInvalidArchive(path string, err error) *CheckpointError {
	return &CheckpointError{
		Code:    ErrInvalidArchive,
		Diag:    "file is not a valid archive",
		User:    "This file is not a valid saved state. It may be corrupted or from an unsupported version.",
		Archive: path,
		Err:     err,
	}
}

// NewIncompatibleVersion creates an IncompatibleVersion error.
func NewIncompatibleVersion(path string, current, saved uint32) *CheckpointError {
	return &CheckpointError{
		Code:    ErrIncompatibleVersion,
		Diag:    fmt.Sprintf("archive uses an unsupported format version (engine=%x, archive=%x)", current, saved),
		User:    "Cannot load this saved state. The state is an unsupported version.",
		Archive: path,
	}
}

// NewMissingCoreData creates a MissingCoreData error naming the absent record.
func NewMissingCoreData(path, record string) *CheckpointError {
	return &CheckpointError{
		Code:    ErrMissingCoreData,
		Diag:    fmt.Sprintf("archive does not contain %q", record),
		User:    "This file is not a valid saved state.",
		Archive: path,
	}
}

// NewMissingComponents creates a MissingComponents error enumerating the
// mandatory components absent from the archive.
func NewMissingComponents(path string, names []string) *CheckpointError {
	return &CheckpointError{
		Code:    ErrMissingComponents,
		Diag:    fmt.Sprintf("mandatory components not found: %s", strings.Join(names, ", ")),
		User:    "This saved state cannot be loaded due to missing critical components.",
		Archive: path,
		Missing: append([]string(nil), names...),
	}
}

// NewComponentIO creates a ComponentIOError for a component that failed its
// save/load protocol.
func NewComponentIO(path, component, op string, err error) *CheckpointError {
	return &CheckpointError{
		Code:    ErrComponentIO,
		Diag:    fmt.Sprintf("component %s failed to %s", component, op),
		User:    fmt.Sprintf("A machine component (%s) failed while the state was being %sd.", component, op),
		Archive: path,
		Err:     err,
	}
}

// NewCancelled creates a Cancelled error.
func NewCancelled(path string, err error) *CheckpointError {
	return &CheckpointError{
		Code:    ErrCancelled,
		Diag:    "operation cancelled",
		User:    "The operation was cancelled.",
		Archive: path,
		Err:     err,
	}
}
