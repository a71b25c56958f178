// Package errors provides the coded error type shared by every labcmdr package.
//
// # Error Types
//
// LabError is the primary error type, containing:
//   - Code: Categorizes the error (LAB_NOT_FOUND, CONFIG_CORRUPT, etc.)
//   - Message: Human-readable error description
//   - Path: The file or directory involved (if applicable)
//   - Err: The underlying wrapped error (if any)
//
// # Sentinel Errors
//
// Each error kind has a sentinel that matches any LabError carrying the same
// code:
//
//	errors.ErrLabNotFound       // no labcmdr/labconfig.json up the tree
//	errors.ErrConfigCorrupt     // lab config exists but does not parse
//	errors.ErrPortUnavailable   // port probe exhausted
//	errors.ErrCancelled         // operator interrupted the operation
//
// # Usage
//
//	return errors.LabNotFound(start)
//	return errors.ConfigCorrupt(path, err)
//	return errors.Wrap(errors.ErrCodeInternal, "failed to create lab", err)
//
//	if errors.Is(err, errors.ErrLabNotFound) {
//	    output.Info("Run 'labcmdr create' to set up a lab here")
//	}
//
// # Exit Codes
//
// ExitCode maps an error returned by a command to the process exit status:
// user cancellation exits 0, every other error exits 1.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for different error categories.
const (
	ErrCodeLabNotFound       ErrorCode = "LAB_NOT_FOUND"       // No lab marker up the tree
	ErrCodeConfigMissing     ErrorCode = "CONFIG_MISSING"      // Marker dir present, file absent
	ErrCodeConfigCorrupt     ErrorCode = "CONFIG_CORRUPT"      // Marker file unparsable
	ErrCodePortUnavailable   ErrorCode = "PORT_UNAVAILABLE"    // Bind failed after bounded probe
	ErrCodeUploadFailed      ErrorCode = "UPLOAD_FAILED"       // POST body could not be stored
	ErrCodeHostsUpdateFailed ErrorCode = "HOSTS_UPDATE_FAILED" // Privileged hosts write failed
	ErrCodeNoInterface       ErrorCode = "INTERFACE_NOT_FOUND" // No attacker-facing IPv4
	ErrCodeServerNotRunning  ErrorCode = "SERVER_NOT_RUNNING"  // Stop without a running server
	ErrCodeLockTimeout       ErrorCode = "LOCK_TIMEOUT"        // Lab config lock not acquired
	ErrCodeValidation        ErrorCode = "VALIDATION"          // Input validation failed
	ErrCodeCancelled         ErrorCode = "CANCELLED"           // Operator cancelled
	ErrCodeInternal          ErrorCode = "INTERNAL"            // Internal/unexpected error
)

// LabError represents a structured error with context about the operation.
type LabError struct {
	Code    ErrorCode // Error category
	Message string    // Human-readable message
	Path    string    // File or directory (if applicable)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *LabError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain traversal.
func (e *LabError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code.
func (e *LabError) Is(target error) bool {
	t, ok := target.(*LabError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors, one per code. Use these with errors.Is().
var (
	ErrLabNotFound       = &LabError{Code: ErrCodeLabNotFound, Message: "not inside a lab directory"}
	ErrConfigMissing     = &LabError{Code: ErrCodeConfigMissing, Message: "lab config file missing"}
	ErrConfigCorrupt     = &LabError{Code: ErrCodeConfigCorrupt, Message: "lab config file corrupt"}
	ErrPortUnavailable   = &LabError{Code: ErrCodePortUnavailable, Message: "no available port"}
	ErrUploadFailed      = &LabError{Code: ErrCodeUploadFailed, Message: "upload failed"}
	ErrHostsUpdateFailed = &LabError{Code: ErrCodeHostsUpdateFailed, Message: "hosts update failed"}
	ErrNoInterface       = &LabError{Code: ErrCodeNoInterface, Message: "no attacker-facing interface found"}
	ErrServerNotRunning  = &LabError{Code: ErrCodeServerNotRunning, Message: "server is not running"}
	ErrLockTimeout       = &LabError{Code: ErrCodeLockTimeout, Message: "timed out waiting for lab config lock"}
	ErrInvalid           = &LabError{Code: ErrCodeValidation, Message: "invalid input"}
	ErrCancelled         = &LabError{Code: ErrCodeCancelled, Message: "cancelled"}
)

// LabNotFound reports that no ancestor of start holds a lab marker.
func LabNotFound(start string) error {
	return &LabError{Code: ErrCodeLabNotFound, Message: "not inside a lab directory", Path: start}
}

// ConfigMissing reports a marker directory without its config file.
func ConfigMissing(path string) error {
	return &LabError{Code: ErrCodeConfigMissing, Message: "lab config file missing", Path: path}
}

// ConfigCorrupt reports a lab config that failed to parse.
func ConfigCorrupt(path string, err error) error {
	return &LabError{Code: ErrCodeConfigCorrupt, Message: "lab config file corrupt", Path: path, Err: err}
}

// PortUnavailable reports an exhausted port probe.
func PortUnavailable(start, attempts int) error {
	return &LabError{
		Code:    ErrCodePortUnavailable,
		Message: fmt.Sprintf("no available port in %d-%d", start, start+attempts-1),
	}
}

// UploadFailed wraps an I/O error hit while storing an upload.
func UploadFailed(dest string, err error) error {
	return &LabError{Code: ErrCodeUploadFailed, Message: "upload failed", Path: dest, Err: err}
}

// HostsUpdateFailed wraps a failed hosts file write.
func HostsUpdateFailed(path string, err error) error {
	return &LabError{Code: ErrCodeHostsUpdateFailed, Message: "failed to update hosts file", Path: path, Err: err}
}

// Validation creates a validation error with a custom message.
func Validation(msg string) error {
	return &LabError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &LabError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrCancelled) {
		return 0
	}
	return 1
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As

// Unwrap returns the next error in err's chain.
// This is a re-export of errors.Unwrap for convenience.
var Unwrap = errors.Unwrap
