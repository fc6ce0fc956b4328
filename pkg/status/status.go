// Package status defines the outcome codes shared by enrollment,
// authentication and the service boundary.
package status

import (
	"errors"
)

// Code identifies the kind of outcome of an operation.
type Code string

const (
	OK                     Code = "OK"
	InvalidInput           Code = "INVALID_INPUT"
	DuplicateIdentity      Code = "DUPLICATE_IDENTITY"
	NotFound               Code = "NOT_FOUND"
	CaptureFailure         Code = "CAPTURE_FAILURE"
	NoFaceDetected         Code = "NO_FACE_DETECTED"
	ExtractionFailure      Code = "EXTRACTION_FAILURE"
	InsufficientSamples    Code = "INSUFFICIENT_SAMPLES"
	NoIdentitiesRegistered Code = "NO_IDENTITIES_REGISTERED"
	Timeout                Code = "TIMEOUT"
	NoMatch                Code = "NO_MATCH"
	StorageCorruption      Code = "STORAGE_CORRUPTION"
	StorageWriteFailure    Code = "STORAGE_WRITE_FAILURE"
	Internal               Code = "INTERNAL"
)

var defaultMessages = map[Code]string{
	OK:                     "OK",
	InvalidInput:           "Invalid input",
	DuplicateIdentity:      "Admin ID already registered",
	NotFound:               "Admin not found",
	CaptureFailure:         "Failed to capture from camera",
	NoFaceDetected:         "No face detected",
	ExtractionFailure:      "Failed to extract face embedding",
	InsufficientSamples:    "Not enough face samples captured",
	NoIdentitiesRegistered: "No admin faces registered",
	Timeout:                "Authentication timeout",
	NoMatch:                "No matching admin found",
	StorageCorruption:      "Face database is corrupt",
	StorageWriteFailure:    "Failed to save face database",
	Internal:               "Internal error",
}

// Message returns the default user-facing message for a code.
func Message(code Code) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return "Operation failed"
}

// Error is a coded error. Message is safe to show to callers; Err keeps
// the underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the default message for code.
func New(code Code, err error) *Error {
	return &Error{Code: code, Message: Message(code), Err: err}
}

// Errorf creates an Error with a custom message.
func Errorf(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code carried by err, Internal for foreign errors and
// OK for nil.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return Internal
}
