package models

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below
var (
	ErrConnectionLost   = errors.New("connection lost")
	ErrMalformedMessage = errors.New("malformed message")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrCommandRejected  = errors.New("command rejected")
)

// ConnectionLostError is reported when the stream transport closes or errors
type ConnectionLostError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface
func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection to %s lost: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error
func (e *ConnectionLostError) Unwrap() error { return e.Err }

// Is matches ErrConnectionLost
func (e *ConnectionLostError) Is(target error) bool { return target == ErrConnectionLost }

// MalformedMessageError represents a stream frame that could not be decoded
type MalformedMessageError struct {
	Reason string
	Raw    []byte
	Err    error
}

// Error implements the error interface
func (e *MalformedMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed message: %s", e.Reason)
}

// Unwrap returns the underlying error
func (e *MalformedMessageError) Unwrap() error { return e.Err }

// Is matches ErrMalformedMessage
func (e *MalformedMessageError) Is(target error) bool { return target == ErrMalformedMessage }

// FetchFailedError represents a failed snapshot or command request
type FetchFailedError struct {
	Operation  string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error
func (e *FetchFailedError) Unwrap() error { return e.Err }

// Is matches ErrFetchFailed
func (e *FetchFailedError) Is(target error) bool { return target == ErrFetchFailed }

// CommandRejectedError is returned when the backend answers a command with a non-success status
type CommandRejectedError struct {
	Command    string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *CommandRejectedError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("command %s rejected with status %d: %s", e.Command, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("command %s rejected with status %d", e.Command, e.StatusCode)
}

// Is matches ErrCommandRejected
func (e *CommandRejectedError) Is(target error) bool { return target == ErrCommandRejected }

// NewMalformedMessage creates a MalformedMessageError keeping at most 256 bytes of the frame
func NewMalformedMessage(reason string, raw []byte, err error) error {
	if len(raw) > 256 {
		raw = raw[:256]
	}
	return &MalformedMessageError{
		Reason: reason,
		Raw:    append([]byte(nil), raw...),
		Err:    err,
	}
}
