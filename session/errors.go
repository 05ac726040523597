package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audiobrief/jobapi"
)

// Kind classifies why an operation ended unsuccessfully
type Kind int

const (
	KindUnknown Kind = iota
	Validation
	UserDeclined
	Timeout
	Network
	InvalidResponse
	Server
	JobAbandoned
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case UserDeclined:
		return "declined"
	case Timeout:
		return "timeout"
	case Network:
		return "network"
	case InvalidResponse:
		return "invalid_response"
	case Server:
		return "server"
	case JobAbandoned:
		return "abandoned"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Silent reports whether errors of this kind are not shown to the user
func (k Kind) Silent() bool {
	return k == UserDeclined || k == Cancelled
}

var (
	ErrBusy          = errors.New("another operation is in progress")
	ErrNoFile        = errors.New("no file selected")
	ErrUnsupported   = errors.New("unsupported file type")
	ErrNoTranscript  = errors.New("no transcript available")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrDeclined      = errors.New("declined by user")
	ErrCancelled     = errors.New("cancelled by user")
)

// Error is the terminal error of a session operation
type Error struct {
	Kind Kind
	Op   Operation

	// Message is the text shown to the user
	Message string

	// Raw holds the response body for InvalidResponse and Server errors
	Raw string

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != OpNone {
		return e.Op.String() + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies any error returned by this package
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, context.Canceled):
		return Cancelled
	}
	var apiErr *jobapi.APIError
	if errors.As(err, &apiErr) {
		return Server
	}
	var decodeErr *jobapi.DecodeError
	if errors.As(err, &decodeErr) {
		return InvalidResponse
	}
	return Network
}

func validationError(op Operation, err error, message string) *Error {
	return &Error{Kind: Validation, Op: op, Message: message, Err: err}
}

// classify turns an API call failure into a session error.
// timedOut is decided by the caller from its own request context so that a
// deadline is never confused with an explicit cancellation.
func classify(op Operation, err error, timedOut bool, timeout time.Duration, fallback string) *Error {
	if timedOut {
		return &Error{
			Kind:    Timeout,
			Op:      op,
			Message: fmt.Sprintf("Request timed out after %s. Please try again.", formatTimeout(timeout)),
			Err:     err,
		}
	}

	var apiErr *jobapi.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		return &Error{Kind: Server, Op: op, Message: msg, Raw: apiErr.Body, Err: err}
	}

	var decodeErr *jobapi.DecodeError
	if errors.As(err, &decodeErr) {
		return &Error{
			Kind:    InvalidResponse,
			Op:      op,
			Message: "Received an invalid response from the server",
			Raw:     decodeErr.Body,
			Err:     err,
		}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: Cancelled, Op: op, Message: "Cancelled", Err: err}
	}

	return &Error{Kind: Network, Op: op, Message: fallback, Err: err}
}

func formatTimeout(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d > time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d >= time.Second && d%time.Second == 0:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	default:
		return d.String()
	}
}
