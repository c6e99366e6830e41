package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"syscall"
)

// Kind classifies a failure for reporting and retry decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindIO
	KindPermission  // IO refinement: access denied
	KindUnavailable // IO refinement: out of file descriptors
	KindValidation
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindIO:
		return "io"
	case KindPermission:
		return "permission"
	case KindUnavailable:
		return "unavailable"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	}
	return "unknown"
}

// Code is the machine-readable code sent to API clients.
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindIO:
		return "IO_ERROR"
	case KindPermission:
		return "PERMISSION_ERROR"
	case KindUnavailable:
		return "SERVER_BUSY"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNetwork:
		return "NETWORK_ERROR"
	}
	return "INTERNAL_ERROR"
}

// HTTPStatus maps the kind onto a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPermission:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Retryable reports whether an operation failing with this kind may be retried.
func (k Kind) Retryable() bool {
	return k == KindNetwork
}

// Lookup errors
var (
	// ErrNotFound indicates an unknown registry id.
	ErrNotFound = errors.New("environment file not found")
)

// Session errors
var (
	// ErrInvalidState indicates an edit session operation not allowed in its current state.
	ErrInvalidState = errors.New("invalid session state")
)

// Request errors
var (
	// ErrInvalidInput indicates a missing or malformed request field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExists indicates that a target file is already present.
	ErrExists = errors.New("file already exists")
)

// Assistant errors
var (
	// ErrUnknownProvider indicates a model string naming a provider we do not support.
	ErrUnknownProvider = errors.New("unsupported AI provider")

	// ErrMissingCredential indicates the provider's API key is not configured.
	ErrMissingCredential = errors.New("missing API credential")
)

// Error carries a Kind together with the operation and path that failed.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// NewError wraps err with a kind, operation and optional path.
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Explicit kinds win, except that IO errors are refined
// by their cause so that permission and descriptor exhaustion map to 403/503.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var typed *Error
	if errors.As(err, &typed) && typed.Kind != KindUnknown && typed.Kind != KindIO {
		return typed.Kind
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE):
		return KindUnavailable
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrExists), errors.Is(err, ErrUnknownProvider),
		errors.Is(err, ErrMissingCredential):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	if typed != nil {
		return typed.Kind
	}
	return KindUnknown
}

// Message returns a short user-facing description of err.
func Message(err error) string {
	switch KindOf(err) {
	case KindNotFound:
		var typed *Error
		if errors.As(err, &typed) && typed.Path != "" {
			return fmt.Sprintf("File not found: %s", typed.Path)
		}
		return "Environment file not found"
	case KindPermission:
		return "Permission denied"
	case KindUnavailable:
		return "Server temporarily unavailable"
	case KindUnknown:
		return "Internal server error"
	}
	return err.Error()
}
