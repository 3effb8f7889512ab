package api

import (
	"errors"
	"fmt"
)

// Kind classifies a TicketError.
type Kind string

const (
	// KindUnauthenticated means no credential was available; the request never left the client.
	KindUnauthenticated Kind = "unauthenticated"
	// KindNotFound maps a 404 response.
	KindNotFound Kind = "not_found"
	// KindUnauthorized maps 401 and 403 responses.
	KindUnauthorized Kind = "unauthorized"
	// KindServerError covers every other non-2xx response and undecodable bodies.
	KindServerError Kind = "server_error"
	// KindNetwork is a transport failure.
	KindNetwork Kind = "network_error"
	// KindTimeout is a request that ran past its deadline.
	KindTimeout Kind = "timeout"
	// KindValidation is input rejected before dispatch.
	KindValidation Kind = "validation_error"
	// KindForbidden is an action denied by the client-side gate before dispatch.
	KindForbidden Kind = "forbidden"
)

// ErrSkipped marks a decision call dropped by its client-side guard.
var ErrSkipped = errors.New("decision skipped: ticket id, comment id and credential are required")

// TicketError is the error type returned by every ticket operation.
type TicketError struct {
	Kind    Kind
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *TicketError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *TicketError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether repeating the request could succeed. Local
// validation and gate failures are not retryable.
func (e *TicketError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindNotFound, KindUnauthorized, KindServerError, KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// KindOf returns the kind of a TicketError in err's chain, or "".
func KindOf(err error) Kind {
	var ticketErr *TicketError
	if errors.As(err, &ticketErr) {
		return ticketErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func kindForStatus(status int) Kind {
	switch status {
	case 401, 403:
		return KindUnauthorized
	case 404:
		return KindNotFound
	default:
		return KindServerError
	}
}

func validationError(op, message string) *TicketError {
	return &TicketError{Kind: KindValidation, Op: op, Message: message}
}

func unauthenticatedError(op string) *TicketError {
	return &TicketError{
		Kind:    KindUnauthenticated,
		Op:      op,
		Message: "Authentication token is missing. Please log in again.",
	}
}
