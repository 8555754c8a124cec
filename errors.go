package nexdesk

import (
	"context"
	"errors"
)

var (
	// Tenant resolution errors.
	ErrCatalogMissing = errors.New("nexdesk: tenant catalog missing")
	ErrTenantNotFound = errors.New("nexdesk: tenant not found")
	ErrNoTenantSignal = errors.New("nexdesk: no tenant signal in request")

	// Execution context errors.
	ErrInvalidPartition  = errors.New("nexdesk: invalid partition name")
	ErrNestedTransaction = errors.New("nexdesk: nested transaction")

	// Not found errors.
	ErrTicketNotFound = errors.New("nexdesk: ticket not found")
	ErrQueueNotFound  = errors.New("nexdesk: queue not found")

	// Conflict errors.
	ErrWrongAssignee = errors.New("nexdesk: ticket assigned to another agent")
)

// TransientError wraps a database-layer failure that aborted a unit of
// work. The enclosing transaction rolled back, so no partial effect is
// visible and the whole operation is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "nexdesk: transient database error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. Returns nil if err is nil.
// Errors from the taxonomy above pass through unwrapped: they describe
// the request, not the database, and retrying will not change them.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	// Cancellation is the caller's doing, not a database fault.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrCatalogMissing) ||
		errors.Is(err, ErrTenantNotFound) ||
		errors.Is(err, ErrInvalidPartition) ||
		errors.Is(err, ErrNestedTransaction) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrQueueNotFound) ||
		errors.Is(err, ErrWrongAssignee) {
		return err
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is a
// TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
