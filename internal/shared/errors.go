package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a state-machine violation.
	ErrConflict = errors.New("conflict")
)

// NotFoundError names the missing entity and the identifier that was looked up.
// Scanner operators need to know which code failed mid-sequence, so the code is
// always carried along.
type NotFoundError struct {
	Entity string
	Code   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Code)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFound builds a NotFoundError for the given entity and identifier.
func NewNotFound(entity, code string) error {
	return &NotFoundError{Entity: entity, Code: code}
}

// InsufficientStockError reports a movement that would drive a ledger row
// negative. Available and Requested are base-unit quantities.
type InsufficientStockError struct {
	ProductCode string
	Available   float64
	Requested   float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%s, requested=%s",
		e.ProductCode, trimQty(e.Available), trimQty(e.Requested))
}

// ConflictError reports a state-machine violation together with the current state.
type ConflictError struct {
	Entity string
	Code   string
	State  string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("%s %s: %s (current state %s)", e.Entity, e.Code, e.Reason, e.State)
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Code, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// UserSafeMessage returns an error string safe to show to an operator. Domain
// errors already name the offending identifier; anything else collapses to a
// generic message so infrastructure details never leak.
func UserSafeMessage(err error) string {
	var nf *NotFoundError
	var is *InsufficientStockError
	var cf *ConflictError
	switch {
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &is):
		return is.Error()
	case errors.As(err, &cf):
		return cf.Error()
	default:
		return "internal error, please retry or contact support"
	}
}

func trimQty(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
