package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique identifier is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation marks input that failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates the request conflicts with current state.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock is matched by *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition is matched by *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUpstream is matched by *UpstreamError.
	ErrUpstream = errors.New("payment gateway error")
	// ErrAuthentication indicates an inbound event failed signature verification.
	ErrAuthentication = errors.New("signature verification failed")
	// ErrConfiguration indicates a record lacks identifiers required to proceed.
	ErrConfiguration = errors.New("configuration error")
)

var (
	ErrEmptyCart      = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrNotPending     = fmt.Errorf("%w: order is not pending", ErrConflict)
	ErrAlreadyPaid    = fmt.Errorf("%w: order is already paid", ErrConflict)
	ErrNotRefundable  = fmt.Errorf("%w: order has no paid payment to refund", ErrConflict)
	ErrMissingIntent  = fmt.Errorf("%w: payment has no gateway payment intent", ErrConfiguration)
	ErrMissingSession = fmt.Errorf("%w: payment has no gateway session", ErrConfiguration)
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientStockError carries the shortfall that aborted a reservation.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	label := e.ProductID
	if e.Name != "" {
		label = e.Name
	}
	return fmt.Sprintf("insufficient stock for %s. Available: %d, Requested: %d", label, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// TransitionError reports a status change outside the state machine.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// UpstreamError wraps a failed payment gateway call. Err keeps the gateway detail for logs.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }
