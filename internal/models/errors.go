package models

import "fmt"

// ValidationError reports malformed input: bad ZIP format, out-of-range quantity, negative price.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotCoveredError is a business outcome: the owner does not serve the ZIP.
type NotCoveredError struct {
	ZIP string
}

func (e *NotCoveredError) Error() string {
	return fmt.Sprintf("we do not currently serve ZIP code %s", e.ZIP)
}

type DiscountReason string

const (
	DiscountExpired       DiscountReason = "expired"
	DiscountUsageExceeded DiscountReason = "usage_exceeded"
	DiscountNotFound      DiscountReason = "not_found"
	DiscountInvalidCode   DiscountReason = "invalid_code"
)

type DiscountError struct {
	Code   string
	Reason DiscountReason
}

func (e *DiscountError) Error() string {
	switch e.Reason {
	case DiscountExpired:
		return fmt.Sprintf("discount code %q has expired", e.Code)
	case DiscountUsageExceeded:
		return fmt.Sprintf("discount code %q has reached its usage limit", e.Code)
	case DiscountNotFound:
		return fmt.Sprintf("discount code %q was not found", e.Code)
	default:
		return fmt.Sprintf("discount code %q is not valid", e.Code)
	}
}

type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change booking status from %s to %s", e.From, e.To)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StorageError wraps a data-store failure. It is propagated as-is; nothing retries it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DuplicateSubmissionError rejects a booking form submitted again while the first
// submission with the same idempotency key is still being processed.
type DuplicateSubmissionError struct {
	Key string
}

func (e *DuplicateSubmissionError) Error() string {
	return "this booking is already being submitted, please wait"
}
