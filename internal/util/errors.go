package util

import (
	"errors"
	"fmt"
)

// Common application-specific errors.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input provided")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrDuplicateEntry    = errors.New("duplicate entry")
)

// ValidationError reports a malformed draft. Nothing is mutated when it is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Msg
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Msg)
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || target == ErrInvalidInput
}

// NewValidationError builds a *ValidationError for field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// InvalidTransitionError reports a rejected status change: the source state is
// terminal, the target is not a successor of pending, or the actor lacks the
// capability to perform it.
type InvalidTransitionError struct {
	ID     string
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition for transaction %s: %s -> %s", e.ID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NotFoundError reports an unknown identifier.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError builds a *NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
