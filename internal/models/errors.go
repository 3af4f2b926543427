package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engines wraps exactly one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrPermission = errors.New("permission denied")
	ErrState      = errors.New("operation is not allowed in current state")
)

var (
	ErrInvalidUser = errors.New("provided user does not exist")
	ErrNoRequest   = errors.New("requested purchase request does not exist")
	ErrNoOrder     = errors.New("requested purchase order does not exist")
	ErrNoWorkflow  = errors.New("approval workflow is not configured")
)

var (
	ErrEmptyItems    = fmt.Errorf("%w: purchase request has no items", ErrValidation)
	ErrEmptyWorkflow = fmt.Errorf("%w: approval workflow has no roles", ErrValidation)
	ErrEmptyComments = fmt.Errorf("%w: rejection comments are required", ErrValidation)
	ErrEmptyLines    = fmt.Errorf("%w: purchase order has no lines", ErrValidation)

	ErrForbidden   = fmt.Errorf("%w: user does not have permission for this operation", ErrPermission)
	ErrNotYourStep = fmt.Errorf("%w: actor role does not match the current approval step", ErrPermission)

	ErrNotDraft           = fmt.Errorf("%w: purchase request is no longer a draft", ErrState)
	ErrNotPendingApproval = fmt.Errorf("%w: purchase request is not awaiting approval", ErrState)
	ErrNotApproved        = fmt.Errorf("%w: purchase request is not approved", ErrState)
	ErrNotAwardable       = fmt.Errorf("%w: purchase request is neither approved nor awarded", ErrState)
)

// Invalidf builds a validation error for a single field.
func Invalidf(field, format string, args ...any) error {
	return fmt.Errorf("%w: field '%s': %s", ErrValidation, field, fmt.Sprintf(format, args...))
}
