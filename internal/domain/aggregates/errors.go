package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes aggregate failure semantics across domains.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation"
	CodeNotFound          ErrorCode = "not_found"
	CodeConflict          ErrorCode = "conflict"
	CodeReferenceMismatch ErrorCode = "reference_mismatch"
	CodeDuplicateName     ErrorCode = "duplicate_name"
	CodePartialFailure    ErrorCode = "partial_failure"
	CodeRetryable         ErrorCode = "retryable"
	CodeInternal          ErrorCode = "internal"
)

// Entity names used in NotFound errors.
const (
	EntityAccount  = "account"
	EntityProduct  = "product"
	EntityOrder    = "order"
	EntityCartItem = "cart_item"
)

// Error is the canonical aggregate error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	// Entity and ID identify the missing or mismatched record, when known.
	Entity string
	ID     string
	Cause  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an aggregate error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with aggregate error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// NotFound reports that entity id does not exist.
func NotFound(op, entity, id string) error {
	return &Error{
		Code:    CodeNotFound,
		Op:      strings.TrimSpace(op),
		Message: fmt.Sprintf("%s %s not found", entity, id),
		Entity:  entity,
		ID:      id,
	}
}

// ReferenceMismatch reports that an account does not hold a reference to entity id.
func ReferenceMismatch(op, entity, id string) error {
	return &Error{
		Code:    CodeReferenceMismatch,
		Op:      strings.TrimSpace(op),
		Message: fmt.Sprintf("account does not reference %s %s", entity, id),
		Entity:  entity,
		ID:      id,
	}
}

// IsCode checks whether err carries the given aggregate code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// CodeOf extracts the aggregate error code when available. A PartialFailure
// anywhere in the chain wins over the code of its cause.
func CodeOf(err error) ErrorCode {
	var pf *PartialFailure
	if errors.As(err, &pf) {
		return CodePartialFailure
	}
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var aggErr *Error
	if errors.As(err, &aggErr) {
		return aggErr, true
	}
	return nil, false
}
