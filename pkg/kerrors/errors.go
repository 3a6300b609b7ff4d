// Package kerrors defines the structured error kinds shared across the
// audit-trail core, grounded on the teacher's ComputeBudgetError pattern
// (machine code, human message, structured numeric/string details).
package kerrors

import (
	"errors"
	"fmt"
)

// Kind discriminates the category of a core error, per the error handling
// design: Validation, NotFound, ConflictingState, Expired,
// InsufficientEvidence, StorageIO, ChainMismatch.
type Kind string

const (
	KindValidation           Kind = "VALIDATION"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflictingState     Kind = "CONFLICTING_STATE"
	KindExpired              Kind = "EXPIRED"
	KindInsufficientEvidence Kind = "INSUFFICIENT_EVIDENCE"
	KindStorageIO            Kind = "STORAGE_IO"
	KindChainMismatch        Kind = "CHAIN_MISMATCH"
)

// Error is a typed, machine-readable error carrying a Kind, a short Code,
// a human Message, and structured Details for programmatic inspection.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}

func newErr(kind Kind, code, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

// Validation builds a Validation-kind error for a malformed input field.
func Validation(field, reason string) *Error {
	return newErr(KindValidation, "ERR_VALIDATION", fmt.Sprintf("%s: %s", field, reason), map[string]any{
		"field": field,
	})
}

// NotFound builds a NotFound-kind error for a missing resource by id.
func NotFound(resource, id string) *Error {
	return newErr(KindNotFound, "ERR_NOT_FOUND", fmt.Sprintf("%s %q not found", resource, id), map[string]any{
		"resource": resource,
		"id":       id,
	})
}

// ConflictingState builds a ConflictingState-kind error describing an
// invalid transition attempt (e.g. ending an already-ended session).
func ConflictingState(resource, id, currentState, attempted string) *Error {
	return newErr(KindConflictingState, "ERR_CONFLICTING_STATE",
		fmt.Sprintf("%s %q is %s, cannot %s", resource, id, currentState, attempted),
		map[string]any{"resource": resource, "id": id, "current_state": currentState, "attempted": attempted})
}

// Expired builds an Expired-kind error for a resource past its deadline.
func Expired(resource, id string) *Error {
	return newErr(KindExpired, "ERR_EXPIRED", fmt.Sprintf("%s %q has expired", resource, id), map[string]any{
		"resource": resource,
		"id":       id,
	})
}

// InsufficientEvidence builds an error naming the evidence keys still missing.
func InsufficientEvidence(missing []string) *Error {
	return newErr(KindInsufficientEvidence, "ERR_INSUFFICIENT_EVIDENCE",
		fmt.Sprintf("missing required evidence: %v", missing),
		map[string]any{"missing_keys": missing})
}

// StorageIO wraps an underlying storage adapter failure.
func StorageIO(op string, cause error) *Error {
	e := newErr(KindStorageIO, "ERR_STORAGE_IO", fmt.Sprintf("storage %s failed: %v", op, cause), map[string]any{
		"op": op,
	})
	e.cause = cause
	return e
}

// ChainMismatch builds a ChainMismatch-kind error carrying the first
// invalid index detected during verification.
func ChainMismatch(firstInvalidIndex int) *Error {
	return newErr(KindChainMismatch, "ERR_CHAIN_MISMATCH", "digest chain verification failed", map[string]any{
		"first_invalid_index": firstInvalidIndex,
	})
}
