// Package errors provides structured, code-carrying errors shared across the ledger.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound marks a missing persistence record.
	CodeNotFound Code = "NOT_FOUND"
	// CodeVersionConflict marks an optimistic-concurrency mismatch on append.
	CodeVersionConflict Code = "VERSION_CONFLICT"
	// CodeInvalidArgument marks malformed caller input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeAlreadyExists marks a write that reuses a unique key.
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// Retryable reports whether a caller may retry after re-reading state.
func (c Code) Retryable() bool {
	return c == CodeVersionConflict
}
