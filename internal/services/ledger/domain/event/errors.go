package event

import (
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/meeting.ledger/internal/platform/errors"
)

var (
	// ErrVersionConflict is the code-level sentinel every ConcurrencyError
	// unwraps to.
	ErrVersionConflict = apperrors.New(apperrors.CodeVersionConflict, "aggregate version conflict")
	// ErrTypeRequired indicates an event without a type.
	ErrTypeRequired = apperrors.New(apperrors.CodeInvalidArgument, "event type is required")
	// ErrInvalidPayload indicates a payload that does not match its type.
	ErrInvalidPayload = apperrors.New(apperrors.CodeInvalidArgument, "invalid event payload")
	// ErrAggregateRequired indicates an expected version without an aggregate id.
	ErrAggregateRequired = apperrors.New(apperrors.CodeInvalidArgument, "aggregate id is required for an expected version")
	// ErrDuplicateEventID indicates an append reusing a stored event id.
	ErrDuplicateEventID = apperrors.New(apperrors.CodeAlreadyExists, "event id already exists")
)

// ConcurrencyError reports that an append's expected version did not match the
// aggregate's current version. Callers re-read and retry; the log never does.
type ConcurrencyError struct {
	AggregateID string
	Expected    int64
	Actual      int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("aggregate %s: expected version %d, current version %d", e.AggregateID, e.Expected, e.Actual)
}

// Unwrap exposes the conflict as a VERSION_CONFLICT domain error carrying the
// aggregate and both versions as metadata.
func (e *ConcurrencyError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodeVersionConflict, ErrVersionConflict.Message, map[string]string{
		"aggregate_id":     e.AggregateID,
		"expected_version": strconv.FormatInt(e.Expected, 10),
		"actual_version":   strconv.FormatInt(e.Actual, 10),
	})
}

// ExpectedVersion is the optimistic-concurrency precondition for an append.
type ExpectedVersion int64

// AnyVersion skips the version check.
const AnyVersion ExpectedVersion = -1

// ExactVersion requires the aggregate's current max version to equal n
// (0 for an aggregate with no events).
func ExactVersion(n int64) ExpectedVersion {
	return ExpectedVersion(n)
}

// Checked reports whether the precondition must be enforced.
func (v ExpectedVersion) Checked() bool {
	return v >= 0
}
