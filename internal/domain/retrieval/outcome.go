package retrieval

import "fmt"

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	// OutcomeOk carries a value.
	OutcomeOk OutcomeKind = iota
	// OutcomeUnavailable means the backend is absent or has nothing to offer.
	OutcomeUnavailable
	// OutcomeError carries a failure reason.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of one call to an external collaborator:
// Ok(value), Unavailable or Error(reason).
type Outcome[T any] struct {
	kind  OutcomeKind
	value T
	err   error
}

// Ok wraps a value.
func Ok[T any](v T) Outcome[T] { return Outcome[T]{kind: OutcomeOk, value: v} }

// Unavailable reports a backend that is absent or empty.
func Unavailable[T any]() Outcome[T] { return Outcome[T]{kind: OutcomeUnavailable} }

// Failed wraps a failure reason.
func Failed[T any](err error) Outcome[T] {
	if err == nil {
		err = fmt.Errorf("unspecified failure")
	}
	return Outcome[T]{kind: OutcomeError, err: err}
}

// Kind returns the variant tag.
func (o Outcome[T]) Kind() OutcomeKind { return o.kind }

// Value returns the value and whether the outcome is Ok.
func (o Outcome[T]) Value() (T, bool) { return o.value, o.kind == OutcomeOk }

// Err returns the failure reason of an Error outcome, nil otherwise.
func (o Outcome[T]) Err() error { return o.err }

// OrZero returns the value of an Ok outcome or the zero value.
func (o Outcome[T]) OrZero() T {
	if o.kind == OutcomeOk {
		return o.value
	}
	var zero T
	return zero
}
