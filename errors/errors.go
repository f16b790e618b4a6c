// Package errors holds the error kinds shared by the actor runtime and the wire
// protocol, plus small helpers for collecting and converting errors.
//
// Every kind is a sentinel; call sites wrap them with fmt.Errorf("%w: ...") so
// callers can match with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueTimeout means a work item did not finish within its allotted time.
	ErrQueueTimeout = errors.New("work item timed out")

	// ErrPanicRecovery marks an error produced from a recovered panic.
	ErrPanicRecovery = errors.New("recovered from panic")

	// ErrDeadActor is returned when work is submitted to a closed lane.
	ErrDeadActor = errors.New("actor is dead")

	// ErrCapabilityNotRegistered means an agent type was requested that the
	// actor system does not know.
	ErrCapabilityNotRegistered = errors.New("capability not registered")

	// ErrMessageTypeNotRegistered means no message id is mapped to a payload type
	// (or no payload type to a message id).
	ErrMessageTypeNotRegistered = errors.New("message type not registered")

	// ErrAmbiguousMessageType means a payload type or message id was registered twice
	// with conflicting meaning.
	ErrAmbiguousMessageType = errors.New("ambiguous message type")

	// ErrFraming means received bytes do not match the expected frame layout.
	// The session that produced them should be considered corrupted.
	ErrFraming = errors.New("frame decode error")

	// ErrTimerHandlerNotRegistered means a timer was scheduled for an unknown handler type.
	ErrTimerHandlerNotRegistered = errors.New("timer handler not registered")

	// ErrInvalidRule means a timer recurrence rule could not be built.
	ErrInvalidRule = errors.New("invalid timer rule")
)

// Collection is a thread-unsafe utility for accumulating multiple errors.
// Use it when one failing step must not stop the remaining steps, and the
// caller still wants to see every failure at the end.
type Collection struct {
	errors []error
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// Clear removes all errors from the collection.
func (c *Collection) Clear() {
	c.errors = nil
}

// HasError returns true if the collection contains at least one error.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// Len returns the number of collected errors.
func (c *Collection) Len() int {
	return len(c.errors)
}

// GetError returns the collected errors as a single error.
// Returns nil if the collection is empty, the single error if there's only one,
// or a joined error (using errors.Join) if there are multiple errors.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}

// FromPanic converts a recovered panic value and optional stack trace into an
// error wrapping ErrPanicRecovery. If the panic value is an error it stays
// reachable through errors.Is. Returns nil for a nil panic value.
func FromPanic(recovered any, stack []byte) error {
	if recovered == nil {
		return nil
	}

	errVal, ok := recovered.(error)
	if ok {
		if stack != nil {
			return fmt.Errorf("%w: %w\nstack trace:\n%s", ErrPanicRecovery, errVal, string(stack))
		}

		return fmt.Errorf("%w: %w", ErrPanicRecovery, errVal)
	}

	if stack != nil {
		return fmt.Errorf("%w: %v\nstack trace:\n%s", ErrPanicRecovery, recovered, string(stack))
	}

	return fmt.Errorf("%w: %v", ErrPanicRecovery, recovered)
}
