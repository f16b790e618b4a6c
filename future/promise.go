package future

// Promise represents the write-only side of an asynchronous computation.
//
// Key guarantees:
//   - A promise can only be fulfilled once (enforced by sync.Once in the future)
//   - Multiple calls to Success/Failure/Complete are safe (later calls are ignored)
//   - Fulfillment is thread-safe and can happen from any goroutine
//   - Fulfilling a promise unblocks all goroutines waiting on the associated future
//
// The promise holds a reference to the future, not the other way around, so a
// future can be handed out without exposing the ability to complete it.
type Promise[T any] struct {
	future *Future[T]
}

// Future returns the future this promise completes.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// fulfill stores the result, closes resultReady to broadcast completion, and
// dispatches the callbacks that were registered before completion. Only the
// first call has any effect.
func (p *Promise[T]) fulfill(result Result[T]) bool {
	fulfilled := false

	p.future.once.Do(func() {
		fulfilled = true

		p.future.result = result

		// Registration checks IsDone under the same mutex, so every callback
		// lands either in these slices or sees the closed channel.
		p.future.mu.Lock()

		close(p.future.resultReady)

		successCallbacks := p.future.successCallbacks
		errorCallbacks := p.future.errorCallbacks
		resultCallbacks := p.future.resultCallbacks

		p.future.successCallbacks = nil
		p.future.errorCallbacks = nil
		p.future.resultCallbacks = nil

		p.future.mu.Unlock()

		for _, callback := range resultCallbacks {
			invokeCallback("OnResult", callback, result)
		}

		if result.Error == nil {
			for _, callback := range successCallbacks {
				invokeCallback("OnSuccess", callback, result.Value)
			}
		} else {
			for _, callback := range errorCallbacks {
				invokeCallback("OnError", callback, result.Error)
			}
		}
	})

	return fulfilled
}

// Success fulfills the promise with a value. Returns false if the promise was
// already fulfilled.
func (p *Promise[T]) Success(value T) bool {
	return p.fulfill(Result[T]{Value: value})
}

// Failure fulfills the promise with an error. The stored value is the zero
// value of T. Returns false if the promise was already fulfilled.
func (p *Promise[T]) Failure(err error) bool {
	var zero T

	return p.fulfill(Result[T]{Value: zero, Error: err})
}

// Complete fulfills the promise from a (value, error) pair, following Go's
// usual return convention: a non-nil err wins and the value is dropped.
func (p *Promise[T]) Complete(value T, err error) bool {
	if err != nil {
		return p.Failure(err)
	}

	return p.Success(value)
}
