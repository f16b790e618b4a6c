// Package future provides a Promise/Future pair for results that arrive later.
//
// A Future is the read side: any number of goroutines may Await it, and
// callbacks may be attached with OnSuccess, OnError and OnResult. A Promise is
// the write side and can be fulfilled exactly once; later calls are ignored.
//
// The actor lanes hand out Futures for every SendAsync/Call, so a Future here
// is always completed by the lane that ran the work, never by the caller.
package future

import (
	"context"
	"runtime/debug"
	"sync"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
)

// Future represents the read-only side of an asynchronous computation.
type Future[T any] struct {
	once        sync.Once
	resultReady chan struct{}
	result      Result[T]

	mu               sync.Mutex
	successCallbacks []func(T)
	errorCallbacks   []func(error)
	resultCallbacks  []func(Result[T])
}

// New creates an unfulfilled future and the promise that completes it.
func New[T any]() (*Future[T], *Promise[T]) {
	fut := &Future[T]{
		resultReady: make(chan struct{}),
	}

	return fut, &Promise[T]{future: fut}
}

// Completed returns a future that already holds value.
func Completed[T any](value T) *Future[T] {
	fut, promise := New[T]()
	promise.Success(value)

	return fut
}

// Failed returns a future that already holds err.
func Failed[T any](err error) *Future[T] {
	fut, promise := New[T]()
	promise.Failure(err)

	return fut
}

// Go runs fn in a new goroutine and returns a future for its result.
// A panic inside fn fails the future with an error wrapping ErrPanicRecovery.
func Go[T any](fn func() (T, error)) *Future[T] {
	fut, promise := New[T]()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				promise.Failure(coreErrors.FromPanic(r, debug.Stack()))
			}
		}()

		promise.Complete(fn())
	}()

	return fut
}

// GoContext is Go with a context handed to fn. The context is not watched by
// the future itself; fn decides whether to honor cancellation.
func GoContext[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	return Go(func() (T, error) {
		return fn(ctx)
	})
}

// Done returns a channel that is closed once the future is fulfilled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.resultReady
}

// IsDone reports whether the future has been fulfilled, without blocking.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.resultReady:
		return true
	default:
		return false
	}
}

// Await blocks until the future is fulfilled and returns its value and error.
// It is safe to call repeatedly and from many goroutines.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.resultReady

	return f.result.Get()
}

// AwaitContext is Await that gives up when ctx is done. Giving up does not
// affect the future; it may still be fulfilled later. A Parker carried by ctx
// is parked for as long as the call blocks.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	if ctx == nil {
		return f.Await()
	}

	if !f.IsDone() {
		if p := parkerOf(ctx); p != nil {
			p.Park()
			defer p.Unpark()
		}
	}

	select {
	case <-f.resultReady:
		return f.result.Get()
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// Result blocks until the future is fulfilled and returns the raw result.
func (f *Future[T]) Result() Result[T] {
	<-f.resultReady

	return f.result
}

// OnSuccess registers a callback invoked with the value if the future succeeds.
// If the future is already fulfilled the callback fires immediately.
// Callbacks run on their own goroutine; panics are recovered and logged.
func (f *Future[T]) OnSuccess(callback func(T)) *Future[T] {
	f.mu.Lock()

	if !f.IsDone() {
		f.successCallbacks = append(f.successCallbacks, callback)
		f.mu.Unlock()

		return f
	}

	f.mu.Unlock()

	if f.result.Error == nil {
		invokeCallback("OnSuccess", callback, f.result.Value)
	}

	return f
}

// OnError registers a callback invoked with the error if the future fails.
func (f *Future[T]) OnError(callback func(error)) *Future[T] {
	f.mu.Lock()

	if !f.IsDone() {
		f.errorCallbacks = append(f.errorCallbacks, callback)
		f.mu.Unlock()

		return f
	}

	f.mu.Unlock()

	if f.result.Error != nil {
		invokeCallback("OnError", callback, f.result.Error)
	}

	return f
}

// OnResult registers a callback invoked with the result whatever the outcome.
func (f *Future[T]) OnResult(callback func(Result[T])) *Future[T] {
	f.mu.Lock()

	if !f.IsDone() {
		f.resultCallbacks = append(f.resultCallbacks, callback)
		f.mu.Unlock()

		return f
	}

	f.mu.Unlock()

	invokeCallback("OnResult", callback, f.result)

	return f
}

// Discard converts a typed future into one that only reports completion.
func Discard[T any](fut *Future[T]) *Future[struct{}] {
	out, promise := New[struct{}]()

	fut.OnResult(func(res Result[T]) {
		promise.Complete(struct{}{}, res.Error)
	})

	return out
}
