package actor

import (
	"context"
	"runtime/debug"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/future"
	"github.com/amp-labs/amp-gamecore/logger"
)

// Executor is anything that owns a lane: a *Lane, an *Actor, or an agent
// embedding BaseAgent.
type Executor interface {
	executor() *Lane
}

// Tell queues work and returns immediately. Errors and panics inside work are
// logged, never returned. The item starts a fresh call chain and does not
// inherit the caller's cancellation.
func (l *Lane) Tell(ctx context.Context, work func(ctx context.Context) error, opts ...CallOption) {
	o := newCallOptions(opts)
	chain := newChain()

	it := &item{
		ctx:   withChain(context.WithoutCancel(ctx), chain),
		chain: chain,
		opts:  o,
		run:   work,
	}
	it.done = func(err error) { l.logFailure(it, err) }

	if err := l.enqueue(it); err != nil {
		l.logFailure(it, err)
	}
}

// TellAsync queues work whose result is itself a future. The lane takes no
// other item until that future completes or the item times out.
func (l *Lane) TellAsync(
	ctx context.Context,
	work func(ctx context.Context) *future.Future[struct{}],
	opts ...CallOption,
) {
	l.Tell(ctx, func(ctx context.Context) error {
		_, err := work(ctx).AwaitContext(ctx)

		return err
	}, opts...)
}

// SendAsync queues work and returns a future completed with its outcome.
func (l *Lane) SendAsync(
	ctx context.Context,
	work func(ctx context.Context) error,
	opts ...CallOption,
) *future.Future[struct{}] {
	return Call(ctx, l, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	}, opts...)
}

// Call queues work on exec's lane and returns a future for its result.
//
// With lock checking on, work runs inline on the calling goroutine instead
// of queueing in two cases: the caller is the code executing on exec's lane,
// or the caller belongs to the call chain of exec's executing item while
// that item is parked in AwaitContext. Queued calls carry the caller's chain,
// so A awaiting B while B calls back into A runs the callback inline. An item
// that has not reached AwaitContext keeps the lane, and the callback queues.
func Call[T any](
	ctx context.Context,
	exec Executor,
	work func(ctx context.Context) (T, error),
	opts ...CallOption,
) *future.Future[T] {
	lane := exec.executor()
	o := newCallOptions(opts)

	if o.lockCheck {
		if lane.holds(ctx) {
			inlineCalls.WithLabelValues(lane.kind).Inc()

			return runInline(ctx, work)
		}

		if f := lane.enter(ctx); f != nil {
			return runEntered(ctx, f, func(ctx context.Context) *future.Future[T] {
				return runInline(ctx, work)
			})
		}
	}

	chain := chainOf(ctx)
	if chain == 0 {
		chain = newChain()
	}

	fut, promise := future.New[T]()

	it := &item{
		ctx:   withChain(ctx, chain),
		chain: chain,
		opts:  o,
		run: func(ctx context.Context) error {
			value, err := work(ctx)
			promise.Complete(value, err)

			return err
		},
		done: func(err error) {
			if err != nil {
				promise.Failure(err)
			}
		},
	}

	if err := lane.enqueue(it); err != nil {
		promise.Failure(err)
	}

	return fut
}

// CallAsync is Call for work that produces a future. The lane holds until
// that future completes.
func CallAsync[T any](
	ctx context.Context,
	exec Executor,
	work func(ctx context.Context) *future.Future[T],
	opts ...CallOption,
) *future.Future[T] {
	lane := exec.executor()

	if newCallOptions(opts).lockCheck {
		if lane.holds(ctx) {
			inlineCalls.WithLabelValues(lane.kind).Inc()

			return inlineFuture(ctx, work)
		}

		if f := lane.enter(ctx); f != nil {
			return runEntered(ctx, f, func(ctx context.Context) *future.Future[T] {
				return inlineFuture(ctx, work)
			})
		}
	}

	return Call(ctx, exec, func(ctx context.Context) (T, error) {
		inner, err := protectFuture(ctx, work)
		if err != nil {
			var zero T

			return zero, err
		}

		return inner.AwaitContext(ctx)
	}, opts...)
}

// runEntered runs fn as frame f of another lane. The caller's own frame, if
// any, is parked meanwhile since the caller is blocked on fn.
func runEntered[T any](
	ctx context.Context,
	f *frame,
	fn func(ctx context.Context) *future.Future[T],
) *future.Future[T] {
	if caller := frameOf(ctx); caller != nil {
		caller.Park()
		defer caller.Unpark()
	}

	defer f.lane.release(f)

	inlineCalls.WithLabelValues(f.lane.kind).Inc()

	return fn(withFrame(ctx, f))
}

func inlineFuture[T any](ctx context.Context, work func(ctx context.Context) *future.Future[T]) *future.Future[T] {
	inner, err := protectFuture(ctx, work)
	if err != nil {
		return future.Failed[T](err)
	}

	return inner
}

func runInline[T any](ctx context.Context, work func(ctx context.Context) (T, error)) (fut *future.Future[T]) {
	defer func() {
		if r := recover(); r != nil {
			fut = future.Failed[T](coreErrors.FromPanic(r, debug.Stack()))
		}
	}()

	value, err := work(ctx)
	if err != nil {
		return future.Failed[T](err)
	}

	return future.Completed(value)
}

func protectFuture[T any](
	ctx context.Context,
	work func(ctx context.Context) *future.Future[T],
) (fut *future.Future[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = coreErrors.FromPanic(r, debug.Stack())
		}
	}()

	fut = work(ctx)
	if fut == nil {
		return future.Completed(*new(T)), nil
	}

	return fut, nil
}

func (l *Lane) logFailure(it *item, err error) {
	if err == nil {
		return
	}

	logger.Get(logger.WithActor(it.ctx, l.actorID, l.kind)).Error("actor item failed",
		"item", it.opts.name,
		"error", logger.AnnotateError(err, "chain", it.chain))
}
