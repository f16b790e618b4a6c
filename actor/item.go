package actor

import (
	"context"
	"time"

	"github.com/amp-labs/amp-gamecore/future"
	"go.uber.org/atomic"
)

// chainSeq issues call-chain ids. Zero means "no chain".
var chainSeq atomic.Uint64 //nolint:gochecknoglobals

type chainKey struct{}

func newChain() uint64 {
	return chainSeq.Inc()
}

func withChain(ctx context.Context, chain uint64) context.Context {
	return context.WithValue(ctx, chainKey{}, chain)
}

func chainOf(ctx context.Context) uint64 {
	chain, _ := ctx.Value(chainKey{}).(uint64)

	return chain
}

// frame is one stretch of execution on a lane: a dequeued item, or a call
// that entered the lane while the executing item was parked. Its fields are
// guarded by the lane's mutex.
type frame struct {
	lane    *Lane
	chain   uint64
	primary bool
	parks   int
	done    bool
}

// Park implements future.Parker.
func (f *frame) Park() {
	f.lane.park(f)
}

// Unpark implements future.Parker.
func (f *frame) Unpark() {
	f.lane.unpark(f)
}

type frameKey struct{}

func withFrame(ctx context.Context, f *frame) context.Context {
	return future.WithParker(context.WithValue(ctx, frameKey{}, f), f)
}

func frameOf(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)

	return f
}

// item is one unit of work on a lane. run does the work and, for items with
// a result, completes the caller's promise. done receives the final outcome
// exactly once: nil, the work's error, a recovered panic, or a timeout.
type item struct {
	ctx   context.Context //nolint:containedctx
	chain uint64
	opts  callOptions
	run   func(ctx context.Context) error
	done  func(err error)
}

type callOptions struct {
	name       string
	timeout    time.Duration
	hasTimeout bool
	lockCheck  bool
}

func newCallOptions(opts []CallOption) callOptions {
	o := callOptions{lockCheck: true}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// CallOption configures a single submission to a lane.
type CallOption func(*callOptions)

// WithTimeout bounds how long the lane waits for the item before failing it
// with ErrQueueTimeout and moving on. Zero waits forever and overrides the
// lane default.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// WithLockCheck controls re-entrancy detection. With false the item is
// always queued, even when the caller is already running on the target lane.
func WithLockCheck(enabled bool) CallOption {
	return func(o *callOptions) {
		o.lockCheck = enabled
	}
}

// WithName labels the item in logs and spans.
func WithName(name string) CallOption {
	return func(o *callOptions) {
		o.name = name
	}
}
