package actor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultThroughput = 64
	tracerName        = "github.com/amp-labs/amp-gamecore/actor"
)

// Lane runs submitted work one item at a time in submission order. It owns
// no goroutine: while it has work, exactly one drain task is in flight on the
// shared pool, and that task gives its worker back after throughput items.
type Lane struct {
	pool           pond.Pool
	actorID        int64
	kind           string
	throughput     int
	defaultTimeout time.Duration
	tracer         trace.Tracer

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*item
	scheduled bool
	closed    bool
	drained   chan struct{}

	// active is the chain of the dequeued item executing, zero when none.
	active uint64
	// holder is the frame allowed to run on the lane. It is nil while no
	// item executes or while the executing item is parked in AwaitContext.
	holder *frame
}

// LaneOption configures a Lane.
type LaneOption func(*Lane)

// LaneThroughput sets how many items one drain task runs before yielding.
func LaneThroughput(n int) LaneOption {
	return func(l *Lane) {
		if n > 0 {
			l.throughput = n
		}
	}
}

// LaneDefaultTimeout applies to items submitted without WithTimeout.
func LaneDefaultTimeout(d time.Duration) LaneOption {
	return func(l *Lane) {
		l.defaultTimeout = d
	}
}

// LaneOwner tags the lane's logs, spans and metrics with an actor.
func LaneOwner(id int64, kind Kind) LaneOption {
	return func(l *Lane) {
		l.actorID = id
		l.kind = string(kind)
	}
}

// NewLane returns an open lane draining on pool.
func NewLane(pool pond.Pool, opts ...LaneOption) *Lane {
	lane := &Lane{
		pool:       pool,
		kind:       "lane",
		throughput: defaultThroughput,
		tracer:     otel.Tracer(tracerName),
	}
	lane.cond = sync.NewCond(&lane.mu)

	for _, opt := range opts {
		opt(lane)
	}

	lanesAlive.WithLabelValues(lane.kind).Inc()

	return lane
}

func (l *Lane) executor() *Lane {
	return l
}

// holds reports whether ctx belongs to the frame running on this lane right
// now, i.e. the caller is the lane's own executing code.
func (l *Lane) holds(ctx context.Context) bool {
	f := frameOf(ctx)
	if f == nil || f.lane != l {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.holder == f
}

// enter claims the lane for a call arriving from another lane. It succeeds
// only while the executing item belongs to the caller's chain and is parked
// waiting, so the call is one the item is blocked on. A nil frame means the
// call has to queue.
func (l *Lane) enter(ctx context.Context) *frame {
	chain := chainOf(ctx)
	if chain == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active != chain || l.holder != nil {
		return nil
	}

	f := &frame{lane: l, chain: chain}
	l.holder = f

	return f
}

func (l *Lane) acquire(f *frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.holder != nil {
		l.cond.Wait()
	}

	l.holder = f

	if f.primary {
		l.active = f.chain
	}
}

func (l *Lane) release(f *frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f.done = true

	if l.holder == f {
		l.holder = nil
	}

	if f.primary && l.active == f.chain {
		l.active = 0
	}

	l.cond.Broadcast()
}

// park gives the lane up while f waits. Items of f's chain that queued
// before the wait began are run now, since f may be waiting on them. Parks
// nest; the lane is taken back when the outermost wait ends.
func (l *Lane) park(f *frame) {
	l.mu.Lock()

	if f.done {
		l.mu.Unlock()

		return
	}

	f.parks++

	if l.holder != f {
		l.mu.Unlock()

		return
	}

	l.holder = nil

	var waiting []*item
	if f.chain == l.active {
		waiting = l.takeChainLocked(f.chain)
	}

	l.cond.Broadcast()
	l.mu.Unlock()

	if len(waiting) == 0 {
		return
	}

	enqueuedItems.WithLabelValues(l.kind).Sub(float64(len(waiting)))

	go func() {
		for _, it := range waiting {
			l.execute(it, false)
		}
	}()
}

// unpark takes the lane back for f once whoever entered meanwhile is done.
func (l *Lane) unpark(f *frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f.parks == 0 {
		return
	}

	f.parks--

	if f.parks > 0 {
		return
	}

	for l.holder != nil && !f.done {
		l.cond.Wait()
	}

	if !f.done {
		l.holder = f
	}
}

// takeChainLocked removes the queued items of chain. Requires mu.
func (l *Lane) takeChainLocked(chain uint64) []*item {
	var taken []*item

	kept := l.queue[:0]

	for _, it := range l.queue {
		if it.chain == chain && it.opts.lockCheck {
			taken = append(taken, it)
		} else {
			kept = append(kept, it)
		}
	}

	clear(l.queue[len(kept):])
	l.queue = kept

	return taken
}

func (l *Lane) enqueue(it *item) error {
	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()

		return fmt.Errorf("%w: lane of actor %d is closed", coreErrors.ErrDeadActor, l.actorID)
	}

	l.queue = append(l.queue, it)

	start := !l.scheduled
	l.scheduled = true

	l.mu.Unlock()

	submittedItems.WithLabelValues(l.kind).Inc()
	enqueuedItems.WithLabelValues(l.kind).Inc()

	if start {
		l.schedule()
	}

	return nil
}

func (l *Lane) schedule() {
	err := l.pool.Go(l.drain)
	if err == nil {
		return
	}

	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.stopLocked()
	l.mu.Unlock()

	err = fmt.Errorf("%w: %w", coreErrors.ErrDeadActor, err)

	for _, it := range pending {
		enqueuedItems.WithLabelValues(l.kind).Dec()
		it.done(err)
	}
}

// stopLocked marks the drain as finished. Requires mu.
func (l *Lane) stopLocked() {
	l.scheduled = false

	if l.closed && l.drained != nil {
		select {
		case <-l.drained:
		default:
			close(l.drained)
		}
	}
}

func (l *Lane) drain() {
	for range l.throughput {
		l.mu.Lock()

		if len(l.queue) == 0 {
			l.stopLocked()
			l.mu.Unlock()

			return
		}

		it := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]

		l.mu.Unlock()

		enqueuedItems.WithLabelValues(l.kind).Dec()

		l.execute(it, true)
	}

	l.schedule()
}

// execute runs it as a frame of the lane. Primary items come off the queue
// in order; the others were pulled forward by a parked item of their chain.
func (l *Lane) execute(it *item, primary bool) {
	if err := it.ctx.Err(); err != nil {
		it.done(err)

		return
	}

	f := &frame{lane: l, chain: it.chain, primary: primary}

	l.acquire(f)
	defer l.release(f)

	ctx := withFrame(logger.WithActor(it.ctx, l.actorID, l.kind), f)

	ctx, span := l.tracer.Start(ctx, "actor.item", trace.WithAttributes(
		attribute.Int64("actor.id", l.actorID),
		attribute.String("actor.kind", l.kind),
		attribute.String("actor.item", it.opts.name),
	))
	defer span.End()

	start := time.Now()

	err := l.invoke(ctx, it)

	processedItems.WithLabelValues(l.kind).Inc()
	processingTime.WithLabelValues(l.kind).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	it.done(err)
}

func (l *Lane) invoke(ctx context.Context, it *item) error {
	timeout := l.defaultTimeout
	if it.opts.hasTimeout {
		timeout = it.opts.timeout
	}

	if timeout <= 0 {
		return l.protect(ctx, it.run)
	}

	result := make(chan error, 1)

	go func() {
		result <- l.protect(ctx, it.run)
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case err := <-result:
		return err
	case <-deadline.C:
		itemTimeouts.WithLabelValues(l.kind).Inc()

		return fmt.Errorf("%w: %q on actor %d did not finish within %s",
			coreErrors.ErrQueueTimeout, it.opts.name, l.actorID, timeout)
	}
}

func (l *Lane) protect(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			itemPanics.WithLabelValues(l.kind).Inc()

			err = coreErrors.FromPanic(r, debug.Stack())
		}
	}()

	return run(ctx)
}

// Len returns the number of queued items, not counting the one executing.
func (l *Lane) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.queue)
}

// Idle reports whether the lane has nothing queued and nothing executing.
func (l *Lane) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.scheduled && len(l.queue) == 0 && l.holder == nil
}

// Closed reports whether Close has been called.
func (l *Lane) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}

// drainedCh is closed once the lane is closed and its queue has run out. It
// is nil before Close.
func (l *Lane) drainedCh() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.drained
}

// Close rejects further submissions and waits until the queued items have
// run. Called from an item on this lane it only marks the lane closed, since
// waiting would wait on itself.
func (l *Lane) Close(ctx context.Context) error {
	l.mu.Lock()

	if !l.closed {
		l.closed = true
		l.drained = make(chan struct{})

		if !l.scheduled {
			close(l.drained)
		}

		lanesAlive.WithLabelValues(l.kind).Dec()
	}

	drained := l.drained

	l.mu.Unlock()

	if l.holds(ctx) {
		return nil
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
