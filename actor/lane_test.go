package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

const waitFor = 2 * time.Second

func newTestPool(t *testing.T) pond.Pool {
	t.Helper()

	pool := pond.NewPool(0)
	t.Cleanup(pool.StopAndWait)

	return pool
}

func newTestLane(t *testing.T, opts ...LaneOption) *Lane {
	t.Helper()

	return NewLane(newTestPool(t), opts...)
}

func await[T any](t *testing.T, fut *future.Future[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), waitFor)
	defer cancel()

	val, err := fut.AwaitContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		t.Fatal("future did not complete in time")
	}

	return val, err
}

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = append(r.log, s)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.log...)
}

func TestLane_FIFO(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t, LaneThroughput(3))

	var (
		mu  sync.Mutex
		got []int
	)

	for i := range 100 {
		lane.Tell(t.Context(), func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()

			return nil
		})
	}

	_, err := await(t, lane.SendAsync(t.Context(), func(context.Context) error { return nil }))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, got, 100)

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLane_OneItemAtATime(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)

	var (
		mu      sync.Mutex
		running int
		peak    int
	)

	futs := make([]*future.Future[struct{}], 0, 20)

	for range 20 {
		futs = append(futs, lane.SendAsync(t.Context(), func(context.Context) error {
			mu.Lock()
			running++
			peak = max(peak, running)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()

			return nil
		}))
	}

	for _, fut := range futs {
		_, err := await(t, fut)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, peak)
}

func TestCall_Result(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)

	val, err := await(t, Call(t.Context(), lane, func(context.Context) (int, error) {
		return 42, nil
	}))

	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestLane_FailureIsIsolated(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)

	_, err := await(t, lane.SendAsync(t.Context(), func(context.Context) error {
		return errBoom
	}))
	require.ErrorIs(t, err, errBoom)

	_, err = await(t, Call(t.Context(), lane, func(context.Context) (int, error) {
		panic("kaboom")
	}))
	require.ErrorIs(t, err, coreErrors.ErrPanicRecovery)
	assert.Contains(t, err.Error(), "kaboom")

	lane.Tell(t.Context(), func(context.Context) error { panic("tell panic") })

	ran := make(chan struct{})

	lane.Tell(t.Context(), func(context.Context) error {
		close(ran)

		return nil
	})

	select {
	case <-ran:
	case <-time.After(waitFor):
		t.Fatal("lane stopped after a failing item")
	}
}

func TestCall_ReentrantRunsInline(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)

	val, err := await(t, Call(t.Context(), lane, func(ctx context.Context) (int, error) {
		inner := Call(ctx, lane, func(context.Context) (int, error) {
			return 1, nil
		})

		// Inline calls are already complete when returned.
		if !inner.IsDone() {
			return 0, errBoom
		}

		v, err := inner.Await()

		return v + 1, err
	}))

	require.NoError(t, err)
	assert.Equal(t, 2, val)
}

func TestCall_ChainAcrossLanesRunsInline(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	laneA := NewLane(pool, LaneOwner(1, "a"))
	laneB := NewLane(pool, LaneOwner(2, "b"))

	rec := &recorder{}

	_, err := await(t, laneA.SendAsync(t.Context(), func(ctx context.Context) error {
		rec.add("a:start")

		_, err := Call(ctx, laneB, func(ctx context.Context) (struct{}, error) {
			rec.add("b")

			_, err := laneA.SendAsync(ctx, func(context.Context) error {
				rec.add("a:reentered")

				return nil
			}).AwaitContext(ctx)

			return struct{}{}, err
		}).AwaitContext(ctx)

		rec.add("a:end")

		return err
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"a:start", "b", "a:reentered", "a:end"}, rec.get())
}

type occupancy struct {
	mu   sync.Mutex
	now  int
	peak int
}

func (o *occupancy) enter() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.now++
	o.peak = max(o.peak, o.now)
}

func (o *occupancy) leave() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.now--
}

func (o *occupancy) highest() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.peak
}

func TestCall_UnawaitedCallbackQueues(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	laneA := NewLane(pool, LaneOwner(1, "a"))
	laneB := NewLane(pool, LaneOwner(2, "b"))

	occupied := &occupancy{}
	rec := &recorder{}

	var fromB *future.Future[struct{}]

	_, err := await(t, laneA.SendAsync(t.Context(), func(ctx context.Context) error {
		occupied.enter()
		defer occupied.leave()

		// Not awaited: A keeps its lane while B calls back.
		fromB = laneB.SendAsync(ctx, func(ctx context.Context) error {
			_, err := laneA.SendAsync(ctx, func(context.Context) error {
				occupied.enter()
				defer occupied.leave()

				rec.add("a:callback")

				return nil
			}).AwaitContext(ctx)

			return err
		})

		time.Sleep(50 * time.Millisecond)
		rec.add("a:end")

		return nil
	}))
	require.NoError(t, err)

	_, err = await(t, fromB)
	require.NoError(t, err)

	assert.Equal(t, 1, occupied.highest(), "lane A ran two items at once")
	assert.Equal(t, []string{"a:end", "a:callback"}, rec.get())
}

func TestCall_CallbackQueuedBeforeAwaitRuns(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	laneA := NewLane(pool, LaneOwner(1, "a"))
	laneB := NewLane(pool, LaneOwner(2, "b"))

	rec := &recorder{}

	_, err := await(t, laneA.SendAsync(t.Context(), func(ctx context.Context) error {
		queued := make(chan struct{})

		fromB := laneB.SendAsync(ctx, func(ctx context.Context) error {
			callback := laneA.SendAsync(ctx, func(context.Context) error {
				rec.add("a:callback")

				return nil
			})

			close(queued)

			_, err := callback.AwaitContext(ctx)

			return err
		})

		<-queued
		rec.add("a:awaiting")

		// The callback sits behind this item; waiting on B lets it run.
		_, err := fromB.AwaitContext(ctx)

		rec.add("a:end")

		return err
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"a:awaiting", "a:callback", "a:end"}, rec.get())
}

func TestCall_LockCheckDisabledQueues(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)
	rec := &recorder{}

	var inner *future.Future[struct{}]

	_, err := await(t, lane.SendAsync(t.Context(), func(ctx context.Context) error {
		inner = lane.SendAsync(ctx, func(context.Context) error {
			rec.add("inner")

			return nil
		}, WithLockCheck(false))

		rec.add("outer")

		return nil
	}))
	require.NoError(t, err)

	_, err = await(t, inner)
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner"}, rec.get())
}

func TestTell_StartsFreshChain(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)
	rec := &recorder{}

	_, err := await(t, lane.SendAsync(t.Context(), func(ctx context.Context) error {
		lane.Tell(ctx, func(context.Context) error {
			rec.add("told")

			return nil
		})

		rec.add("outer")

		return nil
	}))
	require.NoError(t, err)

	_, err = await(t, lane.SendAsync(t.Context(), func(context.Context) error { return nil }))
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "told"}, rec.get())
}

func TestLane_Timeout(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)
	release := make(chan struct{})
	finished := make(chan struct{})

	slow := lane.SendAsync(t.Context(), func(context.Context) error {
		<-release
		close(finished)

		return nil
	}, WithTimeout(20*time.Millisecond), WithName("slow"))

	next := Call(t.Context(), lane, func(context.Context) (string, error) {
		return "next", nil
	})

	_, err := await(t, slow)
	require.ErrorIs(t, err, coreErrors.ErrQueueTimeout)

	val, err := await(t, next)
	require.NoError(t, err)
	assert.Equal(t, "next", val)

	// The timed out work was not interrupted.
	close(release)

	select {
	case <-finished:
	case <-time.After(waitFor):
		t.Fatal("timed out work never finished")
	}

	_, err = slow.Await()
	require.ErrorIs(t, err, coreErrors.ErrQueueTimeout, "late completion must not overwrite the timeout")
}

func TestLane_DefaultTimeout(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t, LaneDefaultTimeout(10*time.Millisecond))
	release := make(chan struct{})

	defer close(release)

	_, err := await(t, lane.SendAsync(t.Context(), func(context.Context) error {
		<-release

		return nil
	}))
	require.ErrorIs(t, err, coreErrors.ErrQueueTimeout)

	_, err = await(t, lane.SendAsync(t.Context(), func(context.Context) error {
		time.Sleep(30 * time.Millisecond)

		return nil
	}, WithTimeout(0)))
	require.NoError(t, err, "WithTimeout(0) waits forever")
}

func TestTellAsync_HoldsLane(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)
	rec := &recorder{}

	lane.TellAsync(t.Context(), func(context.Context) *future.Future[struct{}] {
		return future.Go(func() (struct{}, error) {
			time.Sleep(20 * time.Millisecond)
			rec.add("async done")

			return struct{}{}, nil
		})
	})

	_, err := await(t, lane.SendAsync(t.Context(), func(context.Context) error {
		rec.add("next")

		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"async done", "next"}, rec.get())
}

func TestCallAsync(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)

	val, err := await(t, CallAsync(t.Context(), lane, func(context.Context) *future.Future[string] {
		return future.Go(func() (string, error) {
			return "async", nil
		})
	}))
	require.NoError(t, err)
	assert.Equal(t, "async", val)

	_, err = await(t, CallAsync(t.Context(), lane, func(context.Context) *future.Future[string] {
		return future.Failed[string](errBoom)
	}))
	require.ErrorIs(t, err, errBoom)

	val, err = await(t, Call(t.Context(), lane, func(ctx context.Context) (string, error) {
		return CallAsync(ctx, lane, func(context.Context) *future.Future[string] {
			return future.Completed("inline")
		}).Await()
	}))
	require.NoError(t, err)
	assert.Equal(t, "inline", val)
}

func TestLane_SkipsCancelledItems(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)
	release := make(chan struct{})

	blocker := lane.SendAsync(t.Context(), func(context.Context) error {
		<-release

		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())

	ran := false
	skipped := lane.SendAsync(ctx, func(context.Context) error {
		ran = true

		return nil
	})

	cancel()
	close(release)

	_, err := await(t, blocker)
	require.NoError(t, err)

	_, err = await(t, skipped)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestLane_Close(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)
	rec := &recorder{}

	for range 5 {
		lane.Tell(t.Context(), func(context.Context) error {
			time.Sleep(time.Millisecond)
			rec.add("item")

			return nil
		})
	}

	require.NoError(t, lane.Close(t.Context()))

	assert.Len(t, rec.get(), 5, "close waits for queued items")
	assert.True(t, lane.Idle())
	assert.True(t, lane.Closed())

	_, err := await(t, lane.SendAsync(t.Context(), func(context.Context) error { return nil }))
	require.ErrorIs(t, err, coreErrors.ErrDeadActor)

	require.NoError(t, lane.Close(t.Context()), "closing twice is fine")
}

func TestLane_CloseFromOwnItem(t *testing.T) {
	t.Parallel()

	lane := newTestLane(t)

	_, err := await(t, lane.SendAsync(t.Context(), func(ctx context.Context) error {
		return lane.Close(ctx)
	}))
	require.NoError(t, err)
	assert.True(t, lane.Closed())
}

func TestLane_StoppedPool(t *testing.T) {
	t.Parallel()

	pool := pond.NewPool(1)
	pool.StopAndWait()

	lane := NewLane(pool)

	_, err := await(t, lane.SendAsync(t.Context(), func(context.Context) error { return nil }))
	require.ErrorIs(t, err, coreErrors.ErrDeadActor)
	assert.True(t, lane.Idle())
}
