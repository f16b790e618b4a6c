package actor

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/amp-labs/amp-gamecore/timer"
	"go.uber.org/atomic"
)

type walletState struct {
	Gold int
}

type walletAgent struct {
	StatefulAgent[walletState]

	build string
}

func (w *walletAgent) Add(ctx context.Context, n int) (int, error) {
	return Call(ctx, w, func(context.Context) (int, error) {
		w.State().Gold += n

		return w.State().Gold, nil
	}).AwaitContext(ctx)
}

type questAgent struct {
	BaseAgent

	crossed []int
	failDay int
	stopped *atomic.Int32
}

func (q *questAgent) OnCrossDay(_ context.Context, serverDay int) error {
	q.crossed = append(q.crossed, serverDay)

	if serverDay == q.failDay {
		return errBoom
	}

	return nil
}

func (q *questAgent) Inactive(context.Context) error {
	if q.stopped != nil {
		q.stopped.Inc()
	}

	return nil
}

type rankAgent struct {
	BaseAgent

	crossed []int
}

func (m *rankAgent) OnCrossDay(_ context.Context, serverDay int) error {
	m.crossed = append(m.crossed, serverDay)

	return nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	next      timer.ID
	live      map[timer.ID]timer.HandlerType
	cancelled []timer.ID
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{live: make(map[timer.ID]timer.HandlerType)}
}

func (f *fakeScheduler) Register(_ int64, handler timer.HandlerType, _ timer.Rule, _ any) (timer.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	f.live[f.next] = handler

	return f.next, nil
}

func (f *fakeScheduler) Cancel(id timer.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.live, id)
	f.cancelled = append(f.cancelled, id)
}

func (f *fakeScheduler) cancels() []timer.ID {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := append([]timer.ID(nil), f.cancelled...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func newTestSystem(t *testing.T, opts ...Option) *System {
	t.Helper()

	sys := NewSystem(opts...)
	t.Cleanup(func() {
		_ = sys.Close(context.Background())
	})

	return sys
}

func noopTimer(context.Context, *Actor, timer.Fire) error {
	return nil
}
