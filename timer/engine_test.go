package timer

import (
	"sync"
	"testing"
	"time"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	fires []Fire
	ch    chan Fire
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Fire, 64)}
}

func (r *recorder) dispatch(f Fire) {
	r.mu.Lock()
	r.fires = append(r.fires, f)
	r.mu.Unlock()

	r.ch <- f
}

func (r *recorder) wait(t *testing.T) Fire {
	t.Helper()

	select {
	case f := <-r.ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")

		return Fire{}
	}
}

func TestEngine_OneShot(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	eng := NewEngine(rec.dispatch)

	id, err := eng.Register(7, "reward", After(5*time.Millisecond), "gold")
	require.NoError(t, err)
	assert.NotZero(t, id)

	fire := rec.wait(t)
	assert.Equal(t, id, fire.ID)
	assert.Equal(t, int64(7), fire.ActorID)
	assert.Equal(t, HandlerType("reward"), fire.Handler)
	assert.Equal(t, "gold", fire.Param)
	assert.Equal(t, 1, fire.Count)
	assert.True(t, fire.Last)

	assert.Eventually(t, func() bool { return eng.Len() == 0 }, time.Second, time.Millisecond)
}

func TestEngine_RepeatCount(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	eng := NewEngine(rec.dispatch)

	rule, err := Every(0, 2*time.Millisecond, 2)
	require.NoError(t, err)

	_, err = eng.Register(1, "tick", rule, nil)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		fire := rec.wait(t)
		assert.Equal(t, want, fire.Count)
		assert.Equal(t, want == 3, fire.Last)
	}

	select {
	case f := <-rec.ch:
		t.Fatalf("unexpected extra firing %d", f.Count)
	case <-time.After(30 * time.Millisecond):
	}

	assert.Equal(t, 0, eng.Len())
}

func TestEngine_Cancel(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	eng := NewEngine(rec.dispatch)

	id, err := eng.Register(1, "never", After(50*time.Millisecond), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Len())

	eng.Cancel(id)
	eng.Cancel(id)
	eng.Cancel(ID(12345))

	assert.Equal(t, 0, eng.Len())

	select {
	case <-rec.ch:
		t.Fatal("cancelled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngine_RejectsBadRules(t *testing.T) {
	t.Parallel()

	eng := NewEngine(func(Fire) {})

	_, err := eng.Register(1, "x", nil, nil)
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)

	_, err = eng.Register(1, "x", exhausted{}, nil)
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)
}

type exhausted struct{}

func (exhausted) Next(time.Time, int) (time.Time, bool) { return time.Time{}, false }

func TestEngine_Close(t *testing.T) {
	t.Parallel()

	eng := NewEngine(func(Fire) {})

	_, err := eng.Register(1, "x", After(time.Hour), nil)
	require.NoError(t, err)

	eng.Close()
	assert.Equal(t, 0, eng.Len())

	_, err = eng.Register(1, "x", After(time.Hour), nil)
	require.Error(t, err)
}

func TestEngine_DispatcherPanicKeepsRepeating(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})

	eng := NewEngine(func(f Fire) {
		if f.Count == 2 {
			close(done)
		}

		panic("dispatcher exploded")
	})

	rule, err := Every(0, time.Millisecond, 1)
	require.NoError(t, err)

	_, err = eng.Register(1, "boom", rule, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second firing never happened")
	}
}

func TestEngine_FiringsInOrder(t *testing.T) {
	t.Parallel()

	const repeats = 40

	var (
		mu       sync.Mutex
		counts   []int
		inFlight int
		overlap  bool
	)

	done := make(chan struct{})

	eng := NewEngine(func(f Fire) {
		mu.Lock()
		inFlight++
		overlap = overlap || inFlight > 1
		mu.Unlock()

		// Slower than the interval, so the next firing is already due.
		time.Sleep(200 * time.Microsecond)

		mu.Lock()
		inFlight--
		counts = append(counts, f.Count)
		mu.Unlock()

		if f.Last {
			close(done)
		}
	})

	rule, err := Every(0, time.Microsecond, repeats)
	require.NoError(t, err)

	_, err = eng.Register(1, "tick", rule, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("firings did not finish")
	}

	mu.Lock()
	defer mu.Unlock()

	want := make([]int, 0, repeats+1)
	for i := 1; i <= repeats+1; i++ {
		want = append(want, i)
	}

	assert.Equal(t, want, counts)
	assert.False(t, overlap, "firings of one registration overlapped")
}
