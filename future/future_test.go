package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func TestNew_Success(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Success(42)
	}()

	result, err := fut.Await()

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestNew_Error(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Failure(errTest)
	}()

	result, err := fut.Await()

	require.ErrorIs(t, err, errTest)
	assert.Equal(t, 0, result)
}

func TestPromise_OnlyFirstFulfillmentWins(t *testing.T) {
	t.Parallel()

	fut, promise := New[string]()

	assert.True(t, promise.Success("first"))
	assert.False(t, promise.Failure(errTest))
	assert.False(t, promise.Complete("third", nil))

	result, err := fut.Await()

	require.NoError(t, err)
	assert.Equal(t, "first", result)
}

func TestGo_Panic(t *testing.T) {
	t.Parallel()

	fut := Go(func() (int, error) {
		panic("test panic")
	})

	result, err := fut.Await()

	require.ErrorIs(t, err, coreErrors.ErrPanicRecovery)
	assert.Contains(t, err.Error(), "recovered from panic: test panic")
	assert.Contains(t, err.Error(), "stack trace:")
	assert.Equal(t, 0, result)
}

func TestGoContext_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	fut := GoContext(ctx, func(ctx context.Context) (string, error) {
		<-ctx.Done()

		return "", ctx.Err()
	})

	cancel()

	_, err := fut.Await()

	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitContext_Timeout(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	result, err := fut.AwaitContext(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, result)

	// Giving up on the wait leaves the future usable.
	promise.Success(7)

	result, err = fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 7, result)
}

type countingParker struct {
	mu      sync.Mutex
	parks   int
	unparks int
}

func (p *countingParker) Park() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.parks++
}

func (p *countingParker) Unpark() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unparks++
}

func (p *countingParker) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.parks, p.unparks
}

func TestAwaitContext_Parker(t *testing.T) {
	t.Parallel()

	parker := &countingParker{}
	ctx := WithParker(t.Context(), parker)

	_, err := Completed(1).AwaitContext(ctx)
	require.NoError(t, err)

	parks, unparks := parker.counts()
	assert.Zero(t, parks, "a completed future never blocks")
	assert.Zero(t, unparks)

	fut, promise := New[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		promise.Success(2)
	}()

	val, err := fut.AwaitContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, val)

	parks, unparks = parker.counts()
	assert.Equal(t, 1, parks)
	assert.Equal(t, 1, unparks)
}

func TestCompletedAndFailed(t *testing.T) {
	t.Parallel()

	ok := Completed("done")
	assert.True(t, ok.IsDone())

	val, err := ok.Await()
	require.NoError(t, err)
	assert.Equal(t, "done", val)

	bad := Failed[string](errTest)
	assert.True(t, bad.IsDone())

	_, err = bad.Await()
	require.ErrorIs(t, err, errTest)
}

func TestCallbacks(t *testing.T) {
	t.Parallel()

	t.Run("registered before completion", func(t *testing.T) {
		t.Parallel()

		fut, promise := New[int]()

		gotValue := make(chan int, 1)
		gotResult := make(chan Result[int], 1)

		fut.OnSuccess(func(v int) { gotValue <- v })
		fut.OnError(func(error) { t.Error("OnError must not fire on success") })
		fut.OnResult(func(r Result[int]) { gotResult <- r })

		promise.Success(5)

		assert.Equal(t, 5, <-gotValue)
		assert.True(t, (<-gotResult).IsSuccess())
	})

	t.Run("registered after completion", func(t *testing.T) {
		t.Parallel()

		fut := Failed[int](errTest)

		gotErr := make(chan error, 1)
		fut.OnError(func(err error) { gotErr <- err })

		require.ErrorIs(t, <-gotErr, errTest)
	})

	t.Run("panicking callback does not break others", func(t *testing.T) {
		t.Parallel()

		fut, promise := New[int]()

		got := make(chan int, 1)

		fut.OnSuccess(func(int) { panic("callback panic") })
		fut.OnSuccess(func(v int) { got <- v })

		promise.Success(9)

		assert.Equal(t, 9, <-got)
	})
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	_, err := Discard(Failed[int](errTest)).Await()
	require.ErrorIs(t, err, errTest)

	_, err = Discard(Completed(1)).Await()
	require.NoError(t, err)
}

func TestConcurrentAwait(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	var wg sync.WaitGroup

	results := make([]int, 10)

	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := fut.Await()
			if err == nil {
				results[i] = v
			}
		}()
	}

	promise.Success(3)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 3, v)
	}
}
