// Package shutdown turns SIGINT/SIGTERM into an orderly stop of a game node.
//
// Hooks registered with BeforeShutdown run once, newest first, so a component
// registered after its dependencies is stopped before them. Each hook gets a
// context bounded by the grace period.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/amp-labs/amp-gamecore/logger"
)

// DefaultGrace bounds how long all hooks together may take.
const DefaultGrace = 30 * time.Second

// Hook stops one component. Returned errors are logged and do not stop the
// remaining hooks.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	hook Hook
}

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []namedHook    //nolint:gochecknoglobals
	channel chan os.Signal //nolint:gochecknoglobals
	grace   = DefaultGrace //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook to run when shutdown begins. The context
// returned by SetupHandler is still alive while hooks run.
func BeforeShutdown(name string, h Hook) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, namedHook{name: name, hook: h})
}

// SetGrace replaces the grace period shared by all hooks.
func SetGrace(d time.Duration) {
	mut.Lock()
	defer mut.Unlock()

	if d > 0 {
		grace = d
	}
}

// Shutdown triggers shutdown programmatically, as if a signal had arrived.
func Shutdown() {
	mut.Lock()
	ch := channel
	mut.Unlock()

	if ch != nil {
		select {
		case ch <- os.Interrupt:
		default:
		}
	}
}

// SetupHandler installs the signal handler and returns a context that is
// cancelled after every hook has run.
func SetupHandler(parent context.Context) context.Context {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	mut.Lock()
	channel = ch
	mut.Unlock()

	ctx, cancel := context.WithCancel(parent)

	go func() {
		defer cancel()

		select {
		case sig := <-ch:
			logger.Get(ctx).Warn("received " + sig.String() + ", shutting down")
		case <-ctx.Done():
		}

		signal.Stop(ch)

		mut.Lock()
		channel = nil
		mut.Unlock()

		runHooks(context.WithoutCancel(ctx))
	}()

	return ctx
}

func runHooks(ctx context.Context) {
	mut.Lock()
	pending := hooks
	hooks = nil
	limit := grace
	mut.Unlock()

	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	for i := len(pending) - 1; i >= 0; i-- {
		h := pending[i]

		if err := h.hook(ctx); err != nil {
			logger.Get(ctx).Error("shutdown hook failed", "hook", h.name, "error", err)
		} else {
			logger.Get(ctx).Debug("shutdown hook done", "hook", h.name)
		}
	}
}
