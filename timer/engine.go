package timer

import (
	"fmt"
	"sync"
	"time"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/logger"
	"go.uber.org/atomic"
)

// Engine is an in-process Scheduler built on time.AfterFunc. Each
// registration holds at most one pending timer; the next one is armed once
// the current firing has been dispatched.
type Engine struct {
	dispatch Dispatcher
	now      func() time.Time

	nextID atomic.Int64

	mu      sync.Mutex
	closed  bool
	entries map[ID]*entry
}

type entry struct {
	id      ID
	actorID int64
	handler HandlerType
	rule    Rule
	param   any
	fired   int
	at      time.Time
	timer   *time.Timer
}

var _ Scheduler = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces time.Now as the source of registration times.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine returns an engine that reports every firing to dispatch.
func NewEngine(dispatch Dispatcher, opts ...EngineOption) *Engine {
	eng := &Engine{
		dispatch: dispatch,
		now:      time.Now,
		entries:  make(map[ID]*entry),
	}

	for _, opt := range opts {
		opt(eng)
	}

	return eng
}

// Register arms rule for the actor. The rule must yield at least one time.
func (e *Engine) Register(actorID int64, handler HandlerType, rule Rule, param any) (ID, error) {
	if rule == nil {
		return 0, fmt.Errorf("%w: nil rule", coreErrors.ErrInvalidRule)
	}

	now := e.now()

	at, ok := rule.Next(now, 0)
	if !ok {
		return 0, fmt.Errorf("%w: rule never fires", coreErrors.ErrInvalidRule)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, fmt.Errorf("%w: timer engine closed", coreErrors.ErrDeadActor)
	}

	ent := &entry{
		id:      ID(e.nextID.Inc()),
		actorID: actorID,
		handler: handler,
		rule:    rule,
		param:   param,
		at:      at,
	}

	e.entries[ent.id] = ent
	e.arm(ent, now)

	timersActive.Inc()
	timersRegistered.WithLabelValues(string(handler)).Inc()

	return ent.id, nil
}

// arm must be called with mu held.
func (e *Engine) arm(ent *entry, now time.Time) {
	id := ent.id
	ent.timer = time.AfterFunc(max(ent.at.Sub(now), 0), func() {
		e.fire(id)
	})
}

// fire reports one firing and only then arms the next, so firings of one
// registration reach the dispatcher in order.
func (e *Engine) fire(id ID) {
	e.mu.Lock()

	ent, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()

		return
	}

	ent.fired++

	fire := Fire{
		ID:      ent.id,
		ActorID: ent.actorID,
		Handler: ent.handler,
		Param:   ent.param,
		Count:   ent.fired,
		At:      ent.at,
	}

	next, more := ent.rule.Next(ent.at, ent.fired)
	if more {
		ent.at = next
	} else {
		fire.Last = true

		delete(e.entries, id)
		timersActive.Dec()
	}

	e.mu.Unlock()

	timersFired.WithLabelValues(string(fire.Handler)).Inc()

	e.deliver(fire)

	if !more {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Cancelled or closed while the firing was delivered.
	if cur, ok := e.entries[id]; ok && cur == ent {
		e.arm(ent, e.now())
	}
}

func (e *Engine) deliver(fire Fire) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Error("timer dispatcher panicked",
				"timer_id", fire.ID, "actor_id", fire.ActorID, "handler", fire.Handler, "panic", r)
		}
	}()

	e.dispatch(fire)
}

// Cancel stops a registration. It is safe to call more than once.
func (e *Engine) Cancel(id ID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return
	}

	ent.timer.Stop()
	delete(e.entries, id)

	timersActive.Dec()
	timersCancelled.WithLabelValues(string(ent.handler)).Inc()
}

// Len returns the number of live registrations.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.entries)
}

// Close cancels every registration and rejects new ones.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	for id, ent := range e.entries {
		ent.timer.Stop()
		delete(e.entries, id)
		timersActive.Dec()
	}
}
