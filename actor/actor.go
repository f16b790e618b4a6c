// Package actor serializes all work on a game entity through one execution
// lane per entity.
//
// An Actor is identified by an int64 id and a Kind. Its behavior is split
// into capabilities: each capability is a Component (state) bound to an
// Agent (behavior), created lazily the first time the capability is asked
// for. Work reaches an actor through Tell, TellAsync, SendAsync, Call and
// CallAsync; all of it runs on the actor's lane in submission order, one
// item at a time. Timers scheduled through the actor are cancelled when it
// is destroyed.
//
// Actors live in a System, which creates them on first access, shares one
// worker pool across every lane, routes timer firings onto lanes, and
// recycles idle actors that opted in with SetAutoRecycle.
package actor

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/future"
	"github.com/amp-labs/amp-gamecore/logger"
	"github.com/amp-labs/amp-gamecore/timer"
	"go.uber.org/atomic"
)

// Kind classifies actors, e.g. "player" or "guild".
type Kind string

// Actor is one logical game entity.
type Actor struct {
	id   int64
	kind Kind
	sys  *System
	lane *Lane

	autoRecycle atomic.Bool
	refs        atomic.Int32
	destroyed   atomic.Bool

	// components is only touched from the lane.
	components map[reflect.Type]*Component

	mu          sync.Mutex
	scheduleIDs map[timer.ID]struct{}
}

func newActor(sys *System, id int64, kind Kind) *Actor {
	return &Actor{
		id:   id,
		kind: kind,
		sys:  sys,
		lane: NewLane(sys.pool,
			LaneOwner(id, kind),
			LaneThroughput(sys.cfg.Throughput),
			LaneDefaultTimeout(sys.cfg.DefaultTimeout)),
		components:  make(map[reflect.Type]*Component),
		scheduleIDs: make(map[timer.ID]struct{}),
	}
}

func (a *Actor) ID() int64 {
	return a.id
}

func (a *Actor) Kind() Kind {
	return a.kind
}

// System returns the system that owns the actor.
func (a *Actor) System() *System {
	return a.sys
}

// Lane exposes the actor's execution lane.
func (a *Actor) Lane() *Lane {
	return a.lane
}

func (a *Actor) executor() *Lane {
	return a.lane
}

func (a *Actor) String() string {
	return fmt.Sprintf("%s/%d", a.kind, a.id)
}

// Tell queues work on the actor's lane.
func (a *Actor) Tell(ctx context.Context, work func(ctx context.Context) error, opts ...CallOption) {
	a.lane.Tell(ctx, work, opts...)
}

// TellAsync queues asynchronous work on the actor's lane.
func (a *Actor) TellAsync(
	ctx context.Context,
	work func(ctx context.Context) *future.Future[struct{}],
	opts ...CallOption,
) {
	a.lane.TellAsync(ctx, work, opts...)
}

// SendAsync queues work on the actor's lane and returns its outcome.
func (a *Actor) SendAsync(
	ctx context.Context,
	work func(ctx context.Context) error,
	opts ...CallOption,
) *future.Future[struct{}] {
	return a.lane.SendAsync(ctx, work, opts...)
}

// SetAutoRecycle marks the actor as eligible for the idle sweep.
func (a *Actor) SetAutoRecycle(enabled bool) {
	a.autoRecycle.Store(enabled)
}

// AutoRecycle reports the last value given to SetAutoRecycle.
func (a *Actor) AutoRecycle() bool {
	return a.autoRecycle.Load()
}

// Acquire pins the actor against the idle sweep until Release is called.
func (a *Actor) Acquire() {
	a.refs.Inc()
}

// Release undoes one Acquire.
func (a *Actor) Release() {
	if a.refs.Dec() < 0 {
		a.refs.Store(0)
	}
}

// Destroyed reports whether Destroy has started.
func (a *Actor) Destroyed() bool {
	return a.destroyed.Load()
}

// GetAgent returns the agent for capability, creating and activating it on
// the actor's lane the first time it is asked for.
func (a *Actor) GetAgent(ctx context.Context, capability reflect.Type) (Agent, error) {
	return Call(ctx, a, func(ctx context.Context) (Agent, error) {
		return a.resolve(ctx, capability)
	}, WithName("resolve "+capability.String())).AwaitContext(ctx)
}

// GetAgentOf is GetAgent keyed by the agent type itself.
func GetAgentOf[A Agent](ctx context.Context, a *Actor) (A, error) { //nolint:ireturn
	var zero A

	agent, err := a.GetAgent(ctx, reflect.TypeFor[A]())
	if err != nil {
		return zero, err
	}

	typed, ok := agent.(A)
	if !ok {
		return zero, fmt.Errorf("%w: %s resolved to %T", coreErrors.ErrCapabilityNotRegistered,
			reflect.TypeFor[A](), agent)
	}

	return typed, nil
}

// resolve must run on the lane.
func (a *Actor) resolve(ctx context.Context, capability reflect.Type) (Agent, error) {
	reg, ok := a.sys.registration(capability)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", coreErrors.ErrCapabilityNotRegistered, capability, a)
	}

	comp, ok := a.components[capability]
	if ok {
		if comp.generation != reg.generation {
			comp.attach(reg.def.NewAgent(), reg.generation)

			logger.Get(ctx).Debug("agent rebuilt after reload", "capability", capability.String())
		}

		return comp.agent, nil
	}

	if a.destroyed.Load() {
		return nil, fmt.Errorf("%w: %s", coreErrors.ErrDeadActor, a)
	}

	comp = &Component{actor: a, capability: capability}
	if reg.def.NewState != nil {
		comp.state = reg.def.NewState()
	}

	comp.attach(reg.def.NewAgent(), reg.generation)

	a.components[capability] = comp

	if err := comp.agent.Active(ctx); err != nil {
		delete(a.components, capability)

		return nil, fmt.Errorf("activating %s on %s: %w", capability, a, err)
	}

	return comp.agent, nil
}

// sortedComponents must run on the lane.
func (a *Actor) sortedComponents() []*Component {
	comps := make([]*Component, 0, len(a.components))
	for _, comp := range a.components {
		comps = append(comps, comp)
	}

	sort.Slice(comps, func(i, j int) bool {
		return comps[i].capability.String() < comps[j].capability.String()
	})

	return comps
}

// CrossDay delivers a server-day rollover to every attached agent that
// implements CrossDayAgent. A failing agent does not stop delivery to the
// rest; all failures are returned joined.
func (a *Actor) CrossDay(ctx context.Context, serverDay int) error {
	_, err := Call(ctx, a, func(ctx context.Context) (struct{}, error) {
		var errs coreErrors.Collection

		for _, comp := range a.sortedComponents() {
			agent, ok := comp.agent.(CrossDayAgent)
			if !ok {
				continue
			}

			if err := crossDay(ctx, agent, serverDay); err != nil {
				logger.Get(ctx).Error("cross day failed",
					"capability", comp.capability.String(), "server_day", serverDay, "error", err)

				errs.Add(err)
			}
		}

		return struct{}{}, errs.GetError()
	}, WithName("cross day")).AwaitContext(ctx)

	return err
}

func crossDay(ctx context.Context, agent CrossDayAgent, serverDay int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = coreErrors.FromPanic(r, debug.Stack())
		}
	}()

	return agent.OnCrossDay(ctx, serverDay)
}

// ScheduleIDs returns the outstanding timer ids.
func (a *Actor) ScheduleIDs() []timer.ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]timer.ID, 0, len(a.scheduleIDs))
	for id := range a.scheduleIDs {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Destroy tears the actor down: Inactive runs on the lane for each component
// in turn, every outstanding timer is cancelled, components are detached,
// and the lane is closed after draining. The actor stays registered in its
// System until the lane has drained, so its id cannot be reused while it
// still runs. Only the first call does anything.
func (a *Actor) Destroy(ctx context.Context) error {
	if !a.destroyed.CompareAndSwap(false, true) {
		return nil
	}

	var errs coreErrors.Collection

	comps, err := Call(ctx, a, func(context.Context) ([]*Component, error) {
		return a.sortedComponents(), nil
	}, WithName("destroy")).AwaitContext(ctx)
	errs.Add(err)

	for _, comp := range comps {
		_, err := Call(ctx, a, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, comp.agent.Inactive(ctx)
		}, WithName("inactive "+comp.capability.String())).AwaitContext(ctx)
		if err != nil {
			logger.Get(ctx).Error("agent inactive failed",
				"actor_id", a.id, "capability", comp.capability.String(), "error", err)

			errs.Add(err)
		}
	}

	a.mu.Lock()
	ids := a.scheduleIDs
	a.scheduleIDs = make(map[timer.ID]struct{})
	a.mu.Unlock()

	for id := range ids {
		a.sys.scheduler.Cancel(id)
	}

	_, err = Call(ctx, a, func(context.Context) (struct{}, error) {
		clear(a.components)

		return struct{}{}, nil
	}, WithName("detach")).AwaitContext(ctx)
	errs.Add(err)

	closeErr := a.lane.Close(ctx)
	errs.Add(closeErr)

	if closeErr == nil && !a.lane.holds(ctx) {
		a.sys.forget(a)
	} else {
		// Closed from its own lane, or the wait was cut short.
		go func() {
			<-a.lane.drainedCh()
			a.sys.forget(a)
		}()
	}

	actorsDestroyed.WithLabelValues(string(a.kind)).Inc()

	return errs.GetError()
}
