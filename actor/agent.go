package actor

import (
	"context"
	"reflect"

	"github.com/amp-labs/amp-gamecore/future"
)

// Agent is the behavior half of a capability. The state half lives on the
// Component the agent is bound to, so an agent can be swapped for a new
// build without touching state or actor identity.
//
// Concrete agents embed BaseAgent (or StatefulAgent) and override Active and
// Inactive as needed.
type Agent interface {
	// Active runs once, on the actor's lane, when the capability is attached.
	Active(ctx context.Context) error
	// Inactive runs on the actor's lane before the capability is detached.
	Inactive(ctx context.Context) error
	Owner() *Component

	bind(owner *Component)
}

// CrossDayAgent is implemented by agents that react to the server day
// rolling over.
type CrossDayAgent interface {
	Agent
	OnCrossDay(ctx context.Context, serverDay int) error
}

// BaseAgent provides the default lifecycle hooks and access to the owning
// actor. It must be embedded, not used on its own.
type BaseAgent struct {
	owner *Component
}

func (b *BaseAgent) bind(owner *Component) {
	b.owner = owner
}

// Owner returns the component this agent is bound to.
func (b *BaseAgent) Owner() *Component {
	return b.owner
}

func (b *BaseAgent) Active(context.Context) error {
	return nil
}

func (b *BaseAgent) Inactive(context.Context) error {
	return nil
}

// Actor returns the owning actor, always resolved through the current owner.
func (b *BaseAgent) Actor() *Actor {
	return b.owner.actor
}

// ActorID returns the owning actor's id.
func (b *BaseAgent) ActorID() int64 {
	return b.owner.actor.id
}

// System returns the system the owning actor lives in.
func (b *BaseAgent) System() *System {
	return b.owner.actor.sys
}

func (b *BaseAgent) executor() *Lane {
	return b.owner.actor.lane
}

// Tell queues work on the owning actor's lane.
func (b *BaseAgent) Tell(ctx context.Context, work func(ctx context.Context) error, opts ...CallOption) {
	b.owner.actor.lane.Tell(ctx, work, opts...)
}

// TellAsync queues asynchronous work on the owning actor's lane.
func (b *BaseAgent) TellAsync(
	ctx context.Context,
	work func(ctx context.Context) *future.Future[struct{}],
	opts ...CallOption,
) {
	b.owner.actor.lane.TellAsync(ctx, work, opts...)
}

// SendAsync queues work on the owning actor's lane and returns its outcome.
func (b *BaseAgent) SendAsync(
	ctx context.Context,
	work func(ctx context.Context) error,
	opts ...CallOption,
) *future.Future[struct{}] {
	return b.owner.actor.lane.SendAsync(ctx, work, opts...)
}

// GetAgent resolves another capability on the same actor.
func (b *BaseAgent) GetAgent(ctx context.Context, capability reflect.Type) (Agent, error) {
	return b.owner.actor.GetAgent(ctx, capability)
}

// StatefulAgent is a BaseAgent whose component state is an *S, allocated
// when the capability is first attached.
type StatefulAgent[S any] struct {
	BaseAgent
}

// State returns the component's state.
func (s *StatefulAgent[S]) State() *S {
	state, _ := s.owner.state.(*S)

	return state
}

func (s *StatefulAgent[S]) newState() any {
	return new(S)
}

type stateFactory interface {
	newState() any
}

// Definition tells a System how to build one capability.
type Definition struct {
	// Capability is the key agents are looked up by: the agent's own type.
	Capability reflect.Type
	NewAgent   func() Agent
	// NewState allocates component state. Agents embedding StatefulAgent get
	// one by default.
	NewState func() any
}

// Define builds the Definition for agent type A.
func Define[A Agent](newAgent func() A) Definition {
	def := Definition{
		Capability: reflect.TypeFor[A](),
		NewAgent: func() Agent {
			return newAgent()
		},
	}

	if sf, ok := any(newAgent()).(stateFactory); ok {
		def.NewState = sf.newState
	}

	return def
}

// WithState returns a copy of d that allocates state with newState.
func (d Definition) WithState(newState func() any) Definition {
	d.NewState = newState

	return d
}
