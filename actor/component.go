package actor

import (
	"reflect"
)

// Component holds the state of one capability on one actor, together with
// the agent currently bound to it.
type Component struct {
	actor      *Actor
	capability reflect.Type
	state      any
	agent      Agent
	generation uint64
}

// Actor returns the owning actor.
func (c *Component) Actor() *Actor {
	return c.actor
}

// Capability returns the capability type this component serves.
func (c *Component) Capability() reflect.Type {
	return c.capability
}

// State returns the raw component state, nil if the capability has none.
func (c *Component) State() any {
	return c.state
}

// Agent returns the agent currently bound to the component.
func (c *Component) Agent() Agent {
	return c.agent
}

func (c *Component) attach(agent Agent, generation uint64) {
	agent.bind(c)
	c.agent = agent
	c.generation = generation
}
