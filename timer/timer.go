// Package timer computes recurrence rules and runs them.
//
// The Scheduler contract is what actors schedule against: it registers a rule
// for an (actor, handler type, param) triple and hands back an ID that cancels
// it. Engine is the in-process implementation; it never runs handler code
// itself, it only reports each firing to a Dispatcher.
package timer

import (
	"time"
)

// ID identifies one registration. Zero is never issued.
type ID int64

// HandlerType names the handler a firing is routed to.
type HandlerType string

// Fire describes a single firing of a registration.
type Fire struct {
	ID      ID
	ActorID int64
	Handler HandlerType
	Param   any
	// Count is 1 for the first firing of a registration.
	Count int
	// Last is set on the final firing of a finite rule.
	Last bool
	At   time.Time
}

// Dispatcher receives firings. It is called on a timer goroutine and must
// not block.
type Dispatcher func(Fire)

// Scheduler registers and cancels timer rules for actors.
type Scheduler interface {
	Register(actorID int64, handler HandlerType, rule Rule, param any) (ID, error)
	// Cancel stops a registration. Unknown and already finished ids are ignored.
	Cancel(id ID)
}
