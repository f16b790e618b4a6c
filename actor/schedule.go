package actor

import (
	"context"
	"fmt"
	"time"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/logger"
	"github.com/amp-labs/amp-gamecore/timer"
)

// TimerHandler runs on the actor's lane each time one of its timers fires.
type TimerHandler interface {
	OnTimer(ctx context.Context, act *Actor, fire timer.Fire) error
}

// TimerHandlerFunc adapts a function to TimerHandler.
type TimerHandlerFunc func(ctx context.Context, act *Actor, fire timer.Fire) error

func (f TimerHandlerFunc) OnTimer(ctx context.Context, act *Actor, fire timer.Fire) error {
	return f(ctx, act, fire)
}

// AgentTimer builds a handler that resolves agent A on the firing actor and
// hands it the firing.
func AgentTimer[A Agent](fn func(ctx context.Context, agent A, fire timer.Fire) error) TimerHandler {
	return TimerHandlerFunc(func(ctx context.Context, act *Actor, fire timer.Fire) error {
		agent, err := GetAgentOf[A](ctx, act)
		if err != nil {
			return err
		}

		return fn(ctx, agent, fire)
	})
}

// RegisterTimerHandler binds a handler type to its handler.
func (s *System) RegisterTimerHandler(handlerType timer.HandlerType, handler TimerHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.handlers[handlerType] = handler
}

func (s *System) timerHandler(handlerType timer.HandlerType) (TimerHandler, bool) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	h, ok := s.handlers[handlerType]

	return h, ok
}

// FireTimer routes one firing onto its actor's lane. Firings for actors that
// are gone are dropped.
func (s *System) FireTimer(fire timer.Fire) {
	ctx := logger.With(context.Background(), "timer_id", fire.ID, "handler", fire.Handler)

	act, ok := s.Get(fire.ActorID)
	if !ok {
		logger.Get(ctx).Debug("timer fired for missing actor", "actor_id", fire.ActorID)

		return
	}

	if fire.Last {
		act.forgetSchedule(fire.ID)
	}

	handler, ok := s.timerHandler(fire.Handler)
	if !ok {
		logger.Get(ctx).Error("timer fired for unknown handler", "actor_id", fire.ActorID)

		return
	}

	act.Tell(ctx, func(ctx context.Context) error {
		return handler.OnTimer(ctx, act, fire)
	}, WithName("timer "+string(fire.Handler)))
}

func (a *Actor) forgetSchedule(id timer.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.scheduleIDs, id)
}

func (a *Actor) schedule(handler timer.HandlerType, rule timer.Rule, param any, unscheduleID timer.ID) (timer.ID, error) {
	a.Unschedule(unscheduleID)

	if _, ok := a.sys.timerHandler(handler); !ok {
		return 0, fmt.Errorf("%w: %q", coreErrors.ErrTimerHandlerNotRegistered, handler)
	}

	if a.destroyed.Load() {
		return 0, fmt.Errorf("%w: %s", coreErrors.ErrDeadActor, a)
	}

	id, err := a.sys.scheduler.Register(a.id, handler, rule, param)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()

	// Destroy may have emptied the set while we were registering.
	if a.destroyed.Load() {
		a.mu.Unlock()
		a.sys.scheduler.Cancel(id)

		return 0, fmt.Errorf("%w: %s", coreErrors.ErrDeadActor, a)
	}

	a.scheduleIDs[id] = struct{}{}

	a.mu.Unlock()

	return id, nil
}

// Unschedule cancels a timer owned by this actor. Zero and unknown ids are
// ignored, so calling it twice is harmless.
func (a *Actor) Unschedule(id timer.ID) {
	if id == 0 {
		return
	}

	a.mu.Lock()
	_, ok := a.scheduleIDs[id]
	delete(a.scheduleIDs, id)
	a.mu.Unlock()

	if ok {
		a.sys.scheduler.Cancel(id)
	}
}

// Delay fires handler once after delay. Each scheduling method first
// unschedules unscheduleID, which may be zero.
func (a *Actor) Delay(handler timer.HandlerType, delay time.Duration, param any, unscheduleID timer.ID) (timer.ID, error) {
	return a.schedule(handler, timer.After(delay), param, unscheduleID)
}

// DelayUntil fires handler once at at.
func (a *Actor) DelayUntil(handler timer.HandlerType, at time.Time, param any, unscheduleID timer.ID) (timer.ID, error) {
	return a.schedule(handler, timer.At(at), param, unscheduleID)
}

// Schedule fires handler after delay and then every interval. A negative
// repeat never stops; otherwise it fires once and then repeat more times.
func (a *Actor) Schedule(
	handler timer.HandlerType,
	delay, interval time.Duration,
	repeat int,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	rule, err := timer.Every(delay, interval, repeat)
	if err != nil {
		return 0, err
	}

	return a.schedule(handler, rule, param, unscheduleID)
}

// Daily fires handler every day at hour:minute.
func (a *Actor) Daily(handler timer.HandlerType, hour, minute int, param any, unscheduleID timer.ID) (timer.ID, error) {
	rule, err := timer.Daily(a.sys.loc, hour, minute)
	if err != nil {
		return 0, err
	}

	return a.schedule(handler, rule, param, unscheduleID)
}

// Weekly fires handler every week on day at hour:minute.
func (a *Actor) Weekly(
	handler timer.HandlerType,
	day time.Weekday,
	hour, minute int,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	rule, err := timer.Weekly(a.sys.loc, day, hour, minute)
	if err != nil {
		return 0, err
	}

	return a.schedule(handler, rule, param, unscheduleID)
}

// WithDayOfWeeks fires handler at hour:minute on each of days.
func (a *Actor) WithDayOfWeeks(
	handler timer.HandlerType,
	hour, minute int,
	param any,
	unscheduleID timer.ID,
	days ...time.Weekday,
) (timer.ID, error) {
	rule, err := timer.Weekdays(a.sys.loc, hour, minute, days...)
	if err != nil {
		return 0, err
	}

	return a.schedule(handler, rule, param, unscheduleID)
}

// Monthly fires handler on day-of-month at hour:minute.
func (a *Actor) Monthly(
	handler timer.HandlerType,
	day, hour, minute int,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	rule, err := timer.Monthly(a.sys.loc, day, hour, minute)
	if err != nil {
		return 0, err
	}

	return a.schedule(handler, rule, param, unscheduleID)
}

// WithCronExpression fires handler on a cron schedule.
func (a *Actor) WithCronExpression(
	handler timer.HandlerType,
	expr string,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	rule, err := timer.Cron(expr, a.sys.loc)
	if err != nil {
		return 0, err
	}

	return a.schedule(handler, rule, param, unscheduleID)
}

// The agent facade forwards to the owning actor so agents schedule against
// their own actor without reaching for it.

func (b *BaseAgent) Unschedule(id timer.ID) {
	b.owner.actor.Unschedule(id)
}

func (b *BaseAgent) Delay(handler timer.HandlerType, delay time.Duration, param any, unscheduleID timer.ID) (timer.ID, error) {
	return b.owner.actor.Delay(handler, delay, param, unscheduleID)
}

func (b *BaseAgent) DelayUntil(handler timer.HandlerType, at time.Time, param any, unscheduleID timer.ID) (timer.ID, error) {
	return b.owner.actor.DelayUntil(handler, at, param, unscheduleID)
}

func (b *BaseAgent) Schedule(
	handler timer.HandlerType,
	delay, interval time.Duration,
	repeat int,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	return b.owner.actor.Schedule(handler, delay, interval, repeat, param, unscheduleID)
}

func (b *BaseAgent) Daily(handler timer.HandlerType, hour, minute int, param any, unscheduleID timer.ID) (timer.ID, error) {
	return b.owner.actor.Daily(handler, hour, minute, param, unscheduleID)
}

func (b *BaseAgent) Weekly(
	handler timer.HandlerType,
	day time.Weekday,
	hour, minute int,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	return b.owner.actor.Weekly(handler, day, hour, minute, param, unscheduleID)
}

func (b *BaseAgent) WithDayOfWeeks(
	handler timer.HandlerType,
	hour, minute int,
	param any,
	unscheduleID timer.ID,
	days ...time.Weekday,
) (timer.ID, error) {
	return b.owner.actor.WithDayOfWeeks(handler, hour, minute, param, unscheduleID, days...)
}

func (b *BaseAgent) Monthly(
	handler timer.HandlerType,
	day, hour, minute int,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	return b.owner.actor.Monthly(handler, day, hour, minute, param, unscheduleID)
}

func (b *BaseAgent) WithCronExpression(
	handler timer.HandlerType,
	expr string,
	param any,
	unscheduleID timer.ID,
) (timer.ID, error) {
	return b.owner.actor.WithCronExpression(handler, expr, param, unscheduleID)
}
