package timer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/robfig/cron/v3"
)

// Rule yields successive fire times. prev is the registration time when
// fired is zero and the previous scheduled fire time otherwise. ok is false
// once the rule is exhausted.
type Rule interface {
	Next(prev time.Time, fired int) (next time.Time, ok bool)
}

//nolint:gochecknoglobals
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type once struct {
	at    time.Time
	delay time.Duration
}

// At fires once at an absolute time. A time in the past fires immediately.
func At(at time.Time) Rule {
	return once{at: at}
}

// After fires once, d after registration.
func After(d time.Duration) Rule {
	return once{delay: d}
}

func (o once) Next(prev time.Time, fired int) (time.Time, bool) {
	if fired > 0 {
		return time.Time{}, false
	}

	if o.at.IsZero() {
		return prev.Add(o.delay), true
	}

	return o.at, true
}

type interval struct {
	delay  time.Duration
	every  time.Duration
	repeat int
}

// Every fires first after delay and then every interval. A negative repeat
// never stops; otherwise the rule fires once and then repeats repeat more
// times.
func Every(delay, every time.Duration, repeat int) (Rule, error) {
	if delay < 0 {
		return nil, fmt.Errorf("%w: negative delay %s", coreErrors.ErrInvalidRule, delay)
	}

	if repeat != 0 && every <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", coreErrors.ErrInvalidRule, every)
	}

	return interval{delay: delay, every: every, repeat: repeat}, nil
}

func (i interval) Next(prev time.Time, fired int) (time.Time, bool) {
	if fired == 0 {
		return prev.Add(i.delay), true
	}

	if i.repeat >= 0 && fired > i.repeat {
		return time.Time{}, false
	}

	return prev.Add(i.every), true
}

type calendar struct {
	schedule cron.Schedule
	loc      *time.Location
	expr     string
}

func (c calendar) Next(prev time.Time, _ int) (time.Time, bool) {
	next := c.schedule.Next(prev.In(c.loc))
	if next.IsZero() {
		return next, false
	}

	return next, true
}

func (c calendar) String() string {
	return c.expr
}

func checkClock(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", coreErrors.ErrInvalidRule, hour)
	}

	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", coreErrors.ErrInvalidRule, minute)
	}

	return nil
}

func clockRule(loc *time.Location, hour, minute int, dom, dow string) (Rule, error) {
	if err := checkClock(hour, minute); err != nil {
		return nil, err
	}

	return Cron(fmt.Sprintf("0 %d %d %s * %s", minute, hour, dom, dow), loc)
}

// Daily fires every day at hour:minute in loc.
func Daily(loc *time.Location, hour, minute int) (Rule, error) {
	return clockRule(loc, hour, minute, "*", "*")
}

// Weekly fires every week on day at hour:minute in loc.
func Weekly(loc *time.Location, day time.Weekday, hour, minute int) (Rule, error) {
	return Weekdays(loc, hour, minute, day)
}

// Weekdays fires at hour:minute in loc on each of days.
func Weekdays(loc *time.Location, hour, minute int, days ...time.Weekday) (Rule, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no weekdays given", coreErrors.ErrInvalidRule)
	}

	names := make([]string, 0, len(days))

	for _, day := range days {
		if day < time.Sunday || day > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d out of range", coreErrors.ErrInvalidRule, day)
		}

		names = append(names, strconv.Itoa(int(day)))
	}

	return clockRule(loc, hour, minute, "*", strings.Join(names, ","))
}

// Monthly fires on day-of-month at hour:minute in loc. Months without that
// day are skipped.
func Monthly(loc *time.Location, day, hour, minute int) (Rule, error) {
	if day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: day of month %d out of range", coreErrors.ErrInvalidRule, day)
	}

	return clockRule(loc, hour, minute, strconv.Itoa(day), "*")
}

// Cron parses a standard five field expression, a six field expression with
// leading seconds, or a descriptor such as @hourly. A nil loc means time.Local.
func Cron(expr string, loc *time.Location) (Rule, error) {
	if loc == nil {
		loc = time.Local
	}

	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coreErrors.ErrInvalidRule, err)
	}

	return calendar{schedule: schedule, loc: loc, expr: expr}, nil
}
