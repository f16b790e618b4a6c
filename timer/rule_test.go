package timer

import (
	"testing"
	"time"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-03 was a Wednesday.
var base = time.Date(2024, time.January, 3, 10, 30, 0, 0, time.UTC) //nolint:gochecknoglobals

func collect(t *testing.T, rule Rule, limit int) []time.Time {
	t.Helper()

	var out []time.Time

	prev := base

	for fired := 0; fired < limit; fired++ {
		next, ok := rule.Next(prev, fired)
		if !ok {
			break
		}

		out = append(out, next)
		prev = next
	}

	return out
}

func TestOnce(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []time.Time{base.Add(time.Minute)}, collect(t, After(time.Minute), 5))

	at := base.Add(time.Hour)
	assert.Equal(t, []time.Time{at}, collect(t, At(at), 5))
}

func TestEvery(t *testing.T) {
	t.Parallel()

	t.Run("fires once then repeats n more times", func(t *testing.T) {
		t.Parallel()

		rule, err := Every(time.Second, time.Minute, 2)
		require.NoError(t, err)

		got := collect(t, rule, 10)
		require.Len(t, got, 3)
		assert.Equal(t, base.Add(time.Second), got[0])
		assert.Equal(t, base.Add(time.Second+2*time.Minute), got[2])
	})

	t.Run("zero repeats fires once", func(t *testing.T) {
		t.Parallel()

		rule, err := Every(0, 0, 0)
		require.NoError(t, err)
		assert.Len(t, collect(t, rule, 10), 1)
	})

	t.Run("negative repeat is unbounded", func(t *testing.T) {
		t.Parallel()

		rule, err := Every(0, time.Second, -1)
		require.NoError(t, err)
		assert.Len(t, collect(t, rule, 50), 50)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		_, err := Every(-time.Second, time.Second, 1)
		require.ErrorIs(t, err, coreErrors.ErrInvalidRule)

		_, err = Every(0, 0, 3)
		require.ErrorIs(t, err, coreErrors.ErrInvalidRule)
	})
}

func TestDaily(t *testing.T) {
	t.Parallel()

	rule, err := Daily(time.UTC, 4, 0)
	require.NoError(t, err)

	got := collect(t, rule, 2)
	assert.Equal(t, time.Date(2024, time.January, 4, 4, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2024, time.January, 5, 4, 0, 0, 0, time.UTC), got[1])

	_, err = Daily(time.UTC, 24, 0)
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)

	_, err = Daily(time.UTC, 0, 60)
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)
}

func TestDaily_Location(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)

	rule, err := Daily(tokyo, 0, 0)
	require.NoError(t, err)

	next, ok := rule.Next(base, 0)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.January, 3, 15, 0, 0, 0, time.UTC), next.UTC())
}

func TestWeekly(t *testing.T) {
	t.Parallel()

	rule, err := Weekly(time.UTC, time.Monday, 9, 15)
	require.NoError(t, err)

	got := collect(t, rule, 2)
	assert.Equal(t, time.Date(2024, time.January, 8, 9, 15, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2024, time.January, 15, 9, 15, 0, 0, time.UTC), got[1])
}

func TestWeekdays(t *testing.T) {
	t.Parallel()

	rule, err := Weekdays(time.UTC, 12, 0, time.Friday, time.Wednesday)
	require.NoError(t, err)

	got := collect(t, rule, 3)
	assert.Equal(t, time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC), got[1])
	assert.Equal(t, time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC), got[2])

	_, err = Weekdays(time.UTC, 12, 0)
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)

	_, err = Weekdays(time.UTC, 12, 0, time.Weekday(9))
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)
}

func TestMonthly(t *testing.T) {
	t.Parallel()

	rule, err := Monthly(time.UTC, 31, 0, 0)
	require.NoError(t, err)

	got := collect(t, rule, 2)
	assert.Equal(t, time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), got[1])

	_, err = Monthly(time.UTC, 0, 0, 0)
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)
}

func TestCron(t *testing.T) {
	t.Parallel()

	rule, err := Cron("*/15 * * * * *", time.UTC)
	require.NoError(t, err)

	next, ok := rule.Next(base, 0)
	require.True(t, ok)
	assert.Equal(t, base.Add(15*time.Second), next)

	rule, err = Cron("@hourly", time.UTC)
	require.NoError(t, err)

	next, ok = rule.Next(base, 0)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.January, 3, 11, 0, 0, 0, time.UTC), next)

	_, err = Cron("not a cron", time.UTC)
	require.ErrorIs(t, err, coreErrors.ErrInvalidRule)
}
