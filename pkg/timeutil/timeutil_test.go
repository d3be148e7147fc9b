package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchoolDays_SkipsWeekendsAndExcluded(t *testing.T) {
	// 2024-03-04 is a Monday.
	from := Date(2024, 3, 4)
	to := Date(2024, 3, 12)

	days := SchoolDays(from, to, map[string]bool{"2024-03-06": true})

	keys := make([]string, 0, len(days))
	for _, d := range days {
		keys = append(keys, DayKey(d))
	}
	assert.Equal(t, []string{
		"2024-03-04", "2024-03-05", "2024-03-07", "2024-03-08",
		"2024-03-11", "2024-03-12",
	}, keys)
}

func TestSchoolDays_EmptyWhenReversed(t *testing.T) {
	assert.Nil(t, SchoolDays(Date(2024, 3, 12), Date(2024, 3, 4), nil))
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
}
