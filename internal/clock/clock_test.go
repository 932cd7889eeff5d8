package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockAdvancesInUTC(t *testing.T) {
	start := time.Date(2026, 2, 1, 17, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	c := NewFakeClock(start)
	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, c.Now().Equal(start))

	c.Advance(14 * 24 * time.Hour)
	assert.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), c.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystemClock().Now().Location())
}
