package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestIsTradeDay(t *testing.T) {
	c := NewCalendar()

	assert.True(t, c.IsTradeDay(day(2026, time.September, 1)))
	// Weekend.
	assert.False(t, c.IsTradeDay(day(2026, time.September, 5)))
	assert.False(t, c.IsTradeDay(day(2026, time.September, 6)))
	// Chuseok.
	assert.False(t, c.IsTradeDay(day(2026, time.September, 25)))
	// New Year's Day.
	assert.False(t, c.IsTradeDay(day(2026, time.January, 1)))
	// Outside the covered range.
	assert.False(t, c.IsTradeDay(day(2030, time.March, 4)))
}

func TestNextTradeDay(t *testing.T) {
	c := NewCalendar()

	assert.Equal(t, day(2026, time.September, 1), c.NextTradeDay(day(2026, time.September, 1)))
	// Saturday rolls to Monday.
	assert.Equal(t, day(2026, time.September, 7), c.NextTradeDay(day(2026, time.September, 5)))
	// Chuseok block rolls past the holidays.
	assert.Equal(t, day(2026, time.September, 29), c.NextTradeDay(day(2026, time.September, 24)))
}

func TestLastTradeDay(t *testing.T) {
	c := NewCalendar()

	assert.Equal(t, day(2026, time.August, 31), c.LastTradeDay(day(2026, time.September, 1)))
	// Monday looks back across the weekend.
	assert.Equal(t, day(2026, time.September, 4), c.LastTradeDay(day(2026, time.September, 7)))
}

func TestTradeSession(t *testing.T) {
	c := NewCalendar()

	s := c.TradeSession(day(2026, time.September, 1))
	assert.Equal(t, day(2026, time.September, 1).Add(9*time.Hour), s.Open)
	assert.Equal(t, day(2026, time.September, 1).Add(15*time.Hour+30*time.Minute), s.Close)

	assert.True(t, s.Contains(day(2026, time.September, 1).Add(9*time.Hour)))
	assert.True(t, s.Contains(day(2026, time.September, 1).Add(12*time.Hour)))
	assert.False(t, s.Contains(day(2026, time.September, 1).Add(15*time.Hour+30*time.Minute)))
	assert.False(t, s.Contains(day(2026, time.September, 1).Add(8*time.Hour)))
}

func TestIsOpen(t *testing.T) {
	c := NewCalendar()

	assert.True(t, c.IsOpen(day(2026, time.September, 1).Add(10*time.Hour)))
	assert.False(t, c.IsOpen(day(2026, time.September, 1).Add(16*time.Hour)))
	assert.False(t, c.IsOpen(day(2026, time.September, 5).Add(10*time.Hour)))
	assert.False(t, c.IsOpen(day(2026, time.September, 25).Add(10*time.Hour)))
}
