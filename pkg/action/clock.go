package action

import "fmt"

const (
	startDay  = 1
	startHour = 8
)

// Clock is the in-game day and hour.
type Clock struct {
	Day  int `json:"day"`  // >= 1
	Hour int `json:"hour"` // 0..23
}

// NewClock returns a clock at Day 1, 8:00 AM.
func NewClock() Clock {
	return Clock{Day: startDay, Hour: startHour}
}

// Advance moves the clock forward by hours, rolling whole days over.
// Zero and negative hours do nothing.
func (c *Clock) Advance(hours int) {
	if hours <= 0 {
		return
	}
	c.Hour += hours
	if c.Hour >= 24 {
		c.Day += c.Hour / 24
		c.Hour %= 24
	}
}

// String formats the clock as "Day 1, 8:00 AM".
func (c Clock) String() string {
	hour := c.Hour % 24
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("Day %d, %d:00 %s", c.Day, display, suffix)
}
