/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock implements the feeder's time-of-day clock.
package clock

import (
	"errors"
	"fmt"
)

const (
	secondsPerMinute = 60
	minutesPerHour   = 60
	hoursPerDay      = 24

	// SecondsPerDay is the number of ticks in a full day.
	SecondsPerDay = hoursPerDay * minutesPerHour * secondsPerMinute
)

// ErrMalformedTime indicates a time-of-day string that is not HH:MM:SS.
var ErrMalformedTime = errors.New("malformed time of day")

// Ordering is the result of comparing two clocks.
type Ordering int

const (
	Before Ordering = -1
	Equal  Ordering = 0
	After  Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case Equal:
		return "equal"
	case After:
		return "after"
	default:
		return "unknown"
	}
}

// Clock is a wall-clock time of day. The zero value is midnight. It encodes
// as an HH:MM:SS string in JSON and YAML.
type Clock struct {
	Hours   int
	Minutes int
	Seconds int
}

// New builds a clock from its fields, rejecting out-of-range values.
func New(hours, minutes, seconds int) (Clock, error) {
	c := Clock{Hours: hours, Minutes: minutes, Seconds: seconds}
	if !c.Valid() {
		return Clock{}, fmt.Errorf("%w: %02d:%02d:%02d out of range", ErrMalformedTime, hours, minutes, seconds)
	}
	return c, nil
}

// FromSeconds converts seconds since midnight into a clock, wrapping at the day boundary.
func FromSeconds(total int) Clock {
	total %= SecondsPerDay
	if total < 0 {
		total += SecondsPerDay
	}
	return Clock{
		Hours:   total / (minutesPerHour * secondsPerMinute),
		Minutes: (total / secondsPerMinute) % minutesPerHour,
		Seconds: total % secondsPerMinute,
	}
}

// Valid reports whether every field is within its wall-clock range.
func (c Clock) Valid() bool {
	return c.Hours >= 0 && c.Hours < hoursPerDay &&
		c.Minutes >= 0 && c.Minutes < minutesPerHour &&
		c.Seconds >= 0 && c.Seconds < secondsPerMinute
}

// AdvanceOneSecond moves the clock forward by one second, carrying into
// minutes and hours and wrapping to midnight after 23:59:59.
func (c *Clock) AdvanceOneSecond() {
	c.Seconds++
	if c.Seconds < secondsPerMinute {
		return
	}
	c.Seconds = 0
	c.Minutes++
	if c.Minutes < minutesPerHour {
		return
	}
	c.Minutes = 0
	c.Hours++
	if c.Hours >= hoursPerDay {
		c.Hours = 0
	}
}

// TotalSeconds returns the number of seconds since midnight.
func (c Clock) TotalSeconds() int {
	return c.Hours*minutesPerHour*secondsPerMinute + c.Minutes*secondsPerMinute + c.Seconds
}

// Compare orders two clocks as times of day. It does not measure elapsed
// duration: 23:59:59 is After 00:00:00.
func Compare(a, b Clock) Ordering {
	sa, sb := a.TotalSeconds(), b.TotalSeconds()
	switch {
	case sa < sb:
		return Before
	case sa > sb:
		return After
	default:
		return Equal
	}
}

// String formats the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hours, c.Minutes, c.Seconds)
}

// Parse reads a strict HH:MM:SS string.
func Parse(s string) (Clock, error) {
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return Clock{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}

	fields := [3]int{}
	for i, off := range [3]int{0, 3, 6} {
		v, ok := twoDigits(s[off], s[off+1])
		if !ok {
			return Clock{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
		fields[i] = v
	}

	return New(fields[0], fields[1], fields[2])
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func twoDigits(hi, lo byte) (int, bool) {
	if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
		return 0, false
	}
	return int(hi-'0')*10 + int(lo-'0'), true
}
