/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule holds the daily feed window.
package schedule

import (
	"fmt"

	"github.com/friendsincode/petfeeder/internal/clock"
)

// Window is the daily time-of-day interval [Start, End) in which one feed
// should be dispensed. A window whose End is before its Start wraps past
// midnight. Start == End is an empty window.
type Window struct {
	Start clock.Clock `json:"start" yaml:"start"`
	End   clock.Clock `json:"end" yaml:"end"`
}

// NewWindow parses start and end HH:MM:SS strings into a window.
func NewWindow(start, end string) (Window, error) {
	s, err := clock.Parse(start)
	if err != nil {
		return Window{}, fmt.Errorf("parse window start: %w", err)
	}
	e, err := clock.Parse(end)
	if err != nil {
		return Window{}, fmt.Errorf("parse window end: %w", err)
	}
	return Window{Start: s, End: e}, nil
}

// Empty reports whether the window can never contain a time.
func (w Window) Empty() bool {
	return clock.Compare(w.Start, w.End) == clock.Equal
}

// Contains reports whether now falls inside [Start, End).
func (w Window) Contains(now clock.Clock) bool {
	afterStart := clock.Compare(now, w.Start) != clock.Before
	beforeEnd := clock.Compare(now, w.End) == clock.Before

	switch clock.Compare(w.Start, w.End) {
	case clock.Before:
		return afterStart && beforeEnd
	case clock.After:
		// wraps midnight
		return afterStart || beforeEnd
	default:
		return false
	}
}

// PastEnd reports whether now lies outside the window and nearer to the
// window's end than to its next start. A clock ticking out of the window
// satisfies it at End; a clock set back to shortly before Start does not.
func (w Window) PastEnd(now clock.Clock) bool {
	if w.Empty() || w.Contains(now) {
		return false
	}
	sinceEnd := (now.TotalSeconds() - w.End.TotalSeconds() + clock.SecondsPerDay) % clock.SecondsPerDay
	untilStart := (w.Start.TotalSeconds() - now.TotalSeconds() + clock.SecondsPerDay) % clock.SecondsPerDay
	return sinceEnd < untilStart
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + ")"
}
