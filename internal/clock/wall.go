/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import "sync"

// Wall is the process-wide "now" clock. The periodic tick and the external
// time sync both write it, so every access goes through the mutex.
type Wall struct {
	mu      sync.RWMutex
	current Clock
	synced  bool
}

// NewWall creates a wall clock starting at midnight.
func NewWall() *Wall {
	return &Wall{}
}

// Tick advances the clock by one second and returns the new time.
func (w *Wall) Tick() Clock {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current.AdvanceOneSecond()
	return w.current
}

// Set overwrites the clock wholesale with an externally sourced time.
func (w *Wall) Set(c Clock) {
	w.mu.Lock()
	w.current = c
	w.synced = true
	w.mu.Unlock()
}

// Now returns a snapshot of the current time.
func (w *Wall) Now() Clock {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Synced reports whether an external time sync has ever been applied.
func (w *Wall) Synced() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.synced
}
