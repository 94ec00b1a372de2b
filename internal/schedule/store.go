/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"sync"
	"time"
)

// Store keeps the current feed window. Writers replace the whole window at
// once so readers never observe a start from one fetch and an end from another.
type Store struct {
	mu        sync.RWMutex
	window    Window
	updatedAt time.Time
	loaded    bool
}

// NewStore creates a store holding the given initial window.
func NewStore(initial Window) *Store {
	return &Store{window: initial}
}

// Set replaces the window. It reports whether the value changed.
func (s *Store) Set(w Window) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.window != w || !s.loaded
	s.window = w
	s.updatedAt = time.Now()
	s.loaded = true
	return changed
}

// Window returns a snapshot of the current window.
func (s *Store) Window() Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// UpdatedAt returns when the window was last replaced from a remote fetch.
// It is zero until the first successful Set.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
