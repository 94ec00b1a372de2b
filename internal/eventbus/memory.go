/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import "github.com/friendsincode/petfeeder/internal/events"

// MemoryBus is the in-process bus with the Bus lifecycle methods.
type MemoryBus struct {
	*events.Bus
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{Bus: events.NewBus()}
}

// Close is a no-op.
func (m *MemoryBus) Close() error { return nil }

// Degraded always reports false.
func (m *MemoryBus) Degraded() bool { return false }

var (
	_ Bus = (*MemoryBus)(nil)
	_ Bus = (*RedisBus)(nil)
	_ Bus = (*NATSBus)(nil)
)
