/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventFeedTriggered   EventType = "feed.triggered"
	EventMotorPhase      EventType = "motor.phase"
	EventMotorCompleted  EventType = "motor.completed"
	EventMotorFault      EventType = "motor.fault"
	EventClockSynced     EventType = "clock.synced"
	EventScheduleUpdated EventType = "schedule.updated"
	EventRemoteDegraded  EventType = "remote.degraded"
)

// AllEventTypes lists every event type the feeder publishes.
var AllEventTypes = []EventType{
	EventFeedTriggered,
	EventMotorPhase,
	EventMotorCompleted,
	EventMotorFault,
	EventClockSynced,
	EventScheduleUpdated,
	EventRemoteDegraded,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is the write side of a bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker is a full pub/sub implementation. The in-process Bus and the
// Redis/NATS backed buses in package eventbus all satisfy it.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather
// than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}

// Publish is a nil-safe helper for components whose publisher is optional.
func Publish(p Publisher, eventType EventType, payload Payload) {
	if p == nil {
		return
	}
	p.Publish(eventType, payload)
}
