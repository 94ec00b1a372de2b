/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors feeder events to Redis or NATS so that other
// processes (dashboards, a second controller's history recorder) see them.
// Both buses deliver locally first and fall back to in-memory delivery when
// the broker is unreachable.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/google/uuid"
)

// SubjectPrefix namespaces broker channels and subjects.
const SubjectPrefix = "petfeeder.events."

// Bus is an event broker that owns a network connection.
type Bus interface {
	events.Broker
	Close() error
	Degraded() bool
}

// message is the wire envelope shared by the Redis and NATS buses.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func subject(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("unmarshal event message: missing event type")
	}
	return &msg, nil
}

// NodeID returns id, or hostname plus a random suffix when id is empty.
func NodeID(id string) string {
	if id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "feeder"
	}
	return host + "-" + uuid.NewString()[:8]
}
