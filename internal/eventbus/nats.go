/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"sync"
	"time"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus mirrors events over NATS core subjects.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	local  *events.Bus
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]*nats.Subscription
}

// NewNATSBus connects to NATS. When the server cannot be reached the bus
// delivers in-process only.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) *NATSBus {
	logger = logger.With().Str("component", "eventbus").Str("backend", "nats").Logger()
	nb := &NATSBus{
		logger: logger,
		local:  events.NewBus(),
		nodeID: nodeID,
		subs:   make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("petfeeder-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			telemetry.EventBusDegraded.Set(1)
			logger.Warn().Err(err).Msg("NATS disconnected, delivering locally")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			telemetry.EventBusDegraded.Set(0)
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connection failed, using in-memory fallback")
		telemetry.EventBusDegraded.Set(1)
		return nb
	}

	nb.conn = conn
	telemetry.EventBusDegraded.Set(0)
	logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", nodeID).Msg("NATS event bus initialized")
	return nb
}

// Subscribe registers a local subscriber and, on first use of the event
// type, a NATS subscription feeding remote events into it.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)
	if nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, exists := nb.subs[eventType]; exists {
		return sub
	}

	natsSub, err := nb.conn.Subscribe(subject(eventType), nb.handleMessage)
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("NATS subscribe failed")
		return sub
	}
	nb.subs[eventType] = natsSub
	return sub
}

func (nb *NATSBus) handleMessage(msg *nats.Msg) {
	remote, err := unmarshalMessage(msg.Data)
	if err != nil {
		nb.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal NATS message")
		return
	}
	if remote.NodeID == nb.nodeID {
		return
	}
	nb.local.Publish(remote.EventType, remote.Payload)
}

// Publish delivers to local subscribers and then to NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)
	if nb.Degraded() {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}
	if err := nb.conn.Publish(subject(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Degraded reports whether events are currently only delivered in-process.
func (nb *NATSBus) Degraded() bool {
	return nb.conn == nil || !nb.conn.IsConnected()
}

// Close drains subscriptions and closes the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	nb.logger.Info().Msg("closing NATS event bus")
	return nb.conn.Drain()
}
