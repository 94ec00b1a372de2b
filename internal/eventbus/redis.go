/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus mirrors events over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
	local  *events.Bus
	nodeID string

	mu       sync.RWMutex
	channels map[events.EventType]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Circuit breaker state
	useFallback   bool
	failCount     int
	maxFails      int
	lastCheck     time.Time
	checkInterval time.Duration
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      4,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// NewRedisBus creates a Redis-backed event bus. When Redis cannot be
// reached the bus starts in in-memory fallback mode and retries on publish.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With().Str("component", "eventbus").Str("backend", "redis").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	rb := &RedisBus{
		client:        client,
		logger:        logger,
		local:         events.NewBus(),
		nodeID:        nodeID,
		channels:      make(map[events.EventType]*redis.PubSub),
		ctx:           ctx,
		cancel:        cancel,
		maxFails:      cfg.MaxFailures,
		checkInterval: cfg.CheckInterval,
	}
	if rb.maxFails <= 0 {
		rb.maxFails = 1
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis connection failed, using in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		telemetry.EventBusDegraded.Set(1)
		return rb
	}

	telemetry.EventBusDegraded.Set(0)
	logger.Info().Str("addr", cfg.Addr).Str("node_id", nodeID).Msg("Redis event bus initialized")
	return rb
}

// Subscribe registers a local subscriber and, on first use of the event
// type, a Redis subscription feeding remote events into it.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.useFallback {
		return sub
	}
	if _, exists := rb.channels[eventType]; !exists {
		pubsub := rb.client.Subscribe(rb.ctx, subject(eventType))
		rb.channels[eventType] = pubsub

		rb.wg.Add(1)
		go rb.receiveMessages(eventType, pubsub)
	}
	return sub
}

func (rb *RedisBus) receiveMessages(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()

	ch := pubsub.Channel()
	rb.logger.Debug().Str("event_type", string(eventType)).Msg("started Redis message receiver")

	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.logger.Debug().Str("event_type", string(eventType)).Msg("Redis channel closed")
				return
			}

			remote, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("failed to unmarshal Redis message")
				continue
			}
			if remote.NodeID == rb.nodeID {
				continue
			}

			rb.local.Publish(remote.EventType, remote.Payload)
		}
	}
}

// Publish delivers to local subscribers and then to Redis.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	if rb.fallbackActive() {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal Redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()

	if err := rb.client.Publish(ctx, subject(eventType), data).Err(); err != nil {
		rb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Degraded reports whether the bus is running on the in-memory fallback.
func (rb *RedisBus) Degraded() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.useFallback
}

// Close closes the Redis connection and all subscriptions.
func (rb *RedisBus) Close() error {
	rb.logger.Info().Msg("closing Redis event bus")
	rb.cancel()

	rb.mu.Lock()
	for _, pubsub := range rb.channels {
		_ = pubsub.Close()
	}
	rb.channels = make(map[events.EventType]*redis.PubSub)
	rb.mu.Unlock()

	rb.wg.Wait()

	if err := rb.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// fallbackActive reports whether publishing should skip Redis, probing for
// recovery once per check interval.
func (rb *RedisBus) fallbackActive() bool {
	rb.mu.RLock()
	fallback := rb.useFallback
	rb.mu.RUnlock()
	if !fallback {
		return false
	}
	return rb.tryReconnect() != nil
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().
			Int("fail_count", rb.failCount).
			Msg("Redis failure threshold reached, switching to in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		telemetry.EventBusDegraded.Set(1)
	}
}

func (rb *RedisBus) tryReconnect() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.useFallback {
		return nil
	}
	if time.Since(rb.lastCheck) < rb.checkInterval {
		return fmt.Errorf("too soon to retry")
	}
	rb.lastCheck = time.Now()

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis still unavailable: %w", err)
	}

	rb.useFallback = false
	rb.failCount = 0
	telemetry.EventBusDegraded.Set(0)
	rb.logger.Info().Msg("reconnected to Redis, disabling fallback")
	return nil
}
