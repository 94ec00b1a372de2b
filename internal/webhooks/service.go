/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package webhooks posts feed and fault notifications to external URLs.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/telemetry"
)

// Payload is the JSON body posted to each target.
type Payload struct {
	ID        string           `json:"id"`
	Event     events.EventType `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id,omitempty"`
	Data      events.Payload   `json:"data"`
}

// Config lists targets and the events they receive.
type Config struct {
	URLs   []string
	Secret string
	Events []events.EventType
	NodeID string
}

// Service relays bus events to webhook targets.
type Service struct {
	cfg    Config
	bus    events.Broker
	logger zerolog.Logger
	client *http.Client
}

// NewService creates a new webhook service.
func NewService(cfg Config, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Start subscribes to the configured events and delivers each one to every
// target. It blocks until ctx is done.
func (s *Service) Start(ctx context.Context) {
	if len(s.cfg.URLs) == 0 || len(s.cfg.Events) == 0 {
		return
	}

	cases := make([]reflect.SelectCase, 0, len(s.cfg.Events)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	for _, eventType := range s.cfg.Events {
		sub := s.bus.Subscribe(eventType)
		defer s.bus.Unsubscribe(eventType, sub)
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(sub)})
	}

	s.logger.Info().Int("targets", len(s.cfg.URLs)).Msg("webhook service started")

	for {
		chosen, value, ok := reflect.Select(cases)
		if chosen == 0 {
			s.logger.Info().Msg("webhook service stopping")
			return
		}
		if !ok {
			return
		}
		payload, _ := value.Interface().(events.Payload)
		s.Dispatch(ctx, s.cfg.Events[chosen-1], payload)
	}
}

// Dispatch posts one event to every target concurrently.
func (s *Service) Dispatch(ctx context.Context, eventType events.EventType, data events.Payload) {
	body, err := json.Marshal(Payload{
		ID:        uuid.NewString(),
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		NodeID:    s.cfg.NodeID,
		Data:      data,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event", string(eventType)).Msg("failed to marshal webhook payload")
		return
	}

	for _, url := range s.cfg.URLs {
		go s.send(ctx, url, eventType, body)
	}
}

func (s *Service) send(ctx context.Context, url string, eventType events.EventType, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Str("url", url).Msg("failed to create webhook request")
		telemetry.WebhookDeliveriesTotal.WithLabelValues(string(eventType), "error").Inc()
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "petfeeder-webhook/1.0")
	req.Header.Set("X-Feeder-Event", string(eventType))
	req.Header.Set("X-Feeder-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	if s.cfg.Secret != "" {
		req.Header.Set("X-Feeder-Signature", Sign(body, s.cfg.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Str("event", string(eventType)).Msg("webhook delivery failed")
		telemetry.WebhookDeliveriesTotal.WithLabelValues(string(eventType), "error").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.logger.Debug().Str("url", url).Str("event", string(eventType)).Int("status", resp.StatusCode).Msg("webhook delivered")
		telemetry.WebhookDeliveriesTotal.WithLabelValues(string(eventType), "delivered").Inc()
		return
	}
	s.logger.Warn().Str("url", url).Str("event", string(eventType)).Int("status", resp.StatusCode).Msg("webhook returned error status")
	telemetry.WebhookDeliveriesTotal.WithLabelValues(string(eventType), "rejected").Inc()
}

// Sign returns the HMAC-SHA256 signature header value for body.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
