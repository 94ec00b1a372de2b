/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/schedule"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrSourceNotConfigured indicates a sync was requested without a URL.
var ErrSourceNotConfigured = errors.New("remote source not configured")

// Fetcher retrieves remote time and schedule.
type Fetcher interface {
	FetchTime(ctx context.Context, url string) (clock.Clock, error)
	FetchWindow(ctx context.Context, url, startHeader, endHeader string) (schedule.Window, error)
}

// SyncConfig names the remote sources.
type SyncConfig struct {
	TimeURL         string
	ScheduleURL     string
	StartHeader     string
	EndHeader       string
	RefreshInterval time.Duration
}

// Syncer keeps the wall clock and the window store fed from remote
// sources. Failures keep the previous value.
type Syncer struct {
	fetcher Fetcher
	wall    *clock.Wall
	store   *schedule.Store
	cfg     SyncConfig
	bus     events.Publisher
	logger  zerolog.Logger
}

// NewSyncer creates a syncer.
func NewSyncer(fetcher Fetcher, wall *clock.Wall, store *schedule.Store, cfg SyncConfig, bus events.Publisher, logger zerolog.Logger) *Syncer {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	return &Syncer{
		fetcher: fetcher,
		wall:    wall,
		store:   store,
		cfg:     cfg,
		bus:     bus,
		logger:  logger.With().Str("component", "sync").Logger(),
	}
}

// Prime performs the startup clock sync and schedule fetch. Failures are
// logged and leave the defaults in place.
func (s *Syncer) Prime(ctx context.Context) {
	if err := s.SyncClock(ctx); err != nil && !errors.Is(err, ErrSourceNotConfigured) {
		s.logger.Warn().Err(err).Str("now", s.wall.Now().String()).Msg("clock sync failed, continuing with local time")
	}
	if err := s.RefreshSchedule(ctx); err != nil && !errors.Is(err, ErrSourceNotConfigured) {
		s.logger.Warn().Err(err).Str("window", s.store.Window().String()).Msg("schedule fetch failed, continuing with default window")
	}
}

// Run refreshes the schedule periodically until the context is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	if s.cfg.ScheduleURL == "" {
		s.logger.Info().Msg("no schedule URL configured, schedule refresh disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.RefreshInterval).Msg("schedule refresh loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("schedule refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RefreshSchedule(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("schedule refresh failed, keeping previous window")
			}
		}
	}
}

// SyncClock sets the wall clock from the time source.
func (s *Syncer) SyncClock(ctx context.Context) error {
	if s.cfg.TimeURL == "" {
		return ErrSourceNotConfigured
	}

	now, err := s.fetcher.FetchTime(ctx, s.cfg.TimeURL)
	if err != nil {
		telemetry.ClockSyncTotal.WithLabelValues("failure").Inc()
		s.degraded("time", err)
		return fmt.Errorf("sync clock: %w", err)
	}

	previous := s.wall.Now()
	s.wall.Set(now)
	telemetry.ClockSyncTotal.WithLabelValues("success").Inc()

	s.logger.Info().Str("previous", previous.String()).Str("now", now.String()).Msg("clock synced")
	events.Publish(s.bus, events.EventClockSynced, events.Payload{
		"previous": previous.String(),
		"now":      now.String(),
	})
	return nil
}

// RefreshSchedule replaces the window from the schedule source.
func (s *Syncer) RefreshSchedule(ctx context.Context) error {
	if s.cfg.ScheduleURL == "" {
		return ErrSourceNotConfigured
	}

	w, err := s.fetcher.FetchWindow(ctx, s.cfg.ScheduleURL, s.cfg.StartHeader, s.cfg.EndHeader)
	if err != nil {
		telemetry.ScheduleRefreshTotal.WithLabelValues("failure").Inc()
		s.degraded("schedule", err)
		return fmt.Errorf("refresh schedule: %w", err)
	}
	telemetry.ScheduleRefreshTotal.WithLabelValues("success").Inc()

	if !s.store.Set(w) {
		return nil
	}

	if w.Empty() {
		s.logger.Warn().Str("window", w.String()).Msg("schedule has an empty window, feeding disabled")
	} else {
		s.logger.Info().Str("window", w.String()).Msg("schedule updated")
	}
	events.Publish(s.bus, events.EventScheduleUpdated, events.Payload{
		"start": w.Start.String(),
		"end":   w.End.String(),
	})
	return nil
}

func (s *Syncer) degraded(source string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	events.Publish(s.bus, events.EventRemoteDegraded, events.Payload{
		"source": source,
		"error":  err.Error(),
	})
}
