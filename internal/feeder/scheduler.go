/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package feeder runs the once-per-second feed check and keeps the clock
// and feeding window in sync with their remote sources.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/friendsincode/petfeeder/internal/motor"
	"github.com/friendsincode/petfeeder/internal/schedule"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/rs/zerolog"
)

// Submitter accepts motor instructions.
type Submitter interface {
	Submit(ctx context.Context, instr motor.Instruction) error
}

// Config controls what the scheduler asks the motor to do.
type Config struct {
	FeedDuration uint32
	BrakeAtEnd   bool
	TickInterval time.Duration
}

// Scheduler advances the wall clock once per tick and submits one feed per
// occurrence of the feeding window.
type Scheduler struct {
	wall   *clock.Wall
	store  *schedule.Store
	motor  Submitter
	cfg    Config
	logger zerolog.Logger

	mu            sync.Mutex
	triggered     bool
	lastTriggered clock.Clock
	feeds         uint64
}

// New constructs the feed scheduler.
func New(wall *clock.Wall, store *schedule.Store, submitter Submitter, cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Scheduler{
		wall:   wall,
		store:  store,
		motor:  submitter,
		cfg:    cfg,
		logger: logger.With().Str("component", "feeder").Logger(),
	}
}

// Run executes the tick loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info().
		Str("window", s.store.Window().String()).
		Uint32("feed_duration_seconds", s.cfg.FeedDuration).
		Bool("brake_at_end", s.cfg.BrakeAtEnd).
		Msg("feed scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("feed scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				s.logger.Error().Err(err).Msg("feed tick failed")
			}
		}
	}
}

// Tick advances the clock by one second and submits a feed if the new time
// is the first one inside the current window occurrence. The triggered flag
// clears once the clock has passed the window end (see Window.PastEnd), so
// the next day's occurrence feeds again.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.wall.Tick()
	window := s.store.Window()

	if !window.Contains(now) {
		if window.PastEnd(now) {
			s.mu.Lock()
			if s.triggered {
				s.logger.Debug().Str("now", now.String()).Msg("left feeding window")
			}
			s.triggered = false
			s.mu.Unlock()
		}
		telemetry.ScheduleInWindow.Set(0)
		return nil
	}

	telemetry.ScheduleInWindow.Set(1)
	if s.Triggered() {
		return nil
	}

	instr := motor.Instruction{
		Duration:   s.cfg.FeedDuration,
		BrakeAtEnd: s.cfg.BrakeAtEnd,
		Source:     motor.SourceSchedule,
	}

	s.logger.Info().
		Str("now", now.String()).
		Str("window", window.String()).
		Msg("feeding window opened, dispensing")

	// blocks while the motor queue is full
	if err := s.motor.Submit(ctx, instr); err != nil {
		return fmt.Errorf("submit scheduled feed: %w", err)
	}

	s.mu.Lock()
	s.triggered = true
	s.lastTriggered = now
	s.feeds++
	s.mu.Unlock()
	return nil
}

// Status is a snapshot of the scheduler.
type Status struct {
	Triggered     bool        `json:"triggered"`
	LastTriggered clock.Clock `json:"last_triggered"`
	Feeds         uint64      `json:"feeds"`
}

// Status returns the scheduler's trigger state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Triggered: s.triggered, LastTriggered: s.lastTriggered, Feeds: s.feeds}
}

// Triggered reports whether the current window occurrence has already fed.
func (s *Scheduler) Triggered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered
}
