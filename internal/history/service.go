/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history persists completed and faulted motor runs.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/models"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// MaxLimit is the largest page List will return.
const MaxLimit = 500

// Service records feed history by subscribing to motor events.
type Service struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Start subscribes to motor events and stores one record per run. It blocks
// until ctx is done.
func (s *Service) Start(ctx context.Context) {
	completed := s.bus.Subscribe(events.EventMotorCompleted)
	faulted := s.bus.Subscribe(events.EventMotorFault)
	defer func() {
		s.bus.Unsubscribe(events.EventMotorCompleted, completed)
		s.bus.Unsubscribe(events.EventMotorFault, faulted)
	}()

	s.logger.Info().Msg("history service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("history service stopping")
			return
		case payload, ok := <-completed:
			if !ok {
				return
			}
			s.record(ctx, models.FeedResultCompleted, payload)
		case payload, ok := <-faulted:
			if !ok {
				return
			}
			s.record(ctx, models.FeedResultFaulted, payload)
		}
	}
}

func (s *Service) record(ctx context.Context, result models.FeedResult, payload events.Payload) {
	entry := recordFromPayload(result, payload)
	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("instruction_id", entry.InstructionID).
			Str("result", string(result)).
			Msg("failed to store feed record")
	}
}

// Log stores a record directly.
func (s *Service) Log(ctx context.Context, entry *models.FeedRecord) error {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("id", entry.ID).
		Str("instruction_id", entry.InstructionID).
		Str("result", string(entry.Result)).
		Msg("feed record stored")
	return nil
}

// Filters narrows a List call.
type Filters struct {
	Source string
	Result models.FeedResult
	Since  time.Time
	Limit  int
}

// List returns the most recent records first.
func (s *Service) List(ctx context.Context, filters Filters) ([]models.FeedRecord, error) {
	query := s.db.WithContext(ctx).Model(&models.FeedRecord{})
	if filters.Source != "" {
		query = query.Where("source = ?", filters.Source)
	}
	if filters.Result != "" {
		query = query.Where("result = ?", filters.Result)
	}
	if !filters.Since.IsZero() {
		query = query.Where("finished_at >= ?", filters.Since)
	}

	limit := filters.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	records := []models.FeedRecord{}
	if err := query.Order("finished_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// recordFromPayload accepts payloads published in-process as well as those
// decoded from a distributed bus, where times arrive as RFC 3339 strings and
// numbers as float64.
func recordFromPayload(result models.FeedResult, payload events.Payload) *models.FeedRecord {
	entry := &models.FeedRecord{
		Result:          result,
		InstructionID:   stringField(payload, "instruction_id"),
		Source:          stringField(payload, "source"),
		DurationSeconds: uint32Field(payload, "duration_seconds"),
		EndPhase:        stringField(payload, "end_phase"),
		Error:           stringField(payload, "error"),
		SubmittedAt:     timeField(payload, "submitted_at"),
		StartedAt:       timeField(payload, "started_at"),
	}
	if brake, ok := payload["brake_at_end"].(bool); ok {
		entry.BrakeAtEnd = brake
	}
	if finished := timeField(payload, "finished_at"); finished != nil {
		entry.FinishedAt = *finished
	}
	if len(entry.Error) > 512 {
		entry.Error = entry.Error[:512]
	}
	return entry
}

func stringField(payload events.Payload, key string) string {
	s, _ := payload[key].(string)
	return s
}

func uint32Field(payload events.Payload, key string) uint32 {
	switch v := payload[key].(type) {
	case uint32:
		return v
	case int:
		if v >= 0 {
			return uint32(v)
		}
	case float64:
		if v >= 0 {
			return uint32(v)
		}
	}
	return 0
}

func timeField(payload events.Payload, key string) *time.Time {
	switch v := payload[key].(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		t := v.UTC()
		return &t
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	}
	return nil
}
