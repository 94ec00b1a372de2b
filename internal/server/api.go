/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/petfeeder/internal/feeder"
	"github.com/friendsincode/petfeeder/internal/history"
	"github.com/friendsincode/petfeeder/internal/logbuffer"
	"github.com/friendsincode/petfeeder/internal/models"
	"github.com/friendsincode/petfeeder/internal/motor"
	"github.com/friendsincode/petfeeder/internal/version"
)

// maxFeedSeconds bounds a single manual run.
const maxFeedSeconds = 600

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.sequencer.Fault(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "faulted",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"clock_synced": s.wall.Synced(),
	})
}

type statusResponse struct {
	Version   version.Info   `json:"version"`
	Clock     clockStatus    `json:"clock"`
	Schedule  scheduleStatus `json:"schedule"`
	Feeder    feeder.Status  `json:"feeder"`
	Motor     motor.Status   `json:"motor"`
	EventBus  eventBusStatus `json:"event_bus"`
	History   bool           `json:"history_enabled"`
	Timestamp time.Time      `json:"timestamp"`
}

type clockStatus struct {
	Now    string `json:"now"`
	Synced bool   `json:"synced"`
}

type scheduleStatus struct {
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Empty     bool       `json:"empty"`
	InWindow  bool       `json:"in_window"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type eventBusStatus struct {
	Backend  string `json:"backend"`
	NodeID   string `json:"node_id"`
	Degraded bool   `json:"degraded"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.wall.Now()
	window := s.store.Window()

	sched := scheduleStatus{
		Start:    window.Start.String(),
		End:      window.End.String(),
		Empty:    window.Empty(),
		InWindow: window.Contains(now),
	}
	if updated := s.store.UpdatedAt(); !updated.IsZero() {
		sched.UpdatedAt = &updated
	}

	backend := string(s.cfg.EventBus)
	if backend == "" {
		backend = "memory"
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Version:   version.Get(),
		Clock:     clockStatus{Now: now.String(), Synced: s.wall.Synced()},
		Schedule:  sched,
		Feeder:    s.scheduler.Status(),
		Motor:     s.sequencer.Status(),
		EventBus:  eventBusStatus{Backend: backend, NodeID: s.nodeID, Degraded: s.bus.Degraded()},
		History:   s.history != nil,
		Timestamp: time.Now().UTC(),
	})
}

type feedRequest struct {
	DurationSeconds *int  `json:"duration_seconds"`
	BrakeAtEnd      *bool `json:"brake_at_end"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	// an empty body, chunked or not, keeps the configured defaults
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	duration := s.cfg.FeedDurationSeconds
	if req.DurationSeconds != nil {
		duration = *req.DurationSeconds
	}
	if duration < 0 || duration > maxFeedSeconds {
		writeError(w, http.StatusBadRequest, "invalid_duration")
		return
	}
	brake := s.cfg.BrakeAtEnd
	if req.BrakeAtEnd != nil {
		brake = *req.BrakeAtEnd
	}

	instr := motor.Instruction{
		ID:          uuid.NewString(),
		Duration:    uint32(duration),
		BrakeAtEnd:  brake,
		Source:      motor.SourceManual,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.sequencer.Submit(r.Context(), instr); err != nil {
		switch {
		case errors.Is(err, motor.ErrSequencerFaulted):
			writeError(w, http.StatusServiceUnavailable, "motor_faulted")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "queue_full")
		default:
			writeError(w, http.StatusInternalServerError, "submit_failed")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, instr)
}

func (s *Server) handleClockSync(w http.ResponseWriter, r *http.Request) {
	if err := s.syncer.SyncClock(r.Context()); err != nil {
		if errors.Is(err, feeder.ErrSourceNotConfigured) {
			writeError(w, http.StatusConflict, "time_source_not_configured")
			return
		}
		writeError(w, http.StatusBadGateway, "time_sync_failed")
		return
	}
	writeJSON(w, http.StatusOK, clockStatus{Now: s.wall.Now().String(), Synced: true})
}

func (s *Server) handleScheduleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.syncer.RefreshSchedule(r.Context()); err != nil {
		if errors.Is(err, feeder.ErrSourceNotConfigured) {
			writeError(w, http.StatusConflict, "schedule_source_not_configured")
			return
		}
		writeError(w, http.StatusBadGateway, "schedule_refresh_failed")
		return
	}
	window := s.store.Window()
	writeJSON(w, http.StatusOK, map[string]string{
		"start": window.Start.String(),
		"end":   window.End.String(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []models.FeedRecord{})
		return
	}

	query := r.URL.Query()
	filters := history.Filters{
		Source: query.Get("source"),
		Result: models.FeedResult(query.Get("result")),
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		filters.Limit = limit
	}
	if v := query.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		filters.Since = since
	}

	records, err := s.history.List(r.Context(), filters)
	if err != nil {
		s.logger.Error().Err(err).Msg("list feed history")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer == nil {
		writeJSON(w, http.StatusOK, []logbuffer.LogEntry{})
		return
	}

	query := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:         query.Get("level"),
		Component:     query.Get("component"),
		InstructionID: query.Get("instruction_id"),
		Search:        query.Get("search"),
		Descending:    query.Get("order") != "asc",
		Limit:         200,
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = limit
	}
	if v := query.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = since
	}

	entries := s.logBuffer.Query(params)
	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer == nil {
		writeError(w, http.StatusNotFound, "log_buffer_disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.logBuffer.Stats())
}
