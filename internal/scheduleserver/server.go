/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduleserver serves the feeding window to controllers and lets a
// person change it from a browser.
package scheduleserver

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/friendsincode/petfeeder/internal/config"
	"github.com/friendsincode/petfeeder/internal/schedule"
	"github.com/friendsincode/petfeeder/internal/telemetry"
)

// Header names sent by the earlier server, written verbatim without
// canonicalization.
const (
	legacyStartHeader = "horario_inicio"
	legacyEndHeader   = "horario_fim"
)

// Server is the schedule source HTTP server.
type Server struct {
	cfg    *config.ScheduleServerConfig
	store  *FileStore
	tmpl   *template.Template
	router chi.Router
	logger zerolog.Logger
}

type homeData struct {
	Start string
	End   string
	Empty bool
}

// New loads the schedule file and builds the router.
func New(cfg *config.ScheduleServerConfig, logger zerolog.Logger) (*Server, error) {
	fallback, err := schedule.NewWindow(cfg.DefaultStart, cfg.DefaultEnd)
	if err != nil {
		return nil, fmt.Errorf("default window: %w", err)
	}
	store, err := OpenFileStore(cfg.File, fallback)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(templateFS, "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		tmpl:   tmpl,
		router: chi.NewRouter(),
		logger: logger.With().Str("component", "schedule-server").Logger(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(telemetry.MetricsMiddleware)

	s.router.Get("/", s.handleHome)
	s.router.Get("/schedule", s.handleGetSchedule)
	s.router.Post("/schedule", s.handleSetSchedule)
	// paths used by earlier firmware
	s.router.Get("/get_value", s.handleGetValue)
	s.router.Post("/set_value", s.handleSetSchedule)
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := store.Window()
	s.logger.Info().Str("file", cfg.File).Str("window", w.String()).Msg("schedule loaded")
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer returns an http.Server listening on the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	win := s.store.Window()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "home.html", homeData{
		Start: win.Start.String(),
		End:   win.End.String(),
		Empty: win.Empty(),
	}); err != nil {
		s.logger.Error().Err(err).Msg("render home")
	}
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	win := s.store.Window()
	w.Header().Set(s.cfg.StartHeader, win.Start.String())
	w.Header().Set(s.cfg.EndHeader, win.End.String())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte("schedule\n"))
}

// handleGetValue answers with the header names the earlier firmware reads.
func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	win := s.store.Window()
	w.Header()[legacyStartHeader] = []string{win.Start.String()}
	w.Header()[legacyEndHeader] = []string{win.End.String()}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte("horarios\n"))
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	win, err := schedule.NewWindow(formValue(r, "start", legacyStartHeader), formValue(r, "end", legacyEndHeader))
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejected schedule update")
		if errors.Is(err, clock.ErrMalformedTime) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "invalid schedule", http.StatusBadRequest)
		return
	}

	if err := s.store.Set(win); err != nil {
		s.logger.Error().Err(err).Msg("persist schedule")
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}

	s.logger.Info().Str("window", win.String()).Msg("schedule updated")
	w.WriteHeader(http.StatusNoContent)
}

// formValue returns the first non-empty form field among names.
func formValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.PostFormValue(name); v != "" {
			return v
		}
	}
	return ""
}
