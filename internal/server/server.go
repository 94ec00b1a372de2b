/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/friendsincode/petfeeder/internal/config"
	"github.com/friendsincode/petfeeder/internal/db"
	"github.com/friendsincode/petfeeder/internal/eventbus"
	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/feeder"
	"github.com/friendsincode/petfeeder/internal/history"
	"github.com/friendsincode/petfeeder/internal/logbuffer"
	"github.com/friendsincode/petfeeder/internal/motor"
	"github.com/friendsincode/petfeeder/internal/motor/serialdriver"
	"github.com/friendsincode/petfeeder/internal/remote"
	"github.com/friendsincode/petfeeder/internal/schedule"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/friendsincode/petfeeder/internal/webhooks"
)

// Server bundles the controller's HTTP API and its background workers.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	bus       eventbus.Bus
	nodeID    string
	wall      *clock.Wall
	store     *schedule.Store
	driver    motor.Driver
	sequencer *motor.Sequencer
	syncer    *feeder.Syncer
	scheduler *feeder.Scheduler
	db        *gorm.DB
	history   *history.Service
	webhooks  *webhooks.Service
	logBuffer *logbuffer.Buffer

	fatal    chan error
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New wires the controller from cfg. Background workers are not started
// until Start is called.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("petfeeder-api"))
	router.Use(telemetry.MetricsMiddleware)

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
		fatal:     make(chan error, 1),
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // feed requests block under backpressure; /api/v1/events is long lived
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	s.nodeID = eventbus.NodeID(s.cfg.InstanceID)
	s.bus = s.newEventBus()
	s.DeferClose(s.bus.Close)

	initial, err := schedule.NewWindow(s.cfg.DefaultWindowStart, s.cfg.DefaultWindowEnd)
	if err != nil {
		return fmt.Errorf("default window: %w", err)
	}
	s.wall = clock.NewWall()
	s.store = schedule.NewStore(initial)

	driver, err := s.newDriver()
	if err != nil {
		return err
	}
	s.driver = driver

	s.sequencer = motor.NewSequencer(driver, motor.Config{
		QueueCapacity: s.cfg.QueueCapacity,
		Driver: motor.DriverConfig{
			FrequencyHz: uint32(s.cfg.StepFrequencyHz),
			Reverse:     s.cfg.DirectionReverse,
		},
	}, s.bus, s.logger)

	client := remote.NewClient(remote.Config{
		Timeout:  s.cfg.FetchTimeout,
		Attempts: s.cfg.FetchAttempts,
	}, s.logger)

	s.syncer = feeder.NewSyncer(client, s.wall, s.store, feeder.SyncConfig{
		TimeURL:         s.cfg.TimeURL,
		ScheduleURL:     s.cfg.ScheduleURL,
		StartHeader:     s.cfg.ScheduleStartHeader,
		EndHeader:       s.cfg.ScheduleEndHeader,
		RefreshInterval: s.cfg.ScheduleRefresh,
	}, s.bus, s.logger)

	s.scheduler = feeder.New(s.wall, s.store, s.sequencer, feeder.Config{
		FeedDuration: uint32(s.cfg.FeedDurationSeconds),
		BrakeAtEnd:   s.cfg.BrakeAtEnd,
	}, s.logger)

	if s.cfg.DBBackend != config.DatabaseNone {
		database, err := db.Connect(s.cfg, s.logger)
		if err != nil {
			return err
		}
		s.DeferClose(func() error { return db.Close(database) })
		if err := db.Migrate(database); err != nil {
			return err
		}
		s.db = database
		s.history = history.NewService(database, s.bus, s.logger)
	}

	if len(s.cfg.WebhookURLs) > 0 {
		hookEvents := make([]events.EventType, 0, len(s.cfg.WebhookEvents))
		for _, name := range s.cfg.WebhookEvents {
			hookEvents = append(hookEvents, events.EventType(name))
		}
		s.webhooks = webhooks.NewService(webhooks.Config{
			URLs:   s.cfg.WebhookURLs,
			Secret: s.cfg.WebhookSecret,
			Events: hookEvents,
			NodeID: s.nodeID,
		}, s.bus, s.logger)
	}

	return nil
}

func (s *Server) newEventBus() eventbus.Bus {
	switch s.cfg.EventBus {
	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		return eventbus.NewRedisBus(redisCfg, s.nodeID, s.logger)
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		return eventbus.NewNATSBus(natsCfg, s.nodeID, s.logger)
	default:
		return eventbus.NewMemoryBus()
	}
}

func (s *Server) newDriver() (motor.Driver, error) {
	switch s.cfg.Driver {
	case config.DriverSerial:
		d, err := serialdriver.Open(s.cfg.SerialPort, s.cfg.SerialBaud, s.logger)
		if err != nil {
			return nil, fmt.Errorf("open motor driver: %w", err)
		}
		s.DeferClose(d.Close)
		return d, nil
	default:
		return motor.NewSimulatedDriver(s.logger), nil
	}
}

// HTTPServer returns the configured HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LogBuffer returns the captured log ring.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Fatal delivers the error that stopped the motor sequencer. The controller
// cannot feed after that, so callers should shut down.
func (s *Server) Fatal() <-chan error {
	return s.fatal
}

// Close stops background workers and releases resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup function for Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Start launches the motor sequencer, the tick loop, the schedule refresh
// and, when enabled, the history recorder and webhooks. The tick loop runs
// alongside the startup clock sync and schedule fetch.
func (s *Server) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.sequencer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("motor sequencer stopped")
			select {
			case s.fatal <- err:
			default:
			}
		}
	}()

	if s.webhooks != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.webhooks.Start(ctx)
		}()
	}

	if s.history != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.history.Start(ctx)
		}()

		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	// ticks continue while the startup fetches retry
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("feed scheduler exited")
		}
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.syncer.Prime(ctx)
		if err := s.syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("schedule refresh loop exited")
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/feed", s.handleFeed)
		r.Post("/clock/sync", s.handleClockSync)
		r.Post("/schedule/refresh", s.handleScheduleRefresh)
		r.Get("/history", s.handleHistory)
		r.Get("/logs", s.handleLogs)
		r.Get("/logs/stats", s.handleLogStats)
		r.Get("/events", s.handleEvents)
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request through zerolog instead of chi's
// stdlib-backed logger, so access lines land in the log buffer too.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "api").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
