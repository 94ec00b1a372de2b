/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/petfeeder/internal/config"
	"github.com/friendsincode/petfeeder/internal/logbuffer"
	"github.com/friendsincode/petfeeder/internal/logging"
	"github.com/friendsincode/petfeeder/internal/server"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/friendsincode/petfeeder/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf *logbuffer.Buffer
)

var rootCmd = &cobra.Command{
	Use:           "petfeeder",
	Short:         "Automated pet feeder controller",
	Long:          "petfeeder drives a feeder motor once per daily feeding window, using a remote time source and a remote schedule.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feeder controller",
	Long:  "Sync the clock, fetch the feeding window, and run the motor sequencer and control API until interrupted.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and sets up logging with the log buffer.
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(2000)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	info := version.Get()
	logger.Info().Str("version", info.Version).Str("driver", string(cfg.Driver)).Msg("petfeeder starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "petfeeder",
		ServiceVersion: info.Version,
		InstanceID:     cfg.InstanceID,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, logBuf, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Start(ctx)

	httpServer := srv.HTTPServer()
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down gracefully...")
	case err := <-srv.Fatal():
		runErr = fmt.Errorf("motor sequencer halted: %w", err)
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("petfeeder stopped")
		return runErr
	}
	logger.Info().Msg("petfeeder stopped")
	return nil
}
