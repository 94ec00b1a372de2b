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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/petfeeder/internal/config"
	"github.com/friendsincode/petfeeder/internal/logging"
	"github.com/friendsincode/petfeeder/internal/scheduleserver"
)

var scheduleServerCmd = &cobra.Command{
	Use:   "schedule-server",
	Short: "Serve the feeding window to controllers",
	Long: `Run the schedule source.

Controllers poll GET /schedule and read the window from the start and end
headers. A browser form at / changes the window, which is saved to the YAML
file named by FEEDER_SCHEDULE_FILE.

Examples:
  # Serve on the default port 5000 with ./parameters.yaml
  petfeeder schedule-server

  # Change the window from a shell
  curl -d start=08:00:00 -d end=08:30:00 http://localhost:5000/schedule
`,
	RunE: runScheduleServer,
}

func init() {
	rootCmd.AddCommand(scheduleServerCmd)
}

func runScheduleServer(cmd *cobra.Command, args []string) error {
	ssCfg, err := config.LoadScheduleServer()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Setup(ssCfg.Environment)

	srv, err := scheduleserver.New(ssCfg, log)
	if err != nil {
		return err
	}
	httpServer := srv.HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("schedule server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("schedule server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
