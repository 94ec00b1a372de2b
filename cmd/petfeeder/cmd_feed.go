/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	feedDuration int
	feedBrake    bool
	feedAddr     string
	feedTimeout  time.Duration
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Dispense food now on a running controller",
	Long: `Submit a manual motor run to a running controller.

The request waits while the controller's motor queue is full, up to --timeout.

Examples:
  # Run the motor for the controller's configured duration
  petfeeder feed

  # Run for 8 seconds and let the motor coast afterwards
  petfeeder feed --duration 8 --brake
`,
	RunE: runFeed,
}

func init() {
	feedCmd.Flags().IntVarP(&feedDuration, "duration", "d", -1, "Seconds to run the motor (default: controller setting)")
	feedCmd.Flags().BoolVar(&feedBrake, "brake", false, "Disable the driver after the run instead of holding position")
	feedCmd.Flags().StringVar(&feedAddr, "addr", "http://127.0.0.1:8080", "Controller base URL")
	feedCmd.Flags().DurationVar(&feedTimeout, "timeout", 30*time.Second, "How long to wait for the controller to accept the run")
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, args []string) error {
	body := map[string]any{}
	if feedDuration >= 0 {
		body["duration_seconds"] = feedDuration
	}
	if cmd.Flags().Changed("brake") {
		body["brake_at_end"] = feedBrake
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), feedTimeout)
	defer cancel()

	url := strings.TrimRight(feedAddr, "/") + "/api/v1/feed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit feed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("controller rejected feed: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var instr struct {
		ID              string `json:"id"`
		DurationSeconds uint32 `json:"duration_seconds"`
		BrakeAtEnd      bool   `json:"brake_at_end"`
	}
	if err := json.Unmarshal(respBody, &instr); err != nil {
		return fmt.Errorf("decode controller response: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s: %ds, brake_at_end=%t\n", instr.ID, instr.DurationSeconds, instr.BrakeAtEnd)
	return nil
}
