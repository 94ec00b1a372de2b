/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/friendsincode/petfeeder/internal/schedule"
)

// Default header names carrying the feeding window.
const (
	DefaultStartHeader = "X-Feed-Start"
	DefaultEndHeader   = "X-Feed-End"
)

// ExtractTime reads the time of day from a time-source response. The body
// is a JSON object whose "datetime" field is an ISO-8601 timestamp; only
// the HH:MM:SS after the "T" is used.
func ExtractTime(resp Response) (clock.Clock, error) {
	var body struct {
		Datetime string `json:"datetime"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return clock.Clock{}, fmt.Errorf("%w: decode time body: %w", ErrMalformedResponse, err)
	}

	idx := strings.IndexByte(body.Datetime, 'T')
	if idx < 0 || len(body.Datetime) < idx+1+8 {
		return clock.Clock{}, fmt.Errorf("%w: datetime %q has no time of day", ErrMalformedResponse, body.Datetime)
	}

	c, err := clock.Parse(body.Datetime[idx+1 : idx+1+8])
	if err != nil {
		return clock.Clock{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return c, nil
}

// ExtractWindow reads the feeding window from the named response headers.
func ExtractWindow(resp Response, startHeader, endHeader string) (schedule.Window, error) {
	start := strings.TrimSpace(resp.Header.Get(startHeader))
	end := strings.TrimSpace(resp.Header.Get(endHeader))
	if start == "" || end == "" {
		return schedule.Window{}, fmt.Errorf("%w: missing %s or %s header", ErrMalformedResponse, startHeader, endHeader)
	}

	w, err := schedule.NewWindow(start, end)
	if err != nil {
		return schedule.Window{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return w, nil
}

// FetchTime gets and extracts the current time of day.
func (c *Client) FetchTime(ctx context.Context, url string) (clock.Clock, error) {
	resp, err := c.Get(ctx, "time", url)
	if err != nil {
		return clock.Clock{}, err
	}
	return ExtractTime(resp)
}

// FetchWindow gets and extracts the feeding window.
func (c *Client) FetchWindow(ctx context.Context, url, startHeader, endHeader string) (schedule.Window, error) {
	resp, err := c.Get(ctx, "schedule", url)
	if err != nil {
		return schedule.Window{}, err
	}
	return ExtractWindow(resp, startHeader, endHeader)
}
