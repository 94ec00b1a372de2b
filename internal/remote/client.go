/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package remote fetches the current time and the feeding window from
// HTTP sources.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrMalformedResponse indicates a response that does not carry the expected fields.
	ErrMalformedResponse = errors.New("malformed remote response")

	// ErrUnexpectedStatus indicates a non-2xx HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

const maxBodyBytes = 1 << 20

// Response is the structured result of a remote GET.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config controls timeouts and retries.
type Config struct {
	Timeout        time.Duration
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client performs synchronous GETs with bounded retries.
type Client struct {
	http   *http.Client
	cfg    Config
	logger zerolog.Logger
}

// NewClient creates a client. Zero config values fall back to defaults.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg:    cfg,
		logger: logger.With().Str("component", "remote").Logger(),
	}
}

// Get fetches url. Connection errors and 5xx responses are retried with
// exponential backoff up to the configured attempt count; 4xx responses
// fail immediately. source labels metrics and logs ("time", "schedule").
func (c *Client) Get(ctx context.Context, source, url string) (Response, error) {
	start := time.Now()
	defer func() {
		telemetry.RemoteFetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}()

	var resp Response
	operation := func() error {
		r, err := c.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if r.StatusCode >= 500 {
			return fmt.Errorf("%w: %d", ErrUnexpectedStatus, r.StatusCode)
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("%w: %d", ErrUnexpectedStatus, r.StatusCode))
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		telemetry.RemoteFetchRetriesTotal.WithLabelValues(source).Inc()
		c.logger.Debug().
			Err(err).
			Str("source", source).
			Str("url", url).
			Dur("retry_in", wait).
			Msg("remote fetch failed, retrying")
	}

	if err := backoff.RetryNotify(operation, c.backoff(ctx), notify); err != nil {
		return Response{}, fmt.Errorf("get %s: %w", source, err)
	}
	return resp, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialBackoff
	exp.MaxInterval = c.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.Attempts-1)), ctx)
}

func (c *Client) do(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
