/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/rs/zerolog"
)

func testClient(attempts int) *Client {
	return NewClient(Config{
		Timeout:        time.Second,
		Attempts:       attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, zerolog.Nop())
}

func TestGetReturnsStructuredResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(DefaultStartHeader, "08:00:00")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := testClient(1).Get(context.Background(), "schedule", srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "ok" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Header.Get(DefaultStartHeader) != "08:00:00" {
		t.Errorf("header missing: %v", resp.Header)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"datetime":"2026-10-17T08:00:00.123456+00:00"}`))
	}))
	defer srv.Close()

	got, err := testClient(5).FetchTime(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch time: %v", err)
	}
	if got != (clock.Clock{Hours: 8}) {
		t.Errorf("time = %s, want 08:00:00", got)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(5).Get(context.Background(), "time", srv.URL)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}
	if calls.Load() != 5 {
		t.Errorf("calls = %d, want 5", calls.Load())
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := testClient(5).Get(context.Background(), "time", srv.URL); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGetHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testClient(5).Get(ctx, "time", srv.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestFetchWindowFromHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Start", "22:00:00")
		w.Header().Set("X-End", "02:00:00")
	}))
	defer srv.Close()

	w, err := testClient(1).FetchWindow(context.Background(), srv.URL, "X-Start", "X-End")
	if err != nil {
		t.Fatalf("fetch window: %v", err)
	}
	if w.String() != "[22:00:00, 02:00:00)" {
		t.Errorf("window = %s", w)
	}
}
