/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package feeder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/remote"
	"github.com/friendsincode/petfeeder/internal/schedule"
	"github.com/rs/zerolog"
)

type stubFetcher struct {
	now       clock.Clock
	window    schedule.Window
	timeErr   error
	windowErr error
	headers   [2]string
}

func (f *stubFetcher) FetchTime(context.Context, string) (clock.Clock, error) {
	return f.now, f.timeErr
}

func (f *stubFetcher) FetchWindow(_ context.Context, _ string, start, end string) (schedule.Window, error) {
	f.headers = [2]string{start, end}
	return f.window, f.windowErr
}

func newTestSyncer(f Fetcher) (*Syncer, *clock.Wall, *schedule.Store, *events.Bus) {
	wall := clock.NewWall()
	store := schedule.NewStore(schedule.Window{Start: clock.Clock{Hours: 8}, End: clock.Clock{Hours: 8, Minutes: 5}})
	bus := events.NewBus()
	cfg := SyncConfig{
		TimeURL:     "http://time.test",
		ScheduleURL: "http://schedule.test",
		StartHeader: remote.DefaultStartHeader,
		EndHeader:   remote.DefaultEndHeader,
	}
	return NewSyncer(f, wall, store, cfg, bus, zerolog.Nop()), wall, store, bus
}

func TestSyncClockSetsWall(t *testing.T) {
	f := &stubFetcher{now: clock.Clock{Hours: 12, Minutes: 34, Seconds: 56}}
	s, wall, _, bus := newTestSyncer(f)
	synced := bus.Subscribe(events.EventClockSynced)

	if err := s.SyncClock(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if wall.Now() != f.now || !wall.Synced() {
		t.Errorf("wall = %s synced=%t", wall.Now(), wall.Synced())
	}
	select {
	case payload := <-synced:
		if payload["now"] != "12:34:56" {
			t.Errorf("payload = %v", payload)
		}
	default:
		t.Error("expected clock synced event")
	}
}

func TestSyncClockFailureKeepsTime(t *testing.T) {
	f := &stubFetcher{timeErr: remote.ErrMalformedResponse}
	s, wall, _, bus := newTestSyncer(f)
	wall.Set(clock.Clock{Hours: 7})
	degraded := bus.Subscribe(events.EventRemoteDegraded)

	if err := s.SyncClock(context.Background()); !errors.Is(err, remote.ErrMalformedResponse) {
		t.Fatalf("sync = %v, want ErrMalformedResponse", err)
	}
	if wall.Now() != (clock.Clock{Hours: 7}) {
		t.Errorf("wall changed to %s after failed sync", wall.Now())
	}
	select {
	case payload := <-degraded:
		if payload["source"] != "time" {
			t.Errorf("payload = %v", payload)
		}
	default:
		t.Error("expected remote degraded event")
	}
}

func TestRefreshScheduleReplacesWindow(t *testing.T) {
	next := schedule.Window{Start: clock.Clock{Hours: 18}, End: clock.Clock{Hours: 18, Minutes: 10}}
	f := &stubFetcher{window: next}
	s, _, store, bus := newTestSyncer(f)
	updated := bus.Subscribe(events.EventScheduleUpdated)

	if err := s.RefreshSchedule(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.Window() != next {
		t.Errorf("window = %s, want %s", store.Window(), next)
	}
	if f.headers != [2]string{remote.DefaultStartHeader, remote.DefaultEndHeader} {
		t.Errorf("headers = %v", f.headers)
	}
	if len(updated) != 1 {
		t.Fatalf("expected one schedule updated event, got %d", len(updated))
	}

	// unchanged window publishes nothing
	if err := s.RefreshSchedule(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(updated) != 1 {
		t.Errorf("unchanged window published an update")
	}
}

func TestRefreshScheduleFailureKeepsWindow(t *testing.T) {
	f := &stubFetcher{windowErr: remote.ErrMalformedResponse}
	s, _, store, _ := newTestSyncer(f)
	before := store.Window()

	if err := s.RefreshSchedule(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.Window() != before {
		t.Errorf("window changed to %s after failed refresh", store.Window())
	}
}

func TestSyncWithoutSources(t *testing.T) {
	wall := clock.NewWall()
	store := schedule.NewStore(schedule.Window{})
	s := NewSyncer(&stubFetcher{}, wall, store, SyncConfig{}, nil, zerolog.Nop())

	if err := s.SyncClock(context.Background()); !errors.Is(err, ErrSourceNotConfigured) {
		t.Errorf("sync clock = %v, want ErrSourceNotConfigured", err)
	}
	if err := s.RefreshSchedule(context.Background()); !errors.Is(err, ErrSourceNotConfigured) {
		t.Errorf("refresh = %v, want ErrSourceNotConfigured", err)
	}
	s.Prime(context.Background())
	if wall.Synced() {
		t.Error("prime without a time source must not mark the clock synced")
	}
}

// sequenceFetcher answers schedule fetches from a script; the last entry
// repeats once the script runs out.
type sequenceFetcher struct {
	mu      sync.Mutex
	results []windowResult
	calls   int
}

type windowResult struct {
	window schedule.Window
	err    error
}

func (f *sequenceFetcher) FetchTime(context.Context, string) (clock.Clock, error) {
	return clock.Clock{}, errors.New("no time source")
}

func (f *sequenceFetcher) FetchWindow(context.Context, string, string, string) (schedule.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r.window, r.err
}

func (f *sequenceFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunRefreshesPeriodicallyAndKeepsWindowOnFailure(t *testing.T) {
	fetched := schedule.Window{Start: clock.Clock{Hours: 9}, End: clock.Clock{Hours: 9, Minutes: 5}}
	f := &sequenceFetcher{results: []windowResult{
		{window: fetched},
		{err: remote.ErrMalformedResponse},
	}}

	store := schedule.NewStore(schedule.Window{Start: clock.Clock{Hours: 8}, End: clock.Clock{Hours: 8, Minutes: 5}})
	bus := events.NewBus()
	updated := bus.Subscribe(events.EventScheduleUpdated)
	degraded := bus.Subscribe(events.EventRemoteDegraded)
	s := NewSyncer(f, clock.NewWall(), store, SyncConfig{
		ScheduleURL:     "http://schedule.test",
		StartHeader:     remote.DefaultStartHeader,
		EndHeader:       remote.DefaultEndHeader,
		RefreshInterval: 10 * time.Millisecond,
	}, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case payload := <-updated:
		if payload["start"] != "09:00:00" {
			t.Errorf("updated payload = %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first refresh")
	}

	select {
	case payload := <-degraded:
		if payload["source"] != "schedule" {
			t.Errorf("degraded payload = %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a failed refresh")
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.Calls() < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d refreshes ran", f.Calls())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if store.Window() != fetched {
		t.Errorf("window = %s after failed refreshes, want %s", store.Window(), fetched)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestRunWithoutScheduleSourceWaitsForCancel(t *testing.T) {
	s := NewSyncer(&stubFetcher{}, clock.NewWall(), schedule.NewStore(schedule.Window{}), SyncConfig{}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
