/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestAdvanceOneSecondCarries(t *testing.T) {
	tests := []struct {
		name  string
		start Clock
		want  Clock
	}{
		{"plain second", Clock{8, 0, 0}, Clock{8, 0, 1}},
		{"minute carry", Clock{8, 0, 59}, Clock{8, 1, 0}},
		{"hour carry", Clock{8, 59, 59}, Clock{9, 0, 0}},
		{"day wrap", Clock{23, 59, 59}, Clock{0, 0, 0}},
		{"midnight", Clock{0, 0, 0}, Clock{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.start
			c.AdvanceOneSecond()
			if c != tt.want {
				t.Errorf("AdvanceOneSecond(%s) = %s, want %s", tt.start, c, tt.want)
			}
		})
	}
}

func TestAdvanceFullDayRoundTrip(t *testing.T) {
	samples := []Clock{
		{0, 0, 0},
		{7, 59, 59},
		{12, 30, 15},
		{23, 59, 59},
	}
	for s := 0; s < SecondsPerDay; s += 3607 {
		samples = append(samples, FromSeconds(s))
	}

	for _, start := range samples {
		c := start
		for i := 0; i < SecondsPerDay; i++ {
			c.AdvanceOneSecond()
			if !c.Valid() {
				t.Fatalf("clock left valid range at step %d from %s: %+v", i, start, c)
			}
		}
		if c != start {
			t.Errorf("86400 ticks from %s ended at %s", start, c)
		}
	}
}

func TestTotalSeconds(t *testing.T) {
	tests := []struct {
		c    Clock
		want int
	}{
		{Clock{0, 0, 0}, 0},
		{Clock{0, 0, 59}, 59},
		{Clock{0, 1, 0}, 60},
		{Clock{1, 0, 0}, 3600},
		{Clock{8, 5, 0}, 29100},
		{Clock{23, 59, 59}, SecondsPerDay - 1},
	}
	for _, tt := range tests {
		if got := tt.c.TotalSeconds(); got != tt.want {
			t.Errorf("%s.TotalSeconds() = %d, want %d", tt.c, got, tt.want)
		}
		if back := FromSeconds(tt.want); back != tt.c {
			t.Errorf("FromSeconds(%d) = %s, want %s", tt.want, back, tt.c)
		}
	}
}

func TestCompareIsTotalOrder(t *testing.T) {
	var clocks []Clock
	for s := 0; s < SecondsPerDay; s += 997 {
		clocks = append(clocks, FromSeconds(s))
	}
	clocks = append(clocks, Clock{23, 59, 59}, Clock{0, 0, 0})

	for _, a := range clocks {
		if got := Compare(a, a); got != Equal {
			t.Fatalf("Compare(%s, %s) = %s, want equal", a, a, got)
		}
		for _, b := range clocks {
			ab, ba := Compare(a, b), Compare(b, a)
			if ab != -ba {
				t.Fatalf("Compare not antisymmetric for %s, %s: %s vs %s", a, b, ab, ba)
			}

			var want Ordering
			switch {
			case a.TotalSeconds() < b.TotalSeconds():
				want = Before
			case a.TotalSeconds() > b.TotalSeconds():
				want = After
			default:
				want = Equal
			}
			if ab != want {
				t.Fatalf("Compare(%s, %s) = %s, want %s", a, b, ab, want)
			}
		}
	}
}

func TestCompareIsTimeOfDayNotDuration(t *testing.T) {
	if got := Compare(Clock{23, 59, 59}, Clock{0, 0, 1}); got != After {
		t.Errorf("23:59:59 vs 00:00:01 = %s, want after", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"08:00:00", Clock{8, 0, 0}, false},
		{"23:59:59", Clock{23, 59, 59}, false},
		{"00:00:00", Clock{}, false},
		{"24:00:00", Clock{}, true},
		{"12:60:00", Clock{}, true},
		{"12:00:60", Clock{}, true},
		{"8:00:00", Clock{}, true},
		{"08-00-00", Clock{}, true},
		{"08:0a:00", Clock{}, true},
		{"08:00:00Z", Clock{}, true},
		{"", Clock{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTime) {
					t.Fatalf("Parse(%q) error = %v, want ErrMalformedTime", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestClockJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		At Clock `json:"at"`
	}{Clock{8, 5, 3}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"at":"08:05:03"}` {
		t.Fatalf("unexpected json: %s", data)
	}

	var out struct {
		At Clock `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"99:00:00"}`), &out); err == nil {
		t.Fatal("expected error for out of range time")
	}
}

func TestWallConcurrentTickAndSet(t *testing.T) {
	w := NewWall()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			w.Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			w.Set(Clock{12, 0, 0})
			if now := w.Now(); !now.Valid() {
				t.Errorf("invalid clock observed: %+v", now)
			}
		}
	}()
	wg.Wait()

	if !w.Synced() {
		t.Error("expected wall clock to report synced after Set")
	}
}

func TestWallTickReturnsAdvancedTime(t *testing.T) {
	w := NewWall()
	w.Set(Clock{7, 59, 59})
	if got := w.Tick(); got != (Clock{8, 0, 0}) {
		t.Errorf("Tick() = %s, want 08:00:00", got)
	}
	if got := w.Now(); got != (Clock{8, 0, 0}) {
		t.Errorf("Now() = %s, want 08:00:00", got)
	}
}
