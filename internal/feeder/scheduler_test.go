/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package feeder

import (
	"context"
	"errors"
	"testing"

	"github.com/friendsincode/petfeeder/internal/clock"
	"github.com/friendsincode/petfeeder/internal/motor"
	"github.com/friendsincode/petfeeder/internal/schedule"
	"github.com/rs/zerolog"
)

type submission struct {
	at    clock.Clock
	instr motor.Instruction
}

// recordingSubmitter records each instruction with the wall time it arrived at.
type recordingSubmitter struct {
	wall *clock.Wall
	got  []submission
	err  error
}

func (r *recordingSubmitter) Submit(_ context.Context, instr motor.Instruction) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, submission{at: r.wall.Now(), instr: instr})
	return nil
}

func mustClock(t *testing.T, s string) clock.Clock {
	t.Helper()
	c, err := clock.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newTestScheduler(t *testing.T, start, end, now string) (*Scheduler, *recordingSubmitter, *clock.Wall) {
	t.Helper()
	window, err := schedule.NewWindow(start, end)
	if err != nil {
		t.Fatal(err)
	}
	wall := clock.NewWall()
	wall.Set(mustClock(t, now))
	sub := &recordingSubmitter{wall: wall}
	s := New(wall, schedule.NewStore(window), sub, Config{FeedDuration: 5}, zerolog.Nop())
	return s, sub, wall
}

func tickUntil(t *testing.T, s *Scheduler, wall *clock.Wall, until clock.Clock) {
	t.Helper()
	for i := 0; i <= clock.SecondsPerDay; i++ {
		if err := s.Tick(context.Background()); err != nil {
			t.Fatalf("tick: %v", err)
		}
		if wall.Now() == until {
			return
		}
	}
	t.Fatalf("clock never reached %s", until)
}

func TestSchedulerFeedsOncePerWindow(t *testing.T) {
	s, sub, wall := newTestScheduler(t, "08:00:00", "08:05:00", "07:59:59")

	tickUntil(t, s, wall, mustClock(t, "08:06:00"))

	if len(sub.got) != 1 {
		t.Fatalf("submitted %d instructions, want 1", len(sub.got))
	}
	if at := sub.got[0].at; at != mustClock(t, "08:00:00") {
		t.Errorf("fed at %s, want 08:00:00", at)
	}
	instr := sub.got[0].instr
	if instr.Duration != 5 || instr.BrakeAtEnd || instr.Source != motor.SourceSchedule {
		t.Errorf("unexpected instruction: %+v", instr)
	}
	if s.Triggered() {
		t.Error("triggered flag should clear once the window has passed")
	}
}

func TestSchedulerDoesNotRetriggerInsideWindow(t *testing.T) {
	s, sub, wall := newTestScheduler(t, "08:00:00", "08:05:00", "07:59:59")

	tickUntil(t, s, wall, mustClock(t, "08:04:59"))

	if len(sub.got) != 1 {
		t.Fatalf("submitted %d instructions, want 1", len(sub.got))
	}
	if !s.Triggered() {
		t.Error("expected triggered inside the window")
	}
}

func TestSchedulerFeedsAgainNextDay(t *testing.T) {
	s, sub, wall := newTestScheduler(t, "08:00:00", "08:05:00", "07:59:59")

	tickUntil(t, s, wall, mustClock(t, "08:06:00"))
	tickUntil(t, s, wall, mustClock(t, "08:06:00"))

	if len(sub.got) != 2 {
		t.Fatalf("submitted %d instructions over two days, want 2", len(sub.got))
	}
	for i, got := range sub.got {
		if got.at != mustClock(t, "08:00:00") {
			t.Errorf("feed %d at %s, want 08:00:00", i, got.at)
		}
	}
	if st := s.Status(); st.Feeds != 2 || st.LastTriggered != mustClock(t, "08:00:00") {
		t.Errorf("status = %+v", st)
	}
}

func TestSchedulerWindowAcrossMidnight(t *testing.T) {
	s, sub, wall := newTestScheduler(t, "23:59:00", "00:01:00", "23:58:00")

	tickUntil(t, s, wall, mustClock(t, "00:02:00"))

	if len(sub.got) != 1 {
		t.Fatalf("submitted %d instructions, want 1", len(sub.got))
	}
	if at := sub.got[0].at; at != mustClock(t, "23:59:00") {
		t.Errorf("fed at %s, want 23:59:00", at)
	}
}

func TestSchedulerClockSetBackDoesNotRefeed(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		from       string
		fedUntil   string
		setBack    string
		until      string
	}{
		{"daytime window", "08:00:00", "08:05:00", "07:59:59", "08:02:00", "07:59:50", "08:06:00"},
		{"window across midnight", "23:00:00", "01:00:00", "22:59:59", "23:30:00", "22:50:00", "01:01:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sub, wall := newTestScheduler(t, tt.start, tt.end, tt.from)

			tickUntil(t, s, wall, mustClock(t, tt.fedUntil))
			wall.Set(mustClock(t, tt.setBack))
			tickUntil(t, s, wall, mustClock(t, tt.until))

			if len(sub.got) != 1 {
				t.Fatalf("submitted %d instructions, want 1", len(sub.got))
			}
			if s.Triggered() {
				t.Error("triggered flag should clear after the window end")
			}
		})
	}
}

func TestSchedulerEmptyWindowNeverFeeds(t *testing.T) {
	s, sub, wall := newTestScheduler(t, "08:00:00", "08:00:00", "07:59:00")

	tickUntil(t, s, wall, mustClock(t, "07:58:59"))

	if len(sub.got) != 0 {
		t.Fatalf("empty window submitted %d instructions", len(sub.got))
	}
}

func TestSchedulerStartsInsideWindow(t *testing.T) {
	s, sub, _ := newTestScheduler(t, "08:00:00", "08:05:00", "08:02:00")

	if err := s.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sub.got) != 1 {
		t.Fatalf("submitted %d instructions, want 1 on first tick inside the window", len(sub.got))
	}
}

func TestSchedulerSubmitFailureRetriesNextTick(t *testing.T) {
	s, sub, _ := newTestScheduler(t, "08:00:00", "08:05:00", "07:59:59")
	sub.err = motor.ErrSequencerFaulted

	if err := s.Tick(context.Background()); !errors.Is(err, motor.ErrSequencerFaulted) {
		t.Fatalf("tick = %v, want ErrSequencerFaulted", err)
	}
	if s.Triggered() {
		t.Fatal("failed submit must not mark the window as fed")
	}

	sub.err = nil
	if err := s.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sub.got) != 1 {
		t.Fatalf("submitted %d instructions, want 1", len(sub.got))
	}
}

func TestSchedulerBrakeConfig(t *testing.T) {
	window, _ := schedule.NewWindow("08:00:00", "08:05:00")
	wall := clock.NewWall()
	wall.Set(clock.Clock{Hours: 8})
	sub := &recordingSubmitter{wall: wall}
	s := New(wall, schedule.NewStore(window), sub, Config{FeedDuration: 3, BrakeAtEnd: true}, zerolog.Nop())

	if err := s.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sub.got) != 1 || !sub.got[0].instr.BrakeAtEnd || sub.got[0].instr.Duration != 3 {
		t.Fatalf("unexpected submissions: %+v", sub.got)
	}
}
