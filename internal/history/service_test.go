/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(&models.FeedRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestRecordFromLocalPayload(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Second)

	entry := recordFromPayload(models.FeedResultCompleted, events.Payload{
		"instruction_id":   "abc",
		"source":           "schedule",
		"duration_seconds": uint32(5),
		"brake_at_end":     true,
		"end_phase":        "coasting",
		"started_at":       started,
		"finished_at":      finished,
	})

	if entry.InstructionID != "abc" || entry.Source != "schedule" || entry.DurationSeconds != 5 {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !entry.BrakeAtEnd || entry.EndPhase != "coasting" {
		t.Errorf("unexpected end state: %+v", entry)
	}
	if entry.StartedAt == nil || !entry.StartedAt.Equal(started) || !entry.FinishedAt.Equal(finished) {
		t.Errorf("unexpected times: %v %v", entry.StartedAt, entry.FinishedAt)
	}
	if entry.SubmittedAt != nil {
		t.Errorf("expected nil submitted_at, got %v", entry.SubmittedAt)
	}
}

func TestRecordFromRemotePayload(t *testing.T) {
	entry := recordFromPayload(models.FeedResultFaulted, events.Payload{
		"instruction_id":   "def",
		"duration_seconds": float64(7),
		"finished_at":      "2026-03-01T08:00:07Z",
		"error":            "motor driver fault: enable: timeout",
	})

	if entry.DurationSeconds != 7 {
		t.Errorf("duration = %d, want 7", entry.DurationSeconds)
	}
	if entry.FinishedAt.IsZero() || entry.FinishedAt.Second() != 7 {
		t.Errorf("finished_at = %v", entry.FinishedAt)
	}
	if entry.Result != models.FeedResultFaulted || entry.Error == "" {
		t.Errorf("unexpected fault entry: %+v", entry)
	}
}

func TestLogAndList(t *testing.T) {
	svc := NewService(newTestDB(t), events.NewBus(), zerolog.Nop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, source := range []string{"schedule", "manual", "schedule"} {
		err := svc.Log(ctx, &models.FeedRecord{
			Source:     source,
			Result:     models.FeedResultCompleted,
			FinishedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	all, err := svc.List(ctx, Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if !all[0].FinishedAt.After(all[1].FinishedAt) {
		t.Error("expected newest record first")
	}
	if all[0].ID == "" {
		t.Error("expected generated id")
	}

	scheduled, err := svc.List(ctx, Filters{Source: "schedule", Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0].Source != "schedule" {
		t.Errorf("unexpected filtered list: %+v", scheduled)
	}
}

func TestStartStoresPublishedRuns(t *testing.T) {
	bus := events.NewBus()
	svc := NewService(newTestDB(t), bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// the subscription is registered asynchronously; republish until stored
	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.Publish(events.EventMotorFault, events.Payload{
			"instruction_id": "run-1",
			"error":          "stalled",
		})
		records, err := svc.List(context.Background(), Filters{Result: models.FeedResultFaulted})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(records) > 0 {
			if records[0].InstructionID != "run-1" {
				t.Errorf("unexpected record: %+v", records[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for stored fault record")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
