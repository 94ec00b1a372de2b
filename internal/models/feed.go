/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// FeedResult is the outcome of a motor run.
type FeedResult string

const (
	FeedResultCompleted FeedResult = "completed"
	FeedResultFaulted   FeedResult = "faulted"
)

// FeedRecord is one dispensing instruction as seen by the motor sequencer.
type FeedRecord struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstructionID   string     `gorm:"type:varchar(36);index:idx_feed_instruction" json:"instruction_id"`
	Source          string     `gorm:"type:varchar(16);index:idx_feed_source" json:"source"`
	DurationSeconds uint32     `json:"duration_seconds"`
	BrakeAtEnd      bool       `json:"brake_at_end"`
	Result          FeedResult `gorm:"type:varchar(16);not null" json:"result"`
	EndPhase        string     `gorm:"type:varchar(16)" json:"end_phase,omitempty"`
	Error           string     `gorm:"type:varchar(512)" json:"error,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      time.Time  `gorm:"index:idx_feed_finished;not null" json:"finished_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TableName returns the table name for GORM.
func (FeedRecord) TableName() string {
	return "feed_records"
}
