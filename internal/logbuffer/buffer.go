/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer provides an in-memory ring buffer for capturing logs.
package logbuffer

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log entry.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
	count    int
}

// New creates a new log buffer with the specified capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 2000
	}
	return &Buffer{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
	}
}

// Add adds a log entry to the buffer, overwriting the oldest when full.
func (b *Buffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// GetAll returns all log entries in chronological order.
func (b *Buffer) GetAll() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]LogEntry, b.count)
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// QueryParams filters a Query.
type QueryParams struct {
	Level         string    // debug, info, warn, error
	Component     string    // motor, feeder, sync, remote, api...
	InstructionID string    // instruction_id field
	Search        string    // case-insensitive match on message, component and string fields
	Since         time.Time // only entries at or after this time
	Limit         int       // 0 = all
	Descending    bool      // newest first
}

// Query returns log entries matching the filter criteria.
func (b *Buffer) Query(params QueryParams) []LogEntry {
	search := strings.ToLower(params.Search)

	var filtered []LogEntry
	for _, entry := range b.GetAll() {
		if params.Level != "" && entry.Level != params.Level {
			continue
		}
		if params.Component != "" && entry.Component != params.Component {
			continue
		}
		if params.InstructionID != "" {
			if id, _ := entry.Fields["instruction_id"].(string); id != params.InstructionID {
				continue
			}
		}
		if !params.Since.IsZero() && entry.Timestamp.Before(params.Since) {
			continue
		}
		if search != "" && !entry.matches(search) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if params.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered
}

func (e LogEntry) matches(lowerSearch string) bool {
	if strings.Contains(strings.ToLower(e.Message), lowerSearch) ||
		strings.Contains(strings.ToLower(e.Component), lowerSearch) {
		return true
	}
	for _, v := range e.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), lowerSearch) {
			return true
		}
	}
	return false
}

// Stats returns buffer statistics.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
	Components []string       `json:"components"`
}

// Stats summarizes the buffered entries.
func (b *Buffer) Stats() Stats {
	entries := b.GetAll()

	stats := Stats{
		Capacity:   b.capacity,
		Count:      len(entries),
		LevelCount: make(map[string]int),
		Components: []string{},
	}
	seen := make(map[string]bool)
	for _, entry := range entries {
		stats.LevelCount[entry.Level]++
		if entry.Component != "" && !seen[entry.Component] {
			seen[entry.Component] = true
			stats.Components = append(stats.Components, entry.Component)
		}
	}
	sort.Strings(stats.Components)
	return stats
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// Writer wraps the buffer to implement io.Writer for zerolog.
type Writer struct {
	buffer   *Buffer
	fallback io.Writer
}

// NewWriter creates a writer that captures logs to the buffer.
func NewWriter(buffer *Buffer, fallback io.Writer) *Writer {
	return &Writer{buffer: buffer, fallback: fallback}
}

// Write implements io.Writer. Lines that are not JSON are passed through
// to the fallback without being buffered.
func (w *Writer) Write(p []byte) (n int, err error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err == nil {
		w.buffer.Add(parseEntry(raw))
	}

	if w.fallback != nil {
		return w.fallback.Write(p)
	}
	return len(p), nil
}

func parseEntry(raw map[string]any) LogEntry {
	entry := LogEntry{
		Timestamp: time.Now(),
		Fields:    make(map[string]any),
	}

	if lvl, ok := raw["level"].(string); ok {
		entry.Level = lvl
		delete(raw, "level")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	if comp, ok := raw["component"].(string); ok {
		entry.Component = comp
		delete(raw, "component")
	}
	switch ts := raw["time"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = t
		}
	case float64:
		entry.Timestamp = time.Unix(int64(ts), 0)
	}
	delete(raw, "time")

	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry
}
