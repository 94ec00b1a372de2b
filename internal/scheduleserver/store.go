/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduleserver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/petfeeder/internal/schedule"
)

// parameters is the on-disk layout of the schedule file. Files written by
// the earlier server use hora_inicio/hora_fim and are still read.
type parameters struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`

	LegacyStart string `yaml:"hora_inicio,omitempty"`
	LegacyEnd   string `yaml:"hora_fim,omitempty"`
}

func (p parameters) window() (schedule.Window, error) {
	start, end := p.Start, p.End
	if start == "" {
		start = p.LegacyStart
	}
	if end == "" {
		end = p.LegacyEnd
	}
	return schedule.NewWindow(start, end)
}

// FileStore keeps the served window and mirrors every change to a YAML file.
type FileStore struct {
	path string

	mu     sync.RWMutex
	window schedule.Window
}

// OpenFileStore loads path. A missing file yields fallback without creating
// the file; a present but malformed file is an error.
func OpenFileStore(path string, fallback schedule.Window) (*FileStore, error) {
	fsStore := &FileStore{path: path, window: fallback}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fsStore, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var p parameters
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse schedule file %s: %w", path, err)
	}
	w, err := p.window()
	if err != nil {
		return nil, fmt.Errorf("schedule file %s: %w", path, err)
	}
	fsStore.window = w
	return fsStore, nil
}

// Window returns the current window.
func (s *FileStore) Window() schedule.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// Set persists w and then makes it current. On a write failure the previous
// window stays in effect.
func (s *FileStore) Set(w schedule.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(parameters{Start: w.Start.String(), End: w.End.String()})
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".schedule-*.yaml")
	if err != nil {
		return fmt.Errorf("write schedule file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write schedule file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write schedule file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace schedule file: %w", err)
	}

	s.window = w
	return nil
}
