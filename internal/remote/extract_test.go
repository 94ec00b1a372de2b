/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package remote

import (
	"errors"
	"net/http"
	"testing"

	"github.com/friendsincode/petfeeder/internal/clock"
)

func TestExtractTime(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    clock.Clock
		wantErr bool
	}{
		{"fractional with offset", `{"datetime":"2026-10-17T08:00:00.123456+00:00"}`, clock.Clock{Hours: 8}, false},
		{"utc suffix", `{"datetime":"2026-10-17T23:59:59Z","timezone":"UTC"}`, clock.Clock{Hours: 23, Minutes: 59, Seconds: 59}, false},
		{"exact length", `{"datetime":"2026-10-17T12:30:15"}`, clock.Clock{Hours: 12, Minutes: 30, Seconds: 15}, false},
		{"no T separator", `{"datetime":"2026-10-17 08:00:00"}`, clock.Clock{}, true},
		{"truncated", `{"datetime":"2026-10-17T08:00"}`, clock.Clock{}, true},
		{"out of range", `{"datetime":"2026-10-17T25:00:00"}`, clock.Clock{}, true},
		{"missing field", `{"unixtime":1760688000}`, clock.Clock{}, true},
		{"not json", `<html>`, clock.Clock{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTime(Response{StatusCode: http.StatusOK, Body: []byte(tt.body)})
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Fatalf("err = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractTimeWrapsParseError(t *testing.T) {
	_, err := ExtractTime(Response{Body: []byte(`{"datetime":"2026-10-17T08:61:00"}`)})
	if !errors.Is(err, clock.ErrMalformedTime) {
		t.Fatalf("err = %v, want wrapped ErrMalformedTime", err)
	}
}

func TestExtractWindow(t *testing.T) {
	header := http.Header{}
	header.Set(DefaultStartHeader, "08:00:00")
	header.Set(DefaultEndHeader, " 08:05:00 ")

	w, err := ExtractWindow(Response{Header: header}, DefaultStartHeader, DefaultEndHeader)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if w.Start != (clock.Clock{Hours: 8}) || w.End != (clock.Clock{Hours: 8, Minutes: 5}) {
		t.Errorf("window = %s", w)
	}
}

func TestExtractWindowErrors(t *testing.T) {
	missing := http.Header{}
	missing.Set(DefaultStartHeader, "08:00:00")

	malformed := http.Header{}
	malformed.Set(DefaultStartHeader, "8am")
	malformed.Set(DefaultEndHeader, "08:05:00")

	for name, header := range map[string]http.Header{"missing end": missing, "malformed start": malformed} {
		t.Run(name, func(t *testing.T) {
			if _, err := ExtractWindow(Response{Header: header}, DefaultStartHeader, DefaultEndHeader); !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
		})
	}
}
