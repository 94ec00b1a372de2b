/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, nil)
}

// SetupWithWriter configures zerolog with an additional JSON writer (the
// log buffer). Development gets a colourised console on stdout at debug
// level; other environments write JSON lines at info level.
func SetupWithWriter(environment string, additionalWriter io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if isDevelopment(environment) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}
	if additionalWriter != nil {
		out = zerolog.MultiLevelWriter(out, additionalWriter)
	}

	logger := zerolog.New(out).With().Timestamp().Str("service", "petfeeder").Logger().Level(levelFor(environment))
	log.Logger = logger
	return logger
}

func levelFor(environment string) zerolog.Level {
	if isDevelopment(environment) {
		return zerolog.DebugLevel
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("FEEDER_LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

func isDevelopment(environment string) bool {
	return strings.EqualFold(environment, "development") || strings.EqualFold(environment, "dev")
}
