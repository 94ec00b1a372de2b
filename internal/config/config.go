/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/petfeeder/internal/clock"
)

// Database backend selection. An empty backend disables feed history.
type DatabaseBackend string

const (
	DatabaseNone     DatabaseBackend = ""
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// DriverKind selects the motor driver implementation.
type DriverKind string

const (
	DriverSimulated DriverKind = "simulated"
	DriverSerial    DriverKind = "serial"
)

// EventBusKind selects how events leave the process.
type EventBusKind string

const (
	EventBusMemory EventBusKind = "memory"
	EventBusRedis  EventBusKind = "redis"
	EventBusNATS   EventBusKind = "nats"
)

const minQueueCapacity = 10

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Remote sources
	TimeURL             string
	ScheduleURL         string
	ScheduleStartHeader string
	ScheduleEndHeader   string
	ScheduleRefresh     time.Duration
	FetchAttempts       int
	FetchTimeout        time.Duration
	DefaultWindowStart  string // used until the first schedule fetch succeeds
	DefaultWindowEnd    string

	// Feeding
	FeedDurationSeconds int
	BrakeAtEnd          bool
	QueueCapacity       int

	// Motor driver
	Driver           DriverKind
	SerialPort       string
	SerialBaud       int
	StepFrequencyHz  int
	DirectionReverse bool

	// Feed history
	DBBackend DatabaseBackend
	DBDSN     string

	// Event fan-out
	EventBus      EventBusKind
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	InstanceID    string

	// Outbound notifications
	WebhookURLs   []string
	WebhookSecret string
	WebhookEvents []string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"FEEDER_ENV", "PETFEEDER_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"FEEDER_HTTP_BIND", "PETFEEDER_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"FEEDER_HTTP_PORT", "PETFEEDER_HTTP_PORT"}, 8080),

		TimeURL:             getEnvAny([]string{"FEEDER_TIME_URL", "PETFEEDER_TIME_URL"}, ""),
		ScheduleURL:         getEnvAny([]string{"FEEDER_SCHEDULE_URL", "PETFEEDER_SCHEDULE_URL"}, ""),
		ScheduleStartHeader: getEnvAny([]string{"FEEDER_SCHEDULE_START_HEADER"}, "X-Feed-Start"),
		ScheduleEndHeader:   getEnvAny([]string{"FEEDER_SCHEDULE_END_HEADER"}, "X-Feed-End"),
		ScheduleRefresh:     time.Duration(getEnvIntAny([]string{"FEEDER_SCHEDULE_REFRESH_SECONDS"}, 60)) * time.Second,
		FetchAttempts:       getEnvIntAny([]string{"FEEDER_FETCH_ATTEMPTS"}, 5),
		FetchTimeout:        time.Duration(getEnvIntAny([]string{"FEEDER_FETCH_TIMEOUT_SECONDS"}, 10)) * time.Second,
		DefaultWindowStart:  getEnvAny([]string{"FEEDER_DEFAULT_WINDOW_START"}, "00:00:00"),
		DefaultWindowEnd:    getEnvAny([]string{"FEEDER_DEFAULT_WINDOW_END"}, "00:00:00"),

		FeedDurationSeconds: getEnvIntAny([]string{"FEEDER_FEED_DURATION_SECONDS"}, 5),
		BrakeAtEnd:          getEnvBoolAny([]string{"FEEDER_BRAKE_AT_END"}, false),
		QueueCapacity:       getEnvIntAny([]string{"FEEDER_QUEUE_CAPACITY"}, minQueueCapacity),

		Driver:           DriverKind(strings.ToLower(getEnvAny([]string{"FEEDER_DRIVER"}, string(DriverSimulated)))),
		SerialPort:       getEnvAny([]string{"FEEDER_SERIAL_PORT"}, "/dev/ttyUSB0"),
		SerialBaud:       getEnvIntAny([]string{"FEEDER_SERIAL_BAUD"}, 115200),
		StepFrequencyHz:  getEnvIntAny([]string{"FEEDER_STEP_FREQUENCY_HZ"}, 300),
		DirectionReverse: getEnvBoolAny([]string{"FEEDER_DIRECTION_REVERSE"}, false),

		DBBackend: DatabaseBackend(strings.ToLower(getEnvAny([]string{"FEEDER_DB_BACKEND"}, ""))),
		DBDSN:     getEnvAny([]string{"FEEDER_DB_DSN"}, ""),

		EventBus:      EventBusKind(strings.ToLower(getEnvAny([]string{"FEEDER_EVENTBUS"}, string(EventBusMemory)))),
		RedisAddr:     getEnvAny([]string{"FEEDER_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"FEEDER_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"FEEDER_REDIS_DB", "REDIS_DB"}, 0),
		NATSURL:       getEnvAny([]string{"FEEDER_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		InstanceID:    getEnvAny([]string{"FEEDER_INSTANCE_ID"}, ""),

		WebhookURLs:   splitList(getEnvAny([]string{"FEEDER_WEBHOOK_URLS"}, "")),
		WebhookSecret: getEnvAny([]string{"FEEDER_WEBHOOK_SECRET"}, ""),
		WebhookEvents: splitList(getEnvAny([]string{"FEEDER_WEBHOOK_EVENTS"}, "motor.completed,motor.fault")),

		TracingEnabled:    getEnvBoolAny([]string{"FEEDER_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"FEEDER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"FEEDER_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.QueueCapacity < minQueueCapacity {
		cfg.QueueCapacity = minQueueCapacity
	}

	if cfg.FeedDurationSeconds < 0 {
		return nil, fmt.Errorf("FEEDER_FEED_DURATION_SECONDS must not be negative, got %d", cfg.FeedDurationSeconds)
	}

	if cfg.FetchAttempts < 1 {
		return nil, fmt.Errorf("FEEDER_FETCH_ATTEMPTS must be at least 1, got %d", cfg.FetchAttempts)
	}

	if cfg.ScheduleRefresh <= 0 {
		return nil, fmt.Errorf("FEEDER_SCHEDULE_REFRESH_SECONDS must be positive")
	}

	if _, err := clock.Parse(cfg.DefaultWindowStart); err != nil {
		return nil, fmt.Errorf("FEEDER_DEFAULT_WINDOW_START: %w", err)
	}
	if _, err := clock.Parse(cfg.DefaultWindowEnd); err != nil {
		return nil, fmt.Errorf("FEEDER_DEFAULT_WINDOW_END: %w", err)
	}

	switch cfg.Driver {
	case DriverSimulated:
	case DriverSerial:
		if cfg.SerialPort == "" {
			return nil, fmt.Errorf("FEEDER_SERIAL_PORT must be provided for the serial driver")
		}
	default:
		return nil, fmt.Errorf("unsupported motor driver %q", cfg.Driver)
	}

	if cfg.StepFrequencyHz <= 0 {
		return nil, fmt.Errorf("FEEDER_STEP_FREQUENCY_HZ must be positive, got %d", cfg.StepFrequencyHz)
	}

	switch cfg.DBBackend {
	case DatabaseNone:
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("FEEDER_DB_DSN must be provided when FEEDER_DB_BACKEND is %s", cfg.DBBackend)
		}
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.Driver == DriverSimulated {
		return nil, fmt.Errorf("FEEDER_DRIVER=simulated is not allowed in production")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// ScheduleServerConfig configures the standalone schedule source.
type ScheduleServerConfig struct {
	Environment  string
	Bind         string
	Port         int
	File         string
	StartHeader  string
	EndHeader    string
	DefaultStart string
	DefaultEnd   string
}

// LoadScheduleServer reads the schedule server's environment.
func LoadScheduleServer() (*ScheduleServerConfig, error) {
	cfg := &ScheduleServerConfig{
		Environment:  getEnvAny([]string{"FEEDER_ENV", "PETFEEDER_ENV"}, "development"),
		Bind:         getEnvAny([]string{"FEEDER_SCHEDULE_SERVER_BIND"}, "0.0.0.0"),
		Port:         getEnvIntAny([]string{"FEEDER_SCHEDULE_SERVER_PORT"}, 5000),
		File:         getEnvAny([]string{"FEEDER_SCHEDULE_FILE"}, "parameters.yaml"),
		StartHeader:  getEnvAny([]string{"FEEDER_SCHEDULE_START_HEADER"}, "X-Feed-Start"),
		EndHeader:    getEnvAny([]string{"FEEDER_SCHEDULE_END_HEADER"}, "X-Feed-End"),
		DefaultStart: getEnvAny([]string{"FEEDER_DEFAULT_WINDOW_START"}, "00:00:00"),
		DefaultEnd:   getEnvAny([]string{"FEEDER_DEFAULT_WINDOW_END"}, "00:00:00"),
	}

	if cfg.File == "" {
		return nil, fmt.Errorf("FEEDER_SCHEDULE_FILE must not be empty")
	}
	if cfg.StartHeader == "" || cfg.EndHeader == "" || strings.EqualFold(cfg.StartHeader, cfg.EndHeader) {
		return nil, fmt.Errorf("schedule start and end headers must be distinct and non-empty")
	}
	if _, err := clock.Parse(cfg.DefaultStart); err != nil {
		return nil, fmt.Errorf("FEEDER_DEFAULT_WINDOW_START: %w", err)
	}
	if _, err := clock.Parse(cfg.DefaultEnd); err != nil {
		return nil, fmt.Errorf("FEEDER_DEFAULT_WINDOW_END: %w", err)
	}
	return cfg, nil
}

// HTTPAddr returns the controller API listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// Addr returns the schedule server listen address.
func (c *ScheduleServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"PETFEEDER_ENV":          "use FEEDER_ENV",
		"PETFEEDER_HTTP_BIND":    "use FEEDER_HTTP_BIND",
		"PETFEEDER_HTTP_PORT":    "use FEEDER_HTTP_PORT",
		"PETFEEDER_TIME_URL":     "use FEEDER_TIME_URL",
		"PETFEEDER_SCHEDULE_URL": "use FEEDER_SCHEDULE_URL",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
