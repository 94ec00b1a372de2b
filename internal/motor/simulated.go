/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package motor

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// SimulatedDriver is an in-memory driver for running the feeder without
// hardware. It logs every operation and keeps the last applied state.
type SimulatedDriver struct {
	logger zerolog.Logger

	mu         sync.RWMutex
	cfg        DriverConfig
	configured bool
	enabled    bool
	duty       float64
}

// NewSimulatedDriver creates a simulated driver.
func NewSimulatedDriver(logger zerolog.Logger) *SimulatedDriver {
	return &SimulatedDriver{
		logger: logger.With().Str("component", "motor_driver").Str("driver", "simulated").Logger(),
	}
}

// Configure records the driver setup.
func (d *SimulatedDriver) Configure(cfg DriverConfig) error {
	d.mu.Lock()
	d.cfg = cfg
	d.configured = true
	d.mu.Unlock()

	d.logger.Debug().Uint32("frequency_hz", cfg.FrequencyHz).Bool("reverse", cfg.Reverse).Msg("configure")
	return nil
}

// Enable sets the enable line.
func (d *SimulatedDriver) Enable(on bool) error {
	d.mu.Lock()
	d.enabled = on
	d.mu.Unlock()

	d.logger.Debug().Bool("enabled", on).Msg("enable")
	return nil
}

// SetDutyCycle sets the PWM duty cycle in percent.
func (d *SimulatedDriver) SetDutyCycle(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("duty cycle %.1f out of range", percent)
	}
	d.mu.Lock()
	d.duty = percent
	d.mu.Unlock()

	d.logger.Debug().Float64("duty_cycle", percent).Msg("set duty cycle")
	return nil
}

// Enabled reports the enable line state.
func (d *SimulatedDriver) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// DutyCycle reports the last applied duty cycle.
func (d *SimulatedDriver) DutyCycle() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.duty
}

// Config returns the applied configuration and whether Configure has run.
func (d *SimulatedDriver) Config() (DriverConfig, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg, d.configured
}
