/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package motor drives the feeder's dispensing motor through a bounded
// instruction queue serviced by a single sequencer goroutine.
package motor

import (
	"errors"
	"time"
)

var (
	// ErrDriverFault indicates the motor driver rejected an operation. The
	// sequencer stops on the first fault.
	ErrDriverFault = errors.New("motor driver fault")

	// ErrSequencerFaulted is returned by Submit once the sequencer has stopped
	// because of a driver fault.
	ErrSequencerFaulted = errors.New("motor sequencer faulted")
)

const (
	// DefaultQueueCapacity is the minimum number of instructions the queue holds.
	DefaultQueueCapacity = 10

	// DefaultStepFrequencyHz is the step pulse frequency configured at startup.
	DefaultStepFrequencyHz = 300

	// RunningDutyCycle is the duty cycle, in percent, applied while a run is in progress.
	RunningDutyCycle = 50.0
)

// Instruction source labels.
const (
	SourceSchedule = "schedule"
	SourceManual   = "manual"
)

// Instruction is a single motor run request.
type Instruction struct {
	// ID identifies the instruction in events and history. Submit fills it in
	// when empty.
	ID string `json:"id"`

	// Duration is the number of seconds to drive the motor. Zero skips the
	// run and only applies the end-of-run state.
	Duration uint32 `json:"duration_seconds"`

	// BrakeAtEnd selects the driver state after the run. The name is
	// historical and reads inverted: false leaves the driver enabled so the
	// shaft holds position, true disables the driver and lets it coast.
	BrakeAtEnd bool `json:"brake_at_end"`

	// Source records who asked for the run (schedule or manual).
	Source string `json:"source"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// EndPhase reports the phase the sequencer settles in after this instruction.
func (i Instruction) EndPhase() Phase {
	if i.BrakeAtEnd {
		return PhaseCoasting
	}
	return PhaseHolding
}

// Phase is the motor sequencer's current activity.
type Phase int

const (
	// PhaseIdle means the sequencer is waiting for an instruction.
	PhaseIdle Phase = iota
	// PhaseRunning means the driver is enabled at the running duty cycle.
	PhaseRunning
	// PhaseHolding means the driver is enabled at zero duty, holding the shaft.
	PhaseHolding
	// PhaseCoasting means the driver is disabled at zero duty.
	PhaseCoasting
	// PhaseFaulted means a driver error stopped the sequencer.
	PhaseFaulted
)

// AllPhases lists every phase in declaration order.
var AllPhases = []Phase{PhaseIdle, PhaseRunning, PhaseHolding, PhaseCoasting, PhaseFaulted}

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseHolding:
		return "holding"
	case PhaseCoasting:
		return "coasting"
	case PhaseFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// DriverConfig is the static driver setup applied once before the first run.
type DriverConfig struct {
	FrequencyHz uint32
	Reverse     bool
}

// Driver is the hardware abstraction for the stepper driver: an enable line
// and a PWM step output.
type Driver interface {
	Configure(cfg DriverConfig) error
	Enable(on bool) error
	SetDutyCycle(percent float64) error
}

// Sleeper blocks for a duration. Tests substitute a fake to run the
// per-second countdown without waiting.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(d time.Duration)

// Sleep calls f(d).
func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// RealSleeper sleeps on the wall clock.
var RealSleeper Sleeper = SleeperFunc(time.Sleep)
