/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package motor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning indicates Run was called on a sequencer that is already consuming.
var ErrAlreadyRunning = errors.New("motor sequencer already running")

// Config controls the sequencer's queue and driver setup.
type Config struct {
	QueueCapacity int
	Driver        DriverConfig
}

// Status is a point-in-time view of the sequencer.
type Status struct {
	Phase         Phase        `json:"phase"`
	Current       *Instruction `json:"current,omitempty"`
	Remaining     uint32       `json:"remaining_seconds"`
	QueueDepth    int          `json:"queue_depth"`
	QueueCapacity int          `json:"queue_capacity"`
	DriverEnabled bool         `json:"driver_enabled"`
	DutyCycle     float64      `json:"duty_cycle"`
	Completed     uint64       `json:"completed"`
	Fault         string       `json:"fault,omitempty"`
}

// Sequencer is the only owner of the motor driver. It takes instructions
// off a bounded queue and runs each one to completion before the next.
type Sequencer struct {
	driver  Driver
	cfg     Config
	queue   chan Instruction
	bus     events.Publisher
	sleeper Sleeper
	logger  zerolog.Logger

	faultOnce sync.Once
	faulted   chan struct{}

	mu        sync.RWMutex
	running   bool
	phase     Phase
	current   *Instruction
	remaining uint32
	enabled   bool
	duty      float64
	completed uint64
	fault     error
}

// NewSequencer creates a sequencer for driver. Capacities below
// DefaultQueueCapacity are raised to it.
func NewSequencer(driver Driver, cfg Config, bus events.Publisher, logger zerolog.Logger) *Sequencer {
	if cfg.QueueCapacity < DefaultQueueCapacity {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Driver.FrequencyHz == 0 {
		cfg.Driver.FrequencyHz = DefaultStepFrequencyHz
	}

	return &Sequencer{
		driver:  driver,
		cfg:     cfg,
		queue:   make(chan Instruction, cfg.QueueCapacity),
		bus:     bus,
		sleeper: RealSleeper,
		logger:  logger.With().Str("component", "motor").Logger(),
		faulted: make(chan struct{}),
		phase:   PhaseIdle,
	}
}

// SetSleeper replaces the sleeper used for the per-second countdown.
func (s *Sequencer) SetSleeper(sleeper Sleeper) {
	s.sleeper = sleeper
}

// Submit enqueues an instruction. When the queue is full it blocks until
// the sequencer drains a slot, ctx is done, or the sequencer faults.
func (s *Sequencer) Submit(ctx context.Context, instr Instruction) error {
	if err := s.Fault(); err != nil {
		return fmt.Errorf("%w: %w", ErrSequencerFaulted, err)
	}

	if instr.ID == "" {
		instr.ID = uuid.NewString()
	}
	if instr.Source == "" {
		instr.Source = SourceManual
	}
	if instr.SubmittedAt.IsZero() {
		instr.SubmittedAt = time.Now().UTC()
	}

	select {
	case s.queue <- instr:
	case <-s.faulted:
		return fmt.Errorf("%w: %w", ErrSequencerFaulted, s.Fault())
	case <-ctx.Done():
		return fmt.Errorf("submit motor instruction: %w", ctx.Err())
	}

	telemetry.MotorQueueDepth.Set(float64(len(s.queue)))
	telemetry.FeedsTriggeredTotal.WithLabelValues(instr.Source).Inc()

	s.logger.Info().
		Str("instruction_id", instr.ID).
		Str("source", instr.Source).
		Uint32("duration_seconds", instr.Duration).
		Bool("brake_at_end", instr.BrakeAtEnd).
		Msg("motor instruction queued")

	events.Publish(s.bus, events.EventFeedTriggered, events.Payload{
		"instruction_id":   instr.ID,
		"source":           instr.Source,
		"duration_seconds": instr.Duration,
		"brake_at_end":     instr.BrakeAtEnd,
		"submitted_at":     instr.SubmittedAt,
	})
	return nil
}

// Run configures the driver and consumes instructions until ctx is done or
// the driver faults. A run in progress is always finished before Run
// returns; cancellation is only observed between instructions.
func (s *Sequencer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.initialize(); err != nil {
		s.fail(nil, err)
		return err
	}

	s.logger.Info().
		Int("queue_capacity", s.cfg.QueueCapacity).
		Uint32("frequency_hz", s.cfg.Driver.FrequencyHz).
		Bool("reverse", s.cfg.Driver.Reverse).
		Msg("motor sequencer started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Int("pending", len(s.queue)).Msg("motor sequencer stopping")
			return ctx.Err()
		case instr := <-s.queue:
			telemetry.MotorQueueDepth.Set(float64(len(s.queue)))
			if err := s.execute(ctx, instr); err != nil {
				s.fail(&instr, err)
				return err
			}
		}
	}
}

func (s *Sequencer) initialize() error {
	if err := s.driver.Configure(s.cfg.Driver); err != nil {
		return driverError("configure", err)
	}
	if err := s.setDuty(0); err != nil {
		return err
	}
	return s.setEnabled(false)
}

func (s *Sequencer) execute(ctx context.Context, instr Instruction) error {
	_, span := telemetry.StartSpan(context.WithoutCancel(ctx), "motor", "motor.run")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{
		"instruction_id":   instr.ID,
		"source":           instr.Source,
		"duration_seconds": int64(instr.Duration),
		"brake_at_end":     instr.BrakeAtEnd,
	})

	startedAt := time.Now().UTC()
	logger := s.logger.With().Str("instruction_id", instr.ID).Logger()

	s.mu.Lock()
	s.current = &instr
	s.remaining = instr.Duration
	s.mu.Unlock()

	if instr.Duration > 0 {
		if err := s.setEnabled(true); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		if err := s.setDuty(RunningDutyCycle); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		s.transition(PhaseRunning, instr)
		logger.Info().Uint32("duration_seconds", instr.Duration).Msg("motor running")

		for remaining := instr.Duration; remaining > 0; {
			s.sleeper.Sleep(time.Second)
			remaining--
			s.mu.Lock()
			s.remaining = remaining
			s.mu.Unlock()
			telemetry.MotorRunSecondsTotal.Inc()
		}
	}

	if err := s.setEnabled(!instr.BrakeAtEnd); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := s.setDuty(0); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	end := instr.EndPhase()
	s.transition(end, instr)

	finishedAt := time.Now().UTC()
	s.mu.Lock()
	s.completed++
	s.current = nil
	s.remaining = 0
	s.mu.Unlock()

	telemetry.MotorInstructionsTotal.WithLabelValues(instr.Source, "completed").Inc()
	logger.Info().
		Str("end_phase", end.String()).
		Dur("elapsed", finishedAt.Sub(startedAt)).
		Msg("motor instruction completed")

	events.Publish(s.bus, events.EventMotorCompleted, events.Payload{
		"instruction_id":   instr.ID,
		"source":           instr.Source,
		"duration_seconds": instr.Duration,
		"brake_at_end":     instr.BrakeAtEnd,
		"end_phase":        end.String(),
		"submitted_at":     instr.SubmittedAt,
		"started_at":       startedAt,
		"finished_at":      finishedAt,
	})

	s.transition(PhaseIdle, instr)
	return nil
}

// fail records err as the terminal fault and makes a best-effort attempt to
// leave the driver stopped and disabled.
func (s *Sequencer) fail(instr *Instruction, err error) {
	s.faultOnce.Do(func() {
		s.mu.Lock()
		s.fault = err
		s.phase = PhaseFaulted
		s.current = nil
		s.mu.Unlock()
		close(s.faulted)

		telemetry.MotorDriverFaultsTotal.Inc()
		telemetry.SetMotorPhase(PhaseFaulted.String(), phaseLabels())

		if stopErr := s.driver.SetDutyCycle(0); stopErr != nil {
			s.logger.Warn().Err(stopErr).Msg("safe stop: zero duty failed")
		}
		if stopErr := s.driver.Enable(false); stopErr != nil {
			s.logger.Warn().Err(stopErr).Msg("safe stop: disable failed")
		}

		payload := events.Payload{"error": err.Error()}
		if instr != nil {
			payload["instruction_id"] = instr.ID
			payload["source"] = instr.Source
			telemetry.MotorInstructionsTotal.WithLabelValues(instr.Source, "faulted").Inc()
		}
		events.Publish(s.bus, events.EventMotorFault, payload)

		s.logger.Error().Err(err).Msg("motor driver fault, sequencer halted")
	})
}

func (s *Sequencer) transition(next Phase, instr Instruction) {
	s.mu.Lock()
	prev := s.phase
	s.phase = next
	s.mu.Unlock()

	telemetry.SetMotorPhase(next.String(), phaseLabels())
	s.logger.Debug().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("motor phase transition")

	events.Publish(s.bus, events.EventMotorPhase, events.Payload{
		"instruction_id": instr.ID,
		"from":           prev.String(),
		"to":             next.String(),
	})
}

func (s *Sequencer) setEnabled(on bool) error {
	if err := s.driver.Enable(on); err != nil {
		return driverError("enable", err)
	}
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
	return nil
}

func (s *Sequencer) setDuty(percent float64) error {
	if err := s.driver.SetDutyCycle(percent); err != nil {
		return driverError("set duty cycle", err)
	}
	s.mu.Lock()
	s.duty = percent
	s.mu.Unlock()
	return nil
}

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Fault returns the error that halted the sequencer, or nil.
func (s *Sequencer) Fault() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fault
}

// QueueDepth returns the number of instructions waiting.
func (s *Sequencer) QueueDepth() int {
	return len(s.queue)
}

// Status returns a snapshot of the sequencer.
func (s *Sequencer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Phase:         s.phase,
		Remaining:     s.remaining,
		QueueDepth:    len(s.queue),
		QueueCapacity: cap(s.queue),
		DriverEnabled: s.enabled,
		DutyCycle:     s.duty,
		Completed:     s.completed,
	}
	if s.current != nil {
		current := *s.current
		st.Current = &current
	}
	if s.fault != nil {
		st.Fault = s.fault.Error()
	}
	return st
}

func driverError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDriverFault, op, err)
}

func phaseLabels() []string {
	labels := make([]string, len(AllPhases))
	for i, p := range AllPhases {
		labels[i] = p.String()
	}
	return labels
}
