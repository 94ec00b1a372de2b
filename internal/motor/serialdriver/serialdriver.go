/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package serialdriver drives the feeder motor through a microcontroller
// bridge attached over a serial port.
//
// Each operation is a single ASCII line terminated by "\n":
//
//	C<frequency>,<direction>   configure step frequency (Hz) and direction (0 forward, 1 reverse)
//	E1 / E0                    enable / disable the driver
//	D<percent>                 set the PWM duty cycle
//
// The bridge answers every line with "OK" or "ERR <message>".
package serialdriver

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/friendsincode/petfeeder/internal/motor"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

var (
	// ErrNoReply indicates the bridge did not answer before the read timeout.
	ErrNoReply = errors.New("no reply from motor bridge")

	// ErrRejected indicates the bridge answered with ERR.
	ErrRejected = errors.New("motor bridge rejected command")
)

const defaultReplyTimeout = time.Second

// Port is the subset of serial.Port the driver uses.
type Port interface {
	io.ReadWriteCloser
}

// Driver implements motor.Driver over a serial line.
type Driver struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
	logger  zerolog.Logger
}

var _ motor.Driver = (*Driver)(nil)

// Open opens the named serial port at baud.
func Open(name string, baud int, logger zerolog.Logger) (*Driver, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	logger.Info().Str("port", name).Int("baud", baud).Msg("motor bridge connected")
	return New(port, logger), nil
}

// New wraps an already opened port.
func New(port Port, logger zerolog.Logger) *Driver {
	return &Driver{
		port:    port,
		timeout: defaultReplyTimeout,
		logger:  logger.With().Str("component", "motor_driver").Str("driver", "serial").Logger(),
	}
}

// SetReplyTimeout changes how long the driver waits for a reply line.
func (d *Driver) SetReplyTimeout(timeout time.Duration) {
	d.mu.Lock()
	d.timeout = timeout
	d.mu.Unlock()
}

// Configure sends the step frequency and direction.
func (d *Driver) Configure(cfg motor.DriverConfig) error {
	direction := 0
	if cfg.Reverse {
		direction = 1
	}
	return d.command(fmt.Sprintf("C%d,%d", cfg.FrequencyHz, direction))
}

// Enable toggles the driver enable line.
func (d *Driver) Enable(on bool) error {
	if on {
		return d.command("E1")
	}
	return d.command("E0")
}

// SetDutyCycle sets the PWM duty cycle in percent.
func (d *Driver) SetDutyCycle(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("duty cycle %.1f out of range", percent)
	}
	return d.command(fmt.Sprintf("D%g", percent))
}

// Close releases the serial port.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}

func (d *Driver) command(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write %q: %w", line, err)
	}

	reply, err := d.readLine()
	if err != nil {
		return fmt.Errorf("command %q: %w", line, err)
	}

	d.logger.Debug().Str("command", line).Str("reply", reply).Msg("motor bridge exchange")

	switch {
	case reply == "OK":
		return nil
	case strings.HasPrefix(reply, "ERR"):
		return fmt.Errorf("command %q: %w: %s", line, ErrRejected, strings.TrimSpace(strings.TrimPrefix(reply, "ERR")))
	default:
		return fmt.Errorf("command %q: unexpected reply %q", line, reply)
	}
}

// readLine reads until "\n" or the reply timeout. The serial port returns
// zero bytes with a nil error when its own read timeout elapses.
func (d *Driver) readLine() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	deadline := time.Now().Add(d.timeout)

	for time.Now().Before(deadline) {
		n, err := d.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read reply: %w", err)
		}
		if n == 0 {
			continue
		}
		if buf[0] == '\n' {
			return strings.TrimRight(sb.String(), "\r\x00"), nil
		}
		sb.WriteByte(buf[0])
	}
	return "", ErrNoReply
}
