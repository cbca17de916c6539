// Package maestro drives a Pololu Maestro style serial servo controller
// using the compact protocol. The Maestro has native speed limiting, so
// this backend supports rate control.
package maestro

import (
	"io"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/BaisilG/lego-linux-drivers/pkg/servo"
)

const (
	cmdSetTarget   = 0x84
	cmdSetSpeed    = 0x87
	cmdGetPosition = 0x90

	// The compact protocol carries pulse widths in quarter-microseconds.
	quartersPerMs = 4

	// Speed units are quarter-microseconds per 10 ms. A half sweep with
	// the default calibration is 900 us, so rate (ms per half sweep)
	// converts as units = 900 * 4 * 10 / rate.
	halfSweepQuarters = 900 * quartersPerMs

	maxSpeedUnits = 0x3fff
)

// Config selects the serial device and servo channel.
type Config struct {
	Device  string
	Baud    int
	Channel int
}

var _ servo.Backend = &Maestro{}

// Maestro is a servo.Backend speaking the compact serial protocol.
type Maestro struct {
	mu      sync.Mutex
	rw      io.ReadWriteCloser
	channel byte

	// The protocol has no command to read the speed back, so the last
	// written rate is cached here. 0 means unlimited.
	rateMs int
}

// Open connects to the controller.
func Open(cfg Config) (*Maestro, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.Channel < 0 || cfg.Channel > 23 {
		return nil, pkgerrors.Wrapf(servo.ErrInvalidArgument, "maestro channel must be between 0 and 23, got %d", cfg.Channel)
	}

	port, err := serial.OpenPort(&serial.Config{Name: cfg.Device, Baud: cfg.Baud})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open serial device %s", cfg.Device)
	}

	logrus.WithFields(logrus.Fields{
		"device":  cfg.Device,
		"baud":    cfg.Baud,
		"channel": cfg.Channel,
	}).Info("maestro controller connected")

	return &Maestro{
		rw:      port,
		channel: byte(cfg.Channel),
	}, nil
}

// Close closes the serial port.
func (m *Maestro) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rw.Close()
}

// Name implements servo.Backend.
func (m *Maestro) Name() string {
	return "pololu-maestro"
}

// SetPosition implements servo.Backend. Pulse 0 sets target 0, which the
// Maestro treats as "stop sending pulses".
func (m *Maestro) SetPosition(pulseMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := setTargetFrame(m.channel, pulseMs*quartersPerMs)
	if _, err := m.rw.Write(frame); err != nil {
		return pkgerrors.Wrap(err, "failed to write set-target frame")
	}
	return nil
}

// GetPosition implements servo.Backend.
func (m *Maestro) GetPosition() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.rw.Write([]byte{cmdGetPosition, m.channel}); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to write get-position frame")
	}

	var resp [2]byte
	if _, err := io.ReadFull(m.rw, resp[:]); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to read get-position response")
	}

	quarters := int(resp[0]) | int(resp[1])<<8
	return quarters / quartersPerMs, nil
}

// Rate implements servo.Backend.
func (m *Maestro) Rate() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rateMs, nil
}

// SetRate implements servo.Backend.
func (m *Maestro) SetRate(ms int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := setSpeedFrame(m.channel, speedUnits(ms))
	if _, err := m.rw.Write(frame); err != nil {
		return pkgerrors.Wrap(err, "failed to write set-speed frame")
	}
	m.rateMs = ms
	return nil
}

// speedUnits converts a rate in ms per half sweep to Maestro speed units.
// Rate 0 means unlimited, which the Maestro also expresses as 0.
func speedUnits(rateMs int) int {
	if rateMs <= 0 {
		return 0
	}
	units := halfSweepQuarters * 10 / rateMs
	if units < 1 {
		units = 1
	}
	if units > maxSpeedUnits {
		units = maxSpeedUnits
	}
	return units
}

// setTargetFrame encodes a compact-protocol set-target command. The
// 14-bit payload is split into two 7-bit bytes, low first.
func setTargetFrame(channel byte, target int) []byte {
	return []byte{cmdSetTarget, channel, byte(target & 0x7f), byte((target >> 7) & 0x7f)}
}

// setSpeedFrame encodes a compact-protocol set-speed command.
func setSpeedFrame(channel byte, units int) []byte {
	return []byte{cmdSetSpeed, channel, byte(units & 0x7f), byte((units >> 7) & 0x7f)}
}
