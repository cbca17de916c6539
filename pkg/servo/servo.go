// Package servo models the control surface of a hobby servo motor: logical
// position in percent, polarity, and a run/float command, mapped onto raw
// pulse widths through a per-device calibration.
package servo

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Calibration defaults and position bounds. Pulse widths follow the hobby
// servo convention where -100% is full counter-clockwise and 100% is full
// clockwise.
const (
	DefaultMinPulseMs = 600
	DefaultMidPulseMs = 1500
	DefaultMaxPulseMs = 2400

	MinPosition = -100
	MaxPosition = 100
)

// Legal calibration ranges. Writes outside these fail with
// ErrInvalidArgument.
const (
	minPulseLow  = 300
	minPulseHigh = 700
	midPulseLow  = 1300
	midPulseHigh = 1700
	maxPulseLow  = 2300
	maxPulseHigh = 2700
)

// Servo owns the logical state of one servo motor and arbitrates every
// call into its Backend. All state is guarded by a single mutex, so
// concurrent attribute readers and writers always observe fully-applied
// updates.
//
// State is committed only after the backend call succeeds. In particular a
// failed float->run transition leaves the command at "float".
type Servo struct {
	mu sync.Mutex

	backend  Backend
	portName string

	minPulseMs int
	midPulseMs int
	maxPulseMs int

	position int
	polarity Polarity
	command  Command
}

// New binds a Servo to a backend. It probes the backend's current pulse
// width to derive the initial command: 0 means the output is unpowered, so
// the servo starts floating; anything else starts it running. There is no
// way to recover a logical percentage from a raw probe, so position starts
// at 0 with normal polarity.
func New(backend Backend, portName string) (*Servo, error) {
	if backend == nil {
		return nil, pkgerrors.Wrap(ErrInvalidArgument, "backend must not be nil")
	}
	if portName == "" {
		return nil, pkgerrors.Wrap(ErrInvalidArgument, "port name must not be empty")
	}

	s := &Servo{
		backend:    backend,
		portName:   portName,
		minPulseMs: DefaultMinPulseMs,
		midPulseMs: DefaultMidPulseMs,
		maxPulseMs: DefaultMaxPulseMs,
		polarity:   PolarityNormal,
	}

	pulse, err := backend.GetPosition()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "initial position probe failed")
	}
	if pulse == 0 {
		s.command = CommandFloat
	} else {
		s.command = CommandRun
	}

	return s, nil
}

// Name returns the backend driver identifier.
func (s *Servo) Name() string {
	return s.backend.Name()
}

// PortName returns the connection identifier the servo is plugged in to.
func (s *Servo) PortName() string {
	return s.portName
}

// pulseFor maps a logical position to a pulse width. The polarity flips
// the sign first; the effective position then picks which calibration half
// to interpolate in, so 0% always lands exactly on the mid pulse.
func (s *Servo) pulseFor(position int, polarity Polarity) int {
	if polarity == PolarityInverted {
		position = -position
	}
	if position > 0 {
		return scale(0, MaxPosition, s.midPulseMs, s.maxPulseMs, position)
	}
	return scale(MinPosition, 0, s.minPulseMs, s.midPulseMs, position)
}

// SetPosition records a new logical position and polarity. While the
// command is "run" the scaled pulse width is sent to the backend first and
// the state is only committed if that call succeeds; while floating the
// state is recorded without touching the hardware.
func (s *Servo) SetPosition(position int, polarity Polarity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPositionLocked(position, polarity)
}

func (s *Servo) setPositionLocked(position int, polarity Polarity) error {
	if position < MinPosition || position > MaxPosition {
		return pkgerrors.Wrapf(ErrInvalidArgument, "position must be between %d and %d, got %d", MinPosition, MaxPosition, position)
	}

	if s.command == CommandRun {
		pulse := s.pulseFor(position, polarity)
		if err := s.backend.SetPosition(pulse); err != nil {
			return err
		}
		logrus.Debugf("servo %s: position %d%% (%s) -> %d ms", s.portName, position, polarity, pulse)
	}

	s.position = position
	s.polarity = polarity
	return nil
}

// Position reports the physical position in percent. A raw pulse width of
// 0 means the output is unpowered, in which case the last recorded logical
// position is returned instead. The result is deliberately not
// polarity-adjusted: it reports which side of neutral the output is
// physically on.
func (s *Servo) Position() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pulse, err := s.backend.GetPosition()
	if err != nil {
		return 0, err
	}
	if pulse == 0 {
		return s.position, nil
	}
	if pulse < s.midPulseMs {
		return scale(s.minPulseMs, s.midPulseMs, MinPosition, 0, pulse), nil
	}
	return scale(s.midPulseMs, s.maxPulseMs, 0, MaxPosition, pulse), nil
}

// SetCommand transitions between "run" and "float". Run re-applies the
// stored position and polarity; float commands pulse width 0, keeping the
// logical position. Requesting the current command is a no-op. The command
// is committed only after the backend call succeeds.
func (s *Servo) SetCommand(command Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if command == s.command {
		return nil
	}

	switch command {
	case CommandRun:
		if err := s.backend.SetPosition(s.pulseFor(s.position, s.polarity)); err != nil {
			return err
		}
	case CommandFloat:
		if err := s.backend.SetPosition(0); err != nil {
			return err
		}
	default:
		return pkgerrors.Wrapf(ErrInvalidArgument, "unknown command %q", command)
	}

	logrus.Debugf("servo %s: command %s -> %s", s.portName, s.command, command)
	s.command = command
	return nil
}

// SetPolarity changes the polarity. While running this re-actuates the
// stored position under the new polarity; while floating it only updates
// the stored value. Setting the current polarity again is a no-op.
func (s *Servo) SetPolarity(polarity Polarity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch polarity {
	case PolarityNormal, PolarityInverted:
	default:
		return pkgerrors.Wrapf(ErrInvalidArgument, "unknown polarity %q", polarity)
	}

	if polarity == s.polarity {
		return nil
	}
	return s.setPositionLocked(s.position, polarity)
}

// Command returns the current command.
func (s *Servo) Command() Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command
}

// Polarity returns the current polarity.
func (s *Servo) Polarity() Polarity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polarity
}

// LogicalPosition returns the last recorded position without querying the
// backend.
func (s *Servo) LogicalPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// MinPulseMs returns the calibrated minimum pulse width.
func (s *Servo) MinPulseMs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minPulseMs
}

// SetMinPulseMs sets the pulse width for the -100% position. Takes effect
// on the next position write.
func (s *Servo) SetMinPulseMs(v int) error {
	if v < minPulseLow || v > minPulseHigh {
		return pkgerrors.Wrapf(ErrInvalidArgument, "min pulse must be between %d and %d, got %d", minPulseLow, minPulseHigh, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minPulseMs = v
	return nil
}

// MidPulseMs returns the calibrated neutral pulse width.
func (s *Servo) MidPulseMs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.midPulseMs
}

// SetMidPulseMs sets the pulse width for the 0% position. Takes effect on
// the next position write.
func (s *Servo) SetMidPulseMs(v int) error {
	if v < midPulseLow || v > midPulseHigh {
		return pkgerrors.Wrapf(ErrInvalidArgument, "mid pulse must be between %d and %d, got %d", midPulseLow, midPulseHigh, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.midPulseMs = v
	return nil
}

// MaxPulseMs returns the calibrated maximum pulse width.
func (s *Servo) MaxPulseMs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxPulseMs
}

// SetMaxPulseMs sets the pulse width for the 100% position. Takes effect
// on the next position write.
func (s *Servo) SetMaxPulseMs(v int) error {
	if v < maxPulseLow || v > maxPulseHigh {
		return pkgerrors.Wrapf(ErrInvalidArgument, "max pulse must be between %d and %d, got %d", maxPulseLow, maxPulseHigh, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxPulseMs = v
	return nil
}

// Rate returns the travel rate from the backend. Controllers without rate
// control return ErrUnsupported.
func (s *Servo) Rate() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Rate()
}

// SetRate sets the travel rate on the backend. Controllers without rate
// control return ErrUnsupported.
func (s *Servo) SetRate(ms int) error {
	if ms < 0 {
		return pkgerrors.Wrapf(ErrInvalidArgument, "rate must not be negative, got %d", ms)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.SetRate(ms)
}
