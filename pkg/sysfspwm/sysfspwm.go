// Package sysfspwm drives a servo through the Linux sysfs PWM interface
// (/sys/class/pwm). The kernel generates the waveform; this backend only
// writes duty-cycle values, so rate control is not available.
package sysfspwm

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/BaisilG/lego-linux-drivers/pkg/servo"
)

// Hobby servos expect a 50 Hz signal.
const defaultPeriodNs = 20 * 1000 * 1000

var _ servo.Backend = &PWM{}

// PWM is a servo.Backend bound to one exported sysfs PWM channel, e.g.
// /sys/class/pwm/pwmchip0/pwm0.
type PWM struct {
	mu  sync.Mutex
	dir string
}

// Open binds to an already-exported PWM channel directory and programs
// the servo signal period.
func Open(dir string) (*PWM, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, pkgerrors.Wrapf(err, "pwm channel %s not available", dir)
	}

	p := &PWM{dir: dir}
	if err := p.writeAttr("period", defaultPeriodNs); err != nil {
		return nil, err
	}

	logrus.WithField("dir", dir).Info("sysfs pwm channel bound")
	return p, nil
}

// Name implements servo.Backend.
func (p *PWM) Name() string {
	return "sysfs-pwm"
}

// SetPosition implements servo.Backend. Pulse 0 disables the output
// entirely instead of writing a zero-width duty cycle.
func (p *PWM) SetPosition(pulseMs int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pulseMs == 0 {
		if err := p.writeAttr("duty_cycle", 0); err != nil {
			return err
		}
		return p.writeAttr("enable", 0)
	}

	if err := p.writeAttr("duty_cycle", pulseMs*1000); err != nil {
		return err
	}
	return p.writeAttr("enable", 1)
}

// GetPosition implements servo.Backend. A disabled output reads as 0.
func (p *PWM) GetPosition() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	enabled, err := p.readAttr("enable")
	if err != nil {
		return 0, err
	}
	if enabled == 0 {
		return 0, nil
	}

	dutyNs, err := p.readAttr("duty_cycle")
	if err != nil {
		return 0, err
	}
	return dutyNs / 1000, nil
}

// Rate implements servo.Backend.
func (p *PWM) Rate() (int, error) {
	return 0, servo.ErrUnsupported
}

// SetRate implements servo.Backend.
func (p *PWM) SetRate(int) error {
	return servo.ErrUnsupported
}

func (p *PWM) writeAttr(attr string, value int) error {
	path := filepath.Join(p.dir, attr)
	if err := os.WriteFile(path, []byte(strconv.Itoa(value)), 0644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func (p *PWM) readAttr(attr string) (int, error) {
	path := filepath.Join(p.dir, attr)
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to read %s", path)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "unexpected contents in %s", path)
	}
	return v, nil
}
