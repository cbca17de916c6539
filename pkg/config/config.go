package config

import "github.com/sirupsen/logrus"

// Config is the daemon configuration: which controller backend to bind at
// startup and the initial calibration to program into it.
type Config interface {
	Backend() string
	Port() string
	MaestroChannel() int
	MinPulseMs() int
	MidPulseMs() int
	MaxPulseMs() int
	AllowNonRootAccess() bool

	SetBackend(string)
	SetPort(string)
	SetMaestroChannel(int)
	SetMinPulseMs(int)
	SetMidPulseMs(int)
	SetMaxPulseMs(int)
	SetAllowNonRootAccess(bool)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}

// Known backend kinds.
const (
	BackendMock    = "mock"
	BackendMaestro = "maestro"
	BackendPWM     = "pwm"
)
