package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/BaisilG/lego-linux-drivers/pkg/servo"
	"github.com/BaisilG/lego-linux-drivers/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		// The mock backend needs no hardware, so a fresh install can be
		// poked at before any controller is configured.
		Backend:            ptr.To(BackendMock),
		Port:               ptr.To("spi0"),
		MaestroChannel:     ptr.To(0),
		MinPulseMs:         ptr.To(servo.DefaultMinPulseMs),
		MidPulseMs:         ptr.To(servo.DefaultMidPulseMs),
		MaxPulseMs:         ptr.To(servo.DefaultMaxPulseMs),
		AllowNonRootAccess: ptr.To(false),
	}
)

var _ Config = &File{}

// File is a Config backed by a JSON file. Unset fields fall back to
// defaults, so configs written by older versions keep working.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads a file-backed config from configPath.
func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

// NewFileFromConfig wraps an already-parsed RawFileConfig.
func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk JSON shape. Pointer fields distinguish
// "unset" from zero values.
type RawFileConfig struct {
	Backend            *string `json:"backend,omitempty"`
	Port               *string `json:"port,omitempty"`
	MaestroChannel     *int    `json:"maestroChannel,omitempty"`
	MinPulseMs         *int    `json:"minPulseMs,omitempty"`
	MidPulseMs         *int    `json:"midPulseMs,omitempty"`
	MaxPulseMs         *int    `json:"maxPulseMs,omitempty"`
	AllowNonRootAccess *bool   `json:"allowNonRootAccess,omitempty"`
}

// NewRawFileConfigFromConfig snapshots a Config into its serializable form.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		Backend:            ptr.To(c.Backend()),
		Port:               ptr.To(c.Port()),
		MaestroChannel:     ptr.To(c.MaestroChannel()),
		MinPulseMs:         ptr.To(c.MinPulseMs()),
		MidPulseMs:         ptr.To(c.MidPulseMs()),
		MaxPulseMs:         ptr.To(c.MaxPulseMs()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
	}, nil
}

func (f *File) Backend() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Backend != nil {
		return *f.c.Backend
	}
	return *defaultFileConfig.Backend
}

func (f *File) Port() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Port != nil {
		return *f.c.Port
	}
	return *defaultFileConfig.Port
}

func (f *File) MaestroChannel() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.MaestroChannel != nil {
		return *f.c.MaestroChannel
	}
	return *defaultFileConfig.MaestroChannel
}

func (f *File) MinPulseMs() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.MinPulseMs != nil {
		return *f.c.MinPulseMs
	}
	return *defaultFileConfig.MinPulseMs
}

func (f *File) MidPulseMs() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.MidPulseMs != nil {
		return *f.c.MidPulseMs
	}
	return *defaultFileConfig.MidPulseMs
}

func (f *File) MaxPulseMs() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.MaxPulseMs != nil {
		return *f.c.MaxPulseMs
	}
	return *defaultFileConfig.MaxPulseMs
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.AllowNonRootAccess != nil {
		return *f.c.AllowNonRootAccess
	}
	return *defaultFileConfig.AllowNonRootAccess
}

func (f *File) SetBackend(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Backend = &s
}

func (f *File) SetPort(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Port = &s
}

func (f *File) SetMaestroChannel(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.MaestroChannel = &i
}

func (f *File) SetMinPulseMs(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.MinPulseMs = &i
}

func (f *File) SetMidPulseMs(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.MidPulseMs = &i
}

func (f *File) SetMaxPulseMs(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.MaxPulseMs = &i
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"backend":            f.Backend(),
		"port":               f.Port(),
		"maestroChannel":     f.MaestroChannel(),
		"minPulseMs":         f.MinPulseMs(),
		"midPulseMs":         f.MidPulseMs(),
		"maxPulseMs":         f.MaxPulseMs(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
