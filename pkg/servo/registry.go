package servo

import (
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Registry tracks bound servos and owns the device-name allocator. Names
// are "motor<N>" where N increases per registration and is never reused,
// so a name always refers to the same binding for the registry's lifetime.
type Registry struct {
	mu      sync.Mutex
	nextID  int
	devices map[string]*Servo
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Servo),
	}
}

// Register binds a backend to a new Servo and allocates its device name.
// Registration fails if the port name is empty, the backend is nil, or the
// initial position probe fails.
func (r *Registry) Register(backend Backend, portName string) (string, *Servo, error) {
	s, err := New(backend, portName)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := fmt.Sprintf("motor%d", r.nextID)
	r.nextID++
	r.devices[name] = s

	logrus.WithFields(logrus.Fields{
		"device": name,
		"driver": s.Name(),
		"port":   portName,
	}).Info("servo registered")

	return name, s, nil
}

// Get looks up a servo by device name.
func (r *Registry) Get(name string) (*Servo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.devices[name]
	return s, ok
}

// Unregister removes a servo. Its state is dropped with it.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[name]; !ok {
		return pkgerrors.Wrapf(ErrInvalidArgument, "unknown device %q", name)
	}
	delete(r.devices, name)

	logrus.WithField("device", name).Info("servo unregistered")
	return nil
}

// Names returns the registered device names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
