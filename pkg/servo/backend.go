package servo

// Backend is the hardware layer that actually drives the pulse line. A
// pulse width of 0 means the output is unpowered (no signal).
//
// Rate control is optional: controllers that cannot limit travel speed
// return ErrUnsupported from Rate and SetRate instead of leaving the
// methods out.
type Backend interface {
	// Name returns the driver identifier of the controller.
	Name() string
	// SetPosition commands a raw pulse width in milliseconds, or 0 to
	// remove power.
	SetPosition(pulseMs int) error
	// GetPosition returns the currently commanded pulse width in
	// milliseconds, or 0 if the output is unpowered.
	GetPosition() (int, error)
	// Rate returns the travel rate in milliseconds per half sweep.
	Rate() (int, error)
	// SetRate sets the travel rate in milliseconds per half sweep.
	SetRate(ms int) error
}
