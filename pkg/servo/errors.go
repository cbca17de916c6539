package servo

import "errors"

var (
	// ErrInvalidArgument is returned when an attribute write is malformed
	// or out of its legal range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported is returned when the controller does not implement an
	// optional capability, such as rate control.
	ErrUnsupported = errors.New("not supported by this controller")
)
