package servo

import pkgerrors "github.com/pkg/errors"

// Command tells the servo whether to actively drive to its position or to
// remove power from the motor.
type Command string

const (
	// CommandRun drives the servo to the position attribute.
	CommandRun Command = "run"
	// CommandFloat removes power from the motor. The logical position is
	// kept, so a later "run" returns the servo to where it was commanded.
	CommandFloat Command = "float"
)

// ParseCommand maps an attribute token to a Command.
func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CommandRun:
		return CommandRun, nil
	case CommandFloat:
		return CommandFloat, nil
	}
	return "", pkgerrors.Wrapf(ErrInvalidArgument, "unknown command %q, must be %q or %q", s, CommandRun, CommandFloat)
}

// Polarity controls which rotation direction positive positions map to.
type Polarity string

const (
	// PolarityNormal maps -100% to the minimum pulse and 100% to the maximum.
	PolarityNormal Polarity = "normal"
	// PolarityInverted flips the sign of the position before scaling, so
	// 100% maps to the minimum pulse and -100% to the maximum.
	PolarityInverted Polarity = "inverted"
)

// ParsePolarity maps an attribute token to a Polarity.
func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(s) {
	case PolarityNormal:
		return PolarityNormal, nil
	case PolarityInverted:
		return PolarityInverted, nil
	}
	return "", pkgerrors.Wrapf(ErrInvalidArgument, "unknown polarity %q, must be %q or %q", s, PolarityNormal, PolarityInverted)
}
