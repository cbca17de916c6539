package servo

import (
	"errors"
	"testing"
)

var errBus = errors.New("bus error")

func newRunningServo(t *testing.T) (*Servo, *MockBackend) {
	t.Helper()
	// Nonzero probe result means the servo starts in "run".
	b := NewMockBackend("test-controller", DefaultMidPulseMs)
	s, err := New(b, "port0")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, b
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, "port0"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil backend: got %v, want ErrInvalidArgument", err)
	}
	if _, err := New(NewMockBackend("c", 0), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty port: got %v, want ErrInvalidArgument", err)
	}
}

func TestNewDerivesCommand(t *testing.T) {
	tests := []struct {
		name    string
		pulseMs int
		want    Command
	}{
		{name: "unpowered output starts floating", pulseMs: 0, want: CommandFloat},
		{name: "driven output starts running", pulseMs: 1500, want: CommandRun},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(NewMockBackend("c", tt.pulseMs), "port0")
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := s.Command(); got != tt.want {
				t.Errorf("Command() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewProbeFailureAborts(t *testing.T) {
	b := NewMockBackend("c", 0)
	b.FailNext(errBus)
	if _, err := New(b, "port0"); !errors.Is(err, errBus) {
		t.Errorf("got %v, want probe error propagated", err)
	}
}

func TestSetPositionScaling(t *testing.T) {
	tests := []struct {
		name      string
		position  int
		polarity  Polarity
		wantPulse int
	}{
		{name: "full clockwise", position: 100, polarity: PolarityNormal, wantPulse: 2400},
		{name: "full counter-clockwise", position: -100, polarity: PolarityNormal, wantPulse: 600},
		{name: "neutral", position: 0, polarity: PolarityNormal, wantPulse: 1500},
		{name: "half clockwise", position: 50, polarity: PolarityNormal, wantPulse: 1950},
		{name: "inverted flips full sweep", position: 100, polarity: PolarityInverted, wantPulse: 600},
		{name: "inverted flips half sweep", position: 50, polarity: PolarityInverted, wantPulse: 1050},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, b := newRunningServo(t)
			if err := s.SetPosition(tt.position, tt.polarity); err != nil {
				t.Fatalf("SetPosition failed: %v", err)
			}
			calls := b.SetCalls()
			if len(calls) != 1 || calls[0] != tt.wantPulse {
				t.Errorf("backend got %v, want one call with %d", calls, tt.wantPulse)
			}
		})
	}
}

func TestSetPositionOutOfRange(t *testing.T) {
	s, b := newRunningServo(t)
	if err := s.SetPosition(42, PolarityNormal); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	for _, bad := range []int{101, -101, 1000} {
		if err := s.SetPosition(bad, PolarityNormal); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetPosition(%d): got %v, want ErrInvalidArgument", bad, err)
		}
	}

	if got := s.LogicalPosition(); got != 42 {
		t.Errorf("position changed to %d after rejected writes, want 42", got)
	}
	if calls := b.SetCalls(); len(calls) != 1 {
		t.Errorf("backend called %d times, want 1", len(calls))
	}
}

func TestSetPositionWhileFloating(t *testing.T) {
	b := NewMockBackend("c", 0)
	s, err := New(b, "port0")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.SetPosition(50, PolarityNormal); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}
	if calls := b.SetCalls(); len(calls) != 0 {
		t.Errorf("backend actuated while floating: %v", calls)
	}

	// The backend reports 0 while unpowered, so reads fall back to the
	// recorded logical position.
	got, err := s.Position()
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if got != 50 {
		t.Errorf("Position() = %d, want stored 50", got)
	}
}

func TestSetPositionBackendFailureRollsBack(t *testing.T) {
	s, b := newRunningServo(t)
	if err := s.SetPosition(10, PolarityNormal); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	b.FailNext(errBus)
	if err := s.SetPosition(90, PolarityInverted); !errors.Is(err, errBus) {
		t.Fatalf("got %v, want backend error propagated", err)
	}
	if got := s.LogicalPosition(); got != 10 {
		t.Errorf("position committed despite backend failure: %d", got)
	}
	if got := s.Polarity(); got != PolarityNormal {
		t.Errorf("polarity committed despite backend failure: %s", got)
	}
}

func TestCommandTransitions(t *testing.T) {
	s, b := newRunningServo(t)
	if err := s.SetPosition(50, PolarityNormal); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	// run -> float commands pulse width 0 directly.
	if err := s.SetCommand(CommandFloat); err != nil {
		t.Fatalf("SetCommand(float) failed: %v", err)
	}
	calls := b.SetCalls()
	if calls[len(calls)-1] != 0 {
		t.Errorf("float did not command pulse 0: %v", calls)
	}
	if got := s.LogicalPosition(); got != 50 {
		t.Errorf("float dropped logical position: %d", got)
	}

	// Self-transition must not touch the backend.
	before := len(b.SetCalls())
	if err := s.SetCommand(CommandFloat); err != nil {
		t.Fatalf("SetCommand(float) again failed: %v", err)
	}
	if got := len(b.SetCalls()); got != before {
		t.Errorf("self-transition touched the backend: %d calls, want %d", got, before)
	}

	// float -> run re-applies the stored position.
	if err := s.SetCommand(CommandRun); err != nil {
		t.Fatalf("SetCommand(run) failed: %v", err)
	}
	calls = b.SetCalls()
	if calls[len(calls)-1] != 1950 {
		t.Errorf("run did not re-apply stored position: %v", calls)
	}
}

func TestFailedRunTransitionStaysFloating(t *testing.T) {
	b := NewMockBackend("c", 0)
	s, err := New(b, "port0")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.FailNext(errBus)
	if err := s.SetCommand(CommandRun); !errors.Is(err, errBus) {
		t.Fatalf("got %v, want backend error propagated", err)
	}
	if got := s.Command(); got != CommandFloat {
		t.Errorf("command = %s after failed transition, want float", got)
	}
}

func TestSetPolarity(t *testing.T) {
	s, b := newRunningServo(t)
	if err := s.SetPosition(50, PolarityNormal); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	// While running, a polarity change re-actuates immediately.
	if err := s.SetPolarity(PolarityInverted); err != nil {
		t.Fatalf("SetPolarity failed: %v", err)
	}
	calls := b.SetCalls()
	if calls[len(calls)-1] != 1050 {
		t.Errorf("inverted re-actuation commanded %v, want 1050", calls)
	}

	// Same polarity again is a no-op.
	before := len(b.SetCalls())
	if err := s.SetPolarity(PolarityInverted); err != nil {
		t.Fatalf("SetPolarity failed: %v", err)
	}
	if got := len(b.SetCalls()); got != before {
		t.Errorf("no-op polarity write touched the backend")
	}

	if err := s.SetPolarity("sideways"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad polarity: got %v, want ErrInvalidArgument", err)
	}
}

func TestSetPolarityWhileFloating(t *testing.T) {
	b := NewMockBackend("c", 0)
	s, err := New(b, "port0")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.SetPolarity(PolarityInverted); err != nil {
		t.Fatalf("SetPolarity failed: %v", err)
	}
	if calls := b.SetCalls(); len(calls) != 0 {
		t.Errorf("polarity change actuated while floating: %v", calls)
	}
	if got := s.Polarity(); got != PolarityInverted {
		t.Errorf("polarity = %s, want inverted", got)
	}

	// The stored polarity applies on the next run transition.
	if err := s.SetCommand(CommandRun); err != nil {
		t.Fatalf("SetCommand(run) failed: %v", err)
	}
	calls := b.SetCalls()
	if len(calls) != 1 || calls[0] != 1500 {
		t.Errorf("run commanded %v, want [1500]", calls)
	}
}

func TestPositionReadIsPhysical(t *testing.T) {
	type args struct {
		rawPulse int
		polarity Polarity
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{name: "below mid reads negative", args: args{1050, PolarityNormal}, want: -50},
		{name: "above mid reads positive", args: args{1950, PolarityNormal}, want: 50},
		{name: "exactly mid reads zero", args: args{1500, PolarityNormal}, want: 0},
		{name: "minimum pulse reads -100", args: args{600, PolarityNormal}, want: -100},
		{name: "maximum pulse reads 100", args: args{2400, PolarityNormal}, want: 100},
		// Reads report the physical side of neutral and ignore polarity.
		{name: "inverted polarity does not flip reads", args: args{1950, PolarityInverted}, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, b := newRunningServo(t)
			if err := s.SetPolarity(tt.args.polarity); err != nil {
				t.Fatalf("SetPolarity failed: %v", err)
			}
			if err := b.SetPosition(tt.args.rawPulse); err != nil {
				t.Fatalf("backend SetPosition failed: %v", err)
			}
			got, err := s.Position()
			if err != nil {
				t.Fatalf("Position failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Position() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalibrationValidation(t *testing.T) {
	type bounds struct {
		set      func(*Servo, int) error
		get      func(*Servo) int
		valid    int
		tooLow   int
		tooHigh  int
		fallback int
	}
	tests := []struct {
		name string
		b    bounds
	}{
		{
			name: "min pulse",
			b: bounds{
				set: (*Servo).SetMinPulseMs, get: (*Servo).MinPulseMs,
				valid: 650, tooLow: 299, tooHigh: 701, fallback: DefaultMinPulseMs,
			},
		},
		{
			name: "mid pulse",
			b: bounds{
				set: (*Servo).SetMidPulseMs, get: (*Servo).MidPulseMs,
				valid: 1400, tooLow: 1299, tooHigh: 1701, fallback: DefaultMidPulseMs,
			},
		},
		{
			name: "max pulse",
			b: bounds{
				set: (*Servo).SetMaxPulseMs, get: (*Servo).MaxPulseMs,
				valid: 2500, tooLow: 2299, tooHigh: 2701, fallback: DefaultMaxPulseMs,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newRunningServo(t)

			for _, bad := range []int{tt.b.tooLow, tt.b.tooHigh} {
				if err := tt.b.set(s, bad); !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("set(%d): got %v, want ErrInvalidArgument", bad, err)
				}
				if got := tt.b.get(s); got != tt.b.fallback {
					t.Errorf("calibration changed to %d after rejected write, want %d", got, tt.b.fallback)
				}
			}

			if err := tt.b.set(s, tt.b.valid); err != nil {
				t.Fatalf("set(%d) failed: %v", tt.b.valid, err)
			}
			if got := tt.b.get(s); got != tt.b.valid {
				t.Errorf("calibration = %d, want %d", got, tt.b.valid)
			}
		})
	}
}

func TestCalibrationAppliesOnNextWrite(t *testing.T) {
	s, b := newRunningServo(t)

	// Changing calibration alone must not move the actuator.
	if err := s.SetMaxPulseMs(2700); err != nil {
		t.Fatalf("SetMaxPulseMs failed: %v", err)
	}
	if calls := b.SetCalls(); len(calls) != 0 {
		t.Errorf("calibration write actuated: %v", calls)
	}

	if err := s.SetPosition(100, PolarityNormal); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}
	calls := b.SetCalls()
	if len(calls) != 1 || calls[0] != 2700 {
		t.Errorf("backend got %v, want [2700]", calls)
	}
}

func TestRate(t *testing.T) {
	s, _ := newRunningServo(t)
	if _, err := s.Rate(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Rate on rateless controller: got %v, want ErrUnsupported", err)
	}
	if err := s.SetRate(1000); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetRate on rateless controller: got %v, want ErrUnsupported", err)
	}

	b := NewMockBackend("c", 1500).EnableRate()
	s2, err := New(b, "port0")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s2.SetRate(1000); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	got, err := s2.Rate()
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if got != 1000 {
		t.Errorf("Rate() = %d, want 1000", got)
	}

	if err := s2.SetRate(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetRate(-1): got %v, want ErrInvalidArgument", err)
	}
}

func TestParseTokens(t *testing.T) {
	if _, err := ParseCommand("coast"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseCommand(coast): got %v, want ErrInvalidArgument", err)
	}
	if c, err := ParseCommand("float"); err != nil || c != CommandFloat {
		t.Errorf("ParseCommand(float) = %v, %v", c, err)
	}
	if _, err := ParsePolarity("reverse"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParsePolarity(reverse): got %v, want ErrInvalidArgument", err)
	}
	if p, err := ParsePolarity("inverted"); err != nil || p != PolarityInverted {
		t.Errorf("ParsePolarity(inverted) = %v, %v", p, err)
	}
}
