package acquisition

import "fmt"

// State is where the scheduler is in its duty cycle.
type State int

const (
	Idle State = iota
	BusInit
	WarmUp
	SteadyRead
	BusTeardown
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case BusInit:
		return "bus_init"
	case WarmUp:
		return "warm_up"
	case SteadyRead:
		return "steady_read"
	case BusTeardown:
		return "bus_teardown"
	case Sleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Sleeping; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown acquisition state %q", b)
}
