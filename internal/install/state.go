package install

// State is one step of the installation progression. The success path is
// totally ordered and monotonically non-decreasing; Failed and Canceled are
// terminal side-branches reachable from any non-terminal state.
type State int

const (
	StateUnknown State = iota
	StateInstanceCreated
	StateIPAllocated
	StateInstanceRunning
	StateCertificateCreated
	StateCompleted
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateInstanceCreated:
		return "instance-created"
	case StateIPAllocated:
		return "ip-allocated"
	case StateInstanceRunning:
		return "instance-running"
	case StateCertificateCreated:
		return "certificate-created"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "invalid"
	}
}

// Terminal reports whether the machine accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCanceled
}

// Fraction maps the state to a fractional-completion value in [0,1]. This
// is presentation metadata for the progress stream, not part of the
// transition invariant.
func (s State) Fraction() float64 {
	switch s {
	case StateInstanceCreated:
		return 0.2
	case StateIPAllocated:
		return 0.4
	case StateInstanceRunning:
		return 0.6
	case StateCertificateCreated:
		return 0.8
	case StateCompleted, StateFailed, StateCanceled:
		return 1.0
	default:
		return 0.0
	}
}
