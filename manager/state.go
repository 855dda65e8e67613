package manager

// State mirrors the adapter power state as reported by the platform.
type State int

const (
	// StateUnknown is the error sentinel: the platform has not reported a
	// state yet, or reported one we do not recognize. It is resolved lazily
	// by re-querying the adapter.
	StateUnknown State = iota
	StateOff
	StateTurningOn
	StateOn
	StateTurningOff
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateTurningOn:
		return "turning-on"
	case StateOn:
		return "on"
	case StateTurningOff:
		return "turning-off"
	default:
		return "unknown"
	}
}

// Definitive reports whether the state is a settled on/off value rather than
// a transition or the unknown sentinel.
func (s State) Definitive() bool {
	return s == StateOn || s == StateOff
}

// transitionTarget returns the optimistic state entered when the platform
// accepts an enable or disable command: {off,on} -> {turning-on,turning-off}.
// When the command is rejected the manager re-syncs from the platform
// instead of entering the transition.
func transitionTarget(enable bool) State {
	if enable {
		return StateTurningOn
	}
	return StateTurningOff
}

// definitiveFor maps the platform's enabled flag to the settled state.
func definitiveFor(enabled bool) State {
	if enabled {
		return StateOn
	}
	return StateOff
}
