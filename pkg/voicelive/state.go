package voicelive

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateStreaming
	StateClosing
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateOpen:       "open",
	StateStreaming:  "streaming",
	StateClosing:    "closing",
	StateClosed:     "closed",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Active reports whether audio may be sent in this state.
func (s State) Active() bool {
	return s == StateOpen || s == StateStreaming
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
