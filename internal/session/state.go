package session

// State is a pairing session state.
type State int

const (
	StateUnauthenticated State = iota
	StateCheckingPairing
	// Choosing, Creating, Waiting and Joining are the unpaired sub-states.
	StateChoosing
	StateCreating
	StateWaiting
	StateJoining
	StatePaired
)

var stateNames = map[State]string{
	StateUnauthenticated: "unauthenticated",
	StateCheckingPairing: "checking_pairing",
	StateChoosing:        "choosing",
	StateCreating:        "creating",
	StateWaiting:         "waiting",
	StateJoining:         "joining",
	StatePaired:          "paired",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Unpaired reports whether s is one of the unpaired sub-states.
func (s State) Unpaired() bool {
	switch s {
	case StateChoosing, StateCreating, StateWaiting, StateJoining:
		return true
	}
	return false
}
