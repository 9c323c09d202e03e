package protocol

import "fmt"

// State is a position in the orchestrator's state machine.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateExchanging
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "Idle",
	StateConnecting: "Connecting",
	StateConnected:  "Connected",
	StateExchanging: "Exchanging",
	StateDone:       "Done",
	StateFailed:     "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateConnected, StateFailed},
	StateConnected:  {StateExchanging, StateFailed},
	StateExchanging: {StateDone, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
