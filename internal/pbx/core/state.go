package core

import "fmt"

// State is one of the seven states a telephone unit can occupy.
type State int

const (
	// StateOnHook is idle, handset down.
	StateOnHook State = iota
	// StateRinging means a peer is calling this TU.
	StateRinging
	// StateDialTone means the TU is off-hook, awaiting a dialed extension.
	StateDialTone
	// StateRingBack means the TU is calling a peer that is ringing.
	StateRingBack
	// StateBusySignal means the last dial attempt found a non-idle peer.
	StateBusySignal
	// StateConnected means the TU is in an active call with a peer.
	StateConnected
	// StateError means the last dial targeted a nonexistent extension.
	StateError
)

// String returns the uppercase wire token for the state, e.g. "DIAL_TONE".
func (s State) String() string {
	switch s {
	case StateOnHook:
		return "ON_HOOK"
	case StateRinging:
		return "RINGING"
	case StateDialTone:
		return "DIAL_TONE"
	case StateRingBack:
		return "RING_BACK"
	case StateBusySignal:
		return "BUSY_SIGNAL"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// HasPeer reports whether a TU in this state is required to have a peer
// extension.
func (s State) HasPeer() bool {
	switch s {
	case StateRinging, StateRingBack, StateConnected:
		return true
	default:
		return false
	}
}
