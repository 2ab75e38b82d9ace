package core

import (
	"errors"
	"fmt"
	"io"
)

// noPeer is the sentinel peer extension value meaning "none".
const noPeer = -1

// ErrNotConnected is returned by Chat when the TU is not in StateConnected.
var ErrNotConnected = errors.New("pbx: tu is not connected")

// ErrShuttingDown is returned by Register once Shutdown has started.
var ErrShuttingDown = errors.New("pbx: shutting down")

// ErrFull is returned by Register when the registry has no free slot.
var ErrFull = errors.New("pbx: registry is full")

// Sink is the write side of a TU's client connection. The core owns it for
// notification writes and for the force-close half of shutdown; the
// service loop that reads commands owns the final Close after EOF.
type Sink interface {
	io.Writer
	Close() error
}

// TU is one telephone unit: a registered extension, its current state, its
// peer (if any), and the sink its notifications are written to. Every
// field below is mutated only while the owning PBX's lock is held; TU
// carries no lock of its own.
type TU struct {
	pbx  *PBX
	ext  int
	id   string
	sink Sink

	state State
	peer  int // noPeer if not in a call-related state
}

// Extension returns the TU's extension number. It never changes after
// registration, so it is safe to call without holding any lock.
func (tu *TU) Extension() int {
	return tu.ext
}

// ID returns the correlation identifier assigned to this TU at
// registration, for structured logging.
func (tu *TU) ID() string {
	return tu.id
}

// State returns the TU's current state. Exposed for tests; it takes the
// PBX lock itself.
func (tu *TU) State() State {
	tu.pbx.mu.Lock()
	defer tu.pbx.mu.Unlock()
	return tu.state
}

// PeerExtension returns the TU's current peer extension and whether it has
// one.
func (tu *TU) PeerExtension() (int, bool) {
	tu.pbx.mu.Lock()
	defer tu.pbx.mu.Unlock()
	if tu.peer == noPeer {
		return 0, false
	}
	return tu.peer, true
}

// Pickup takes the TU off hook: from ON_HOOK it gets a dial tone, from
// RINGING it answers, connecting both parties. Any other state is a no-op
// that still re-emits the current state as an acknowledgment.
func (tu *TU) Pickup() error {
	p := tu.pbx
	p.mu.Lock()
	defer p.mu.Unlock()

	switch tu.state {
	case StateOnHook:
		tu.state = StateDialTone
	case StateRinging:
		peer := p.slots[tu.peer]
		tu.state = StateConnected
		peer.state = StateConnected
		p.notifyLocked(peer)
	}
	return p.notifyLocked(tu)
}

// Hangup puts the TU back on hook. If it was in a call, the peer is
// released too: a CONNECTED or abandoned-caller peer gets a dial tone, a
// ringing callee whose caller gave up returns to ON_HOOK.
func (tu *TU) Hangup() error {
	p := tu.pbx
	p.mu.Lock()
	defer p.mu.Unlock()

	switch tu.state {
	case StateConnected:
		peer := p.slots[tu.peer]
		tu.state = StateOnHook
		peer.state = StateDialTone
		tu.peer = noPeer
		peer.peer = noPeer
		p.notifyLocked(peer)
	case StateRingBack:
		peer := p.slots[tu.peer]
		tu.state = StateOnHook
		peer.state = StateOnHook
		tu.peer = noPeer
		peer.peer = noPeer
		p.notifyLocked(peer)
	case StateRinging:
		peer := p.slots[tu.peer]
		tu.state = StateOnHook
		peer.state = StateDialTone
		tu.peer = noPeer
		peer.peer = noPeer
		p.notifyLocked(peer)
	case StateDialTone, StateBusySignal, StateError:
		tu.state = StateOnHook
	}
	return p.notifyLocked(tu)
}

// Dial calls ext. The target-existence check runs regardless of the
// caller's current state: dialing a nonexistent extension always yields
// ERROR, even from ON_HOOK. Only a TU with a dial tone can actually place
// a call; an idle target starts ringing, anything else is a busy signal.
func (tu *TU) Dial(ext int) error {
	p := tu.pbx
	p.mu.Lock()
	defer p.mu.Unlock()

	if ext < 0 || ext >= len(p.slots) || p.slots[ext] == nil {
		tu.state = StateError
		return p.notifyLocked(tu)
	}

	if tu.state != StateDialTone {
		return p.notifyLocked(tu)
	}

	target := p.slots[ext]
	if target.state == StateOnHook {
		tu.state = StateRingBack
		target.state = StateRinging
		tu.peer = ext
		target.peer = tu.ext
		p.notifyLocked(target)
	} else {
		tu.state = StateBusySignal
	}
	return p.notifyLocked(tu)
}

// Chat relays msg to the peer of a CONNECTED TU. Unlike state
// notifications, the chat line delivered to the peer ends in a bare '\n',
// no '\r'.
func (tu *TU) Chat(msg string) error {
	p := tu.pbx
	p.mu.Lock()
	defer p.mu.Unlock()

	if tu.state != StateConnected {
		if err := p.notifyLocked(tu); err != nil {
			return err
		}
		return ErrNotConnected
	}

	peer := p.slots[tu.peer]
	_, werr := fmt.Fprintf(peer.sink, "CHAT %s\n", msg)
	if werr != nil {
		p.log.Warn("chat write failed", "ext", tu.ext, "peer", peer.ext, "error", werr)
	}
	if err := p.notifyLocked(tu); err != nil {
		return err
	}
	return werr
}
