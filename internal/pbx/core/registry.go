// Package core implements the PBX state engine: the extension registry and
// the Pickup/Hangup/Dial/Chat transition tables, all serialized behind a
// single lock.
package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Logger is the subset of *slog.Logger the core depends on, so tests can
// supply a no-op implementation without pulling in the logging package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

// PBX is the extension registry and single lock guarding every state
// transition. A PBX is the whole switch: there is no per-TU or per-call
// locking, because joint transitions update two TUs atomically and a
// pair-locking scheme would need an ordering protocol over extensions.
type PBX struct {
	mu   sync.Mutex
	log  Logger
	done bool

	slots []*TU // fixed-capacity, index == extension number

	observers []func(Snapshot)
}

// New creates a PBX with room for capacity simultaneous extensions.
func New(capacity int, logger *slog.Logger) *PBX {
	if logger == nil {
		logger = slog.Default()
	}
	return &PBX{
		log:   slogAdapter{logger},
		slots: make([]*TU, capacity),
	}
}

// Capacity returns the registry's fixed extension capacity.
func (p *PBX) Capacity() int {
	return len(p.slots)
}

// Register assigns sink the lowest free extension number and returns its
// new TU in StateOnHook, after writing the initial state line to sink.
func (p *PBX) Register(sink Sink) (*TU, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return nil, ErrShuttingDown
	}

	ext := -1
	for i, s := range p.slots {
		if s == nil {
			ext = i
			break
		}
	}
	if ext == -1 {
		return nil, ErrFull
	}

	tu := &TU{
		pbx:   p,
		ext:   ext,
		id:    uuid.NewString(),
		sink:  sink,
		state: StateOnHook,
		peer:  noPeer,
	}
	p.slots[ext] = tu
	p.log.Info("tu registered", "ext", ext, "id", tu.id)
	p.notifyLocked(tu)
	return tu, nil
}

// Unregister removes tu from the registry. If tu has a peer, the peer
// receives the same joint effect it would on a Hangup from tu's current
// state: the peer of a CONNECTED TU and a caller left in RING_BACK by a
// departing RINGING TU fall back to DIAL_TONE, a RINGING peer whose caller
// vanished mid-ring falls back to ON_HOOK. The departing TU's own
// sink is left open; closing it is the service loop's job.
func (p *PBX) Unregister(tu *TU) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slots[tu.ext] != tu {
		return nil // already unregistered
	}

	switch tu.state {
	case StateConnected, StateRinging:
		if peer := p.slots[tu.peer]; peer != nil {
			peer.state = StateDialTone
			peer.peer = noPeer
			p.notifyLocked(peer)
		}
	case StateRingBack:
		if peer := p.slots[tu.peer]; peer != nil {
			peer.state = StateOnHook
			peer.peer = noPeer
			p.notifyLocked(peer)
		}
	}

	p.slots[tu.ext] = nil
	p.log.Info("tu unregistered", "ext", tu.ext, "id", tu.id)
	p.broadcastLocked()
	return nil
}

// Lookup returns the TU registered at ext, if any.
func (p *PBX) Lookup(ext int) (*TU, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ext < 0 || ext >= len(p.slots) || p.slots[ext] == nil {
		return nil, false
	}
	return p.slots[ext], true
}

// ExtensionSnapshot is one row of a registry Snapshot.
type ExtensionSnapshot struct {
	Extension int    `json:"extension"`
	State     string `json:"state"`
	Peer      *int   `json:"peer,omitempty"`
	ID        string `json:"id"`
}

// Snapshot is a point-in-time, lock-free copy of the registry, safe to
// marshal and send to an observer after the call returns.
type Snapshot struct {
	Extensions []ExtensionSnapshot `json:"extensions"`
}

// Snapshot takes the lock and returns the current registry contents.
func (p *PBX) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *PBX) snapshotLocked() Snapshot {
	snap := Snapshot{}
	for _, tu := range p.slots {
		if tu == nil {
			continue
		}
		row := ExtensionSnapshot{Extension: tu.ext, State: tu.state.String(), ID: tu.id}
		if tu.peer != noPeer {
			peer := tu.peer
			row.Peer = &peer
		}
		snap.Extensions = append(snap.Extensions, row)
	}
	return snap
}

// Subscribe registers fn to be called with the current registry snapshot
// every time it changes (registration, unregistration, or any state
// transition). Used by the admin monitor; fn must not block or re-enter
// the PBX.
func (p *PBX) Subscribe(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

func (p *PBX) broadcastLocked() {
	if len(p.observers) == 0 {
		return
	}
	snap := p.snapshotLocked()
	for _, fn := range p.observers {
		fn(snap)
	}
}

// notifyLocked writes tu's current state line to its sink and broadcasts
// the updated snapshot to observers. Callers must hold p.mu.
func (p *PBX) notifyLocked(tu *TU) error {
	err := writeState(tu.sink, tu)
	if err != nil {
		p.log.Warn("notify write failed", "ext", tu.ext, "error", err)
	}
	p.broadcastLocked()
	return err
}

// Shutdown marks the registry closed to new registrations and force-closes
// every currently registered sink, which unblocks each service loop at its
// next read. It does not attempt to flush a final notification to clients.
func (p *PBX) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return nil
	}
	p.done = true
	sinks := make([]Sink, 0, len(p.slots))
	for _, tu := range p.slots {
		if tu != nil {
			sinks = append(sinks, tu.sink)
		}
	}
	p.mu.Unlock()

	return closeAll(ctx, p.log, sinks)
}
