// Package admin serves a read-only WebSocket monitor of the PBX registry:
// on connect, and after every registry mutation, it pushes a JSON snapshot
// of every occupied extension. It accepts no commands from the client; it
// exists purely for operators to watch call state live.
package admin

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/sebas/pbx/internal/pbx/core"
)

// Monitor runs the admin WebSocket listener.
type Monitor struct {
	pbx *core.PBX
	log *slog.Logger

	mu      sync.Mutex
	clients map[string]net.Conn

	ln net.Listener
}

// New wires a Monitor to pbx. It subscribes to registry changes
// immediately; call Start to begin accepting connections.
func New(pbx *core.PBX, log *slog.Logger) *Monitor {
	m := &Monitor{
		pbx:     pbx,
		log:     log,
		clients: make(map[string]net.Conn),
	}
	pbx.Subscribe(m.broadcast)
	return m
}

// Start binds addr and accepts WebSocket upgrade connections until the
// listener is closed.
func (m *Monitor) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	m.ln = ln
	m.log.Info("admin monitor listening", "addr", ln.Addr().String())

	for {
		sock, err := ln.Accept()
		if err != nil {
			return nil
		}
		go m.handshake(sock)
	}
}

// Close stops accepting new admin connections and drops existing ones.
func (m *Monitor) Close() error {
	if m.ln != nil {
		_ = m.ln.Close()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.clients {
		_ = c.Close()
		delete(m.clients, id)
	}
	return nil
}

func (m *Monitor) handshake(sock net.Conn) {
	if _, err := ws.Upgrade(sock); err != nil {
		m.log.Debug("admin upgrade failed", "error", err)
		_ = sock.Close()
		return
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.clients[id] = sock
	m.mu.Unlock()
	m.log.Info("admin client connected", "session", id)

	m.send(sock, m.pbx.Snapshot())

	// The monitor is push-only; we still need to notice when the client
	// goes away, so drain and discard whatever it sends (pings, close
	// frames) until the connection breaks.
	for {
		if _, _, err := wsutil.ReadClientData(sock); err != nil {
			break
		}
	}

	m.mu.Lock()
	delete(m.clients, id)
	m.mu.Unlock()
	_ = sock.Close()
	m.log.Info("admin client disconnected", "session", id)
}

func (m *Monitor) broadcast(snap core.Snapshot) {
	m.mu.Lock()
	conns := make([]net.Conn, 0, len(m.clients))
	for _, c := range m.clients {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		m.send(c, snap)
	}
}

func (m *Monitor) send(c net.Conn, snap core.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		m.log.Error("snapshot marshal failed", "error", err)
		return
	}
	if err := wsutil.WriteServerMessage(c, ws.OpText, payload); err != nil {
		m.log.Debug("admin send failed", "error", err)
	}
}
