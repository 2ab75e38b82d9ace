package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/sebas/pbx/internal/pbx/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

type nopSink struct {
	bytes.Buffer
}

func (*nopSink) Close() error { return nil }

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// wsClient is a minimal WebSocket test client over the gobwas dialer. If
// the dial left buffered server bytes behind, reads go through that buffer
// first.
type wsClient struct {
	conn net.Conn
	rw   io.ReadWriter
}

func dialMonitor(t *testing.T, addr string) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < 50; i++ {
		conn, br, _, err := ws.Dial(ctx, "ws://"+addr+"/")
		if err == nil {
			var rw io.ReadWriter = conn
			if br != nil {
				rw = struct {
					io.Reader
					io.Writer
				}{br, conn}
			}
			return &wsClient{conn: conn, rw: rw}
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("could not dial monitor at %s: %v", addr, lastErr)
	return nil
}

func (c *wsClient) readSnapshot(t *testing.T) core.Snapshot {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(c.rw)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot %q: %v", data, err)
	}
	return snap
}

func TestMonitorPushesSnapshots(t *testing.T) {
	pbx := core.New(4, testLogger())
	mon := New(pbx, testLogger())
	addr := freeAddr(t)
	go mon.Start(addr)
	defer mon.Close()

	c := dialMonitor(t, addr)
	defer c.conn.Close()

	// On connect: a snapshot of the (empty) registry.
	snap := c.readSnapshot(t)
	if len(snap.Extensions) != 0 {
		t.Fatalf("initial snapshot has %d extensions, want 0", len(snap.Extensions))
	}

	// Every registry mutation pushes a fresh snapshot.
	tu, err := pbx.Register(&nopSink{})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	snap = c.readSnapshot(t)
	if len(snap.Extensions) != 1 {
		t.Fatalf("snapshot after register has %d extensions, want 1", len(snap.Extensions))
	}
	row := snap.Extensions[0]
	if row.Extension != tu.Extension() || row.State != "ON_HOOK" || row.Peer != nil {
		t.Errorf("snapshot row = %+v, want ext %d ON_HOOK with no peer", row, tu.Extension())
	}

	if err := tu.Pickup(); err != nil {
		t.Fatalf("Pickup() error = %v", err)
	}
	snap = c.readSnapshot(t)
	if got := snap.Extensions[0].State; got != "DIAL_TONE" {
		t.Errorf("snapshot state after pickup = %q, want %q", got, "DIAL_TONE")
	}

	if err := pbx.Unregister(tu); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	snap = c.readSnapshot(t)
	if len(snap.Extensions) != 0 {
		t.Errorf("snapshot after unregister has %d extensions, want 0", len(snap.Extensions))
	}
}

func TestMonitorCloseDropsClients(t *testing.T) {
	pbx := core.New(4, testLogger())
	mon := New(pbx, testLogger())
	addr := freeAddr(t)
	go mon.Start(addr)

	c := dialMonitor(t, addr)
	defer c.conn.Close()
	c.readSnapshot(t) // initial snapshot

	if err := mon.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := wsutil.ReadServerText(c.rw); err == nil {
		t.Error("expected read to fail after monitor close")
	}
}
