package conn

import (
	"bufio"
	"bytes"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/sebas/pbx/internal/pbx/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

// client wraps one end of a net.Pipe as a tiny synchronous test client.
type client struct {
	net.Conn
	r *bufio.Reader
}

func newClient(c net.Conn) *client {
	return &client{Conn: c, r: bufio.NewReader(c)}
}

func (c *client) send(t *testing.T, line string) {
	t.Helper()
	if _, err := c.Write([]byte(line + "\r\n")); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func (c *client) expect(t *testing.T, want string) {
	t.Helper()
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := trimCRLF(line); got != want {
		t.Errorf("server sent %q, want %q", got, want)
	}
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func TestServeDialogue(t *testing.T) {
	// net.Pipe is unbuffered, so every server-side write blocks until this
	// goroutine reads it. Registrations are serialized (A fully up before B
	// starts) so extension numbers are deterministic, and reads follow the
	// engine's write order: on a joint transition the peer is notified
	// before the caller.
	pbx := core.New(8, testLogger())
	aServer, aClientConn := net.Pipe()
	bServer, bClientConn := net.Pipe()

	done := make(chan struct{}, 2)

	a := newClient(aClientConn)
	go func() { Serve(pbx, 1, aServer, testLogger()); done <- struct{}{} }()
	a.expect(t, "ON_HOOK 0")

	b := newClient(bClientConn)
	go func() { Serve(pbx, 2, bServer, testLogger()); done <- struct{}{} }()
	b.expect(t, "ON_HOOK 1")

	a.send(t, "pickup")
	a.expect(t, "DIAL_TONE")

	a.send(t, "dial 1")
	b.expect(t, "RINGING")
	a.expect(t, "RING_BACK")

	b.send(t, "pickup")
	a.expect(t, "CONNECTED 1")
	b.expect(t, "CONNECTED 0")

	a.send(t, "chat hello there")
	line, err := b.r.ReadString('\n')
	if err != nil {
		t.Fatalf("chat read: %v", err)
	}
	if line != "CHAT hello there\n" {
		t.Errorf("chat line = %q, want %q", line, "CHAT hello there\n")
	}
	a.expect(t, "CONNECTED 1") // echo of A's own state

	a.send(t, "hangup")
	b.expect(t, "DIAL_TONE")
	a.expect(t, "ON_HOOK 0")

	a.Close()
	b.Close()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after client close")
		}
	}
}

func TestDispatchIgnoresMalformedDial(t *testing.T) {
	pbx := core.New(8, testLogger())
	server, clientConn := net.Pipe()
	done := make(chan struct{})
	go func() { Serve(pbx, 1, server, testLogger()); done <- struct{}{} }()

	c := newClient(clientConn)
	c.expect(t, "ON_HOOK 0")

	c.send(t, "dial banana") // malformed: dropped by dispatch, never reaches Dial
	c.send(t, "pickup")
	c.expect(t, "DIAL_TONE") // only one notification: the malformed line was dropped silently

	c.Close()
	<-done
}
