// Package conn implements the per-connection client service loop: parsing
// command lines off the wire and dispatching them against a registered TU.
package conn

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/sebas/pbx/internal/pbx/core"
)

// Serve registers a TU for conn and runs the client service loop until
// end-of-input or a transport error, then unregisters the TU and closes
// conn. It never returns an error; all failures are logged, and
// end-of-input is the normal way the loop terminates.
func Serve(pbx *core.PBX, connID int, sock net.Conn, log *slog.Logger) {
	tu, err := pbx.Register(sock)
	if err != nil {
		log.Warn("register failed", "conn", connID, "error", err)
		_ = sock.Close()
		return
	}
	log.Info("tu connected", "conn", connID, "ext", tu.Extension())

	reader := bufio.NewReader(sock)
	for {
		line, err := readLine(reader)
		if err != nil {
			if err != io.EOF {
				log.Debug("read error", "ext", tu.Extension(), "error", err)
			}
			break
		}
		dispatch(tu, line, log)
	}

	if err := pbx.Unregister(tu); err != nil {
		log.Warn("unregister failed", "ext", tu.Extension(), "error", err)
	}
	_ = sock.Close()
	log.Info("tu disconnected", "ext", tu.Extension())
}

// readLine reads one command line terminated by "\r\n", tolerating a bare
// "\n" at end-of-stream.
func readLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadString('\n')
	if raw == "" {
		return "", err
	}
	raw = strings.TrimRight(raw, "\r\n")
	return raw, nil
}

// dispatch parses one trimmed command line and applies it to tu. Unknown
// lines and malformed arguments are silently dropped; the engine never
// sees them.
func dispatch(tu *core.TU, line string, log *slog.Logger) {
	switch {
	case line == "pickup":
		if err := tu.Pickup(); err != nil {
			log.Debug("pickup io error", "ext", tu.Extension(), "error", err)
		}
	case line == "hangup":
		if err := tu.Hangup(); err != nil {
			log.Debug("hangup io error", "ext", tu.Extension(), "error", err)
		}
	case strings.HasPrefix(line, "dial "):
		arg := line[len("dial "):]
		ext, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		if err := tu.Dial(ext); err != nil {
			log.Debug("dial io error", "ext", tu.Extension(), "error", err)
		}
	case line == "chat" || strings.HasPrefix(line, "chat "):
		msg := strings.TrimPrefix(strings.TrimPrefix(line, "chat"), " ")
		if err := tu.Chat(msg); err != nil && err != core.ErrNotConnected {
			log.Debug("chat io error", "ext", tu.Extension(), "error", err)
		}
	default:
		// not a recognized command; ignored
	}
}
