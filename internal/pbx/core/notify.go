package core

import "fmt"

// writeState writes tu's current state as a single wire notification line,
// terminated with "\r\n": ON_HOOK carries the TU's own extension, CONNECTED
// carries the peer's extension, every other state is the bare uppercase
// token.
func writeState(sink Sink, tu *TU) error {
	var line string
	switch tu.state {
	case StateOnHook:
		line = fmt.Sprintf("%s %d\r\n", tu.state, tu.ext)
	case StateConnected:
		line = fmt.Sprintf("%s %d\r\n", tu.state, tu.peer)
	default:
		line = fmt.Sprintf("%s\r\n", tu.state)
	}
	_, err := sink.Write([]byte(line))
	return err
}
