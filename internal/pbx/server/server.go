// Package server runs the TCP accept loop that feeds new connections into
// the PBX core, and the shutdown path that tears it down.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sebas/pbx/internal/pbx/conn"
	"github.com/sebas/pbx/internal/pbx/core"
)

// Server owns the client listener and the PBX it feeds.
type Server struct {
	pbx *core.PBX
	log *slog.Logger

	ln net.Listener

	connSeq  atomic.Int64
	wg       sync.WaitGroup
	shutdown sync.Once
}

// New creates a Server bound to pbx. It does not listen yet; call Start.
func New(pbx *core.PBX, log *slog.Logger) *Server {
	return &Server{pbx: pbx, log: log}
}

// Start binds addr and runs the accept loop until the listener is closed
// by Shutdown, at which point it returns nil.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	s.log.Info("listening", "addr", ln.Addr().String())

	for {
		sock, err := ln.Accept()
		if err != nil {
			if isClosed(err) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		connID := int(s.connSeq.Add(1))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			conn.Serve(s.pbx, connID, sock, s.log)
		}()
	}
}

// Shutdown closes the listener (so Accept stops producing new
// connections), then force-closes every registered
// TU's sink, which unblocks every service loop at its next read. It is
// idempotent; a second call is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		if s.ln != nil {
			if cerr := s.ln.Close(); cerr != nil {
				s.log.Warn("listener close failed", "error", cerr)
			}
		}
		err = s.pbx.Shutdown(ctx)
	})
	return err
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
