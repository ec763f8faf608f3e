// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the kernel's listening endpoint: a Unix
// stream socket accepting many concurrent agent connections, each
// served by its own goroutine that reads frames, dispatches them to
// the router, and writes back responses. Requests on one connection
// are processed and answered in wire order; across connections there
// is no ordering guarantee.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/AnujJha88/Clove/internal/wire"
)

// Dispatcher routes one decoded frame to its handler and returns the
// response frame, assigning a fresh agent id on the connection's first
// frame if it does not already carry one (agent id 0).
type Dispatcher interface {
	Dispatch(ctx context.Context, frame wire.Frame) wire.Frame
	OnDisconnect(agentID uint32)
}

// Server owns the listening socket and every active connection.
type Server struct {
	socketPath string
	dispatch Dispatcher
	logger *slog.Logger

	active sync.WaitGroup
}

// New creates a Server bound to socketPath. Call Serve to start
// accepting connections.
func New(socketPath string, dispatch Dispatcher, logger *slog.Logger) *Server {
	return &Server{socketPath: socketPath, dispatch: dispatch, logger: logger}
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for in-flight connections to finish their
// current frame. Any stale socket file at socketPath is removed first;
// the socket file is removed again on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transport: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("transport: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("transport listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

// handleConnection reads and dispatches frames from one connection
// until it errors, hits EXIT, or the context is cancelled. A protocol
// error closes the connection; any other frame always
// gets exactly one response frame back.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var agentID uint32

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := wire.Read(conn)
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("connection closed on protocol error", "error", err)
			}
			if agentID != 0 {
				s.dispatch.OnDisconnect(agentID)
			}
			return
		}
		if frame.AgentID != 0 {
			agentID = frame.AgentID
		}

		resp := s.dispatch.Dispatch(ctx, frame)
		if resp.AgentID == 0 {
			resp.AgentID = agentID
		}
		agentID = resp.AgentID

		if err := wire.Write(conn, resp); err != nil {
			s.logger.Debug("write failed, closing connection", "error", err)
			if agentID != 0 {
				s.dispatch.OnDisconnect(agentID)
			}
			return
		}

		if frame.Opcode == wire.OpExit {
			if agentID != 0 {
				s.dispatch.OnDisconnect(agentID)
			}
			return
		}
	}
}
