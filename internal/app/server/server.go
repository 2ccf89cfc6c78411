// Package server hosts the HTTP server and its graceful lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cerke-online/backend/internal/platform/logger"
)

// Server hosts the game backend's HTTP listener.
type Server struct {
	listener net.Listener
	http     *http.Server
	drain    time.Duration
}

// New creates a server listening on the provided address. drain bounds the
// graceful-shutdown wait for in-flight requests.
func New(addr string, handler http.Handler, drain time.Duration) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	return &Server{
		listener: listener,
		http:     &http.Server{Handler: handler},
		drain:    drain,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, addr string, handler http.Handler, drain time.Duration) error {
	srv, err := New(addr, handler, drain)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve blocks until the server stops or the context ends. On context
// cancellation in-flight requests get the drain window to finish.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Info("server listening", "addr", s.listener.Addr().String())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.http.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not drain cleanly", "error", err)
			_ = s.http.Close()
		}
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}
