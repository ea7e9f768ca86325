package control

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultAddr keeps the API on the loopback interface.
const DefaultAddr = "127.0.0.1:8787"

// Server serves the control API.
type Server struct {
	server *http.Server
	addr   string
	log    *zap.Logger
}

func NewServer(addr string, h *Handler) *Server {
	return &Server{
		addr: addr,
		log:  h.log,
		server: &http.Server{
			Addr:         addr,
			Handler:      h.Routes(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks until the server is shut down.
func (s *Server) Start() error {
	s.log.Info("Control API listening", zap.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down control API")
	return s.server.Shutdown(ctx)
}

func (s *Server) Addr() string { return s.addr }
