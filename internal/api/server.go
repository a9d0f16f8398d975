package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthlab/hearth-core/internal/device"
	"github.com/hearthlab/hearth-core/internal/infrastructure/config"
	"github.com/hearthlab/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlab/hearth-core/internal/ota"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.ServerConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Repo     device.Repository
	Commands CommandPublisher // optional; command endpoints fail without it
	OTA      *ota.Service     // optional; OTA endpoints 404 without it
	Hub      *Hub             // if set, the server uses this hub instead of creating its own
	Version  string
}

// Server is the HTTP API and WebSocket server.
type Server struct {
	cfg      config.ServerConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	repo     device.Repository
	commands CommandPublisher
	ota      *ota.Service
	version  string

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates an API server. The server does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("device repository is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		repo:     deps.Repo,
		commands: deps.Commands,
		ota:      deps.OTA,
		version:  deps.Version,
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the fan-out hub, creating it lazily when none was injected.
// The bridge broadcasts through this hub.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.commands, s.logger)
	}
	return s.hub
}

// Start builds the router and launches the HTTP listener in a background
// goroutine. Stop with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.commands, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting for in-flight requests
// up to the shutdown timeout. Idempotent.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	s.server = nil
	s.logger.Info("API server stopped")
	return nil
}
