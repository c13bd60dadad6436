// Package server implements the A2A runtime: the request processor, the
// JSON-RPC dispatcher and the HTTP, SSE and WebSocket transports.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/server/middleware"
	"github.com/sammcj/go-a2a-core/server/push"
	"github.com/sammcj/go-a2a-core/server/store"
	"github.com/sammcj/go-a2a-core/server/stream"
)

// Server implements the A2A server functionality.
type Server struct {
	config      Config
	httpServer  *http.Server
	handler     http.Handler
	taskManager TaskManager
	logger      *zap.Logger

	// Owned by the server when it built the default processor.
	processor *Processor
	broker    *stream.Broker
	registry  *push.Registry
	store     store.Store
}

// NewServer creates a new A2A Server instance.
func NewServer(opts ...Option) (*Server, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.AgentCard == nil {
		return nil, errors.New("agent card configuration is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{config: cfg, logger: cfg.Logger, taskManager: cfg.TaskManager}
	if s.taskManager == nil {
		if cfg.TaskHandler == nil {
			return nil, errors.New("a task handler or task manager is required")
		}
		if err := s.buildProcessor(); err != nil {
			return nil, err
		}
	}

	dispatcher := NewDispatcher(s.taskManager, cfg.Authenticator, cfg.Logger.Named("dispatcher"))
	credentials := middleware.Credentials(cfg.AgentCard, middleware.WithAPIKeyHeader(cfg.APIKeyHeader))

	mux := http.NewServeMux()
	RegisterAgentCardHandler(mux, cfg.AgentCard, cfg.AgentCardPath)
	mux.Handle(normalizePath(cfg.A2APathPrefix, "/a2a"), credentials(NewHTTPHandler(dispatcher, cfg.Logger.Named("http"))))
	if cfg.WebSocketPath != "" {
		mux.Handle(cfg.WebSocketPath, credentials(NewWebSocketHandler(dispatcher, cfg.Logger.Named("websocket"), nil)))
	}
	s.handler = mux

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) buildProcessor() error {
	cfg := s.config
	sender := cfg.PushSender
	if sender == nil {
		sender = push.NewHTTPSender(nil)
	}
	s.store = cfg.Store
	if s.store == nil {
		s.store = store.NewMemoryStore()
	}
	s.broker = stream.NewBroker(append([]stream.Option{stream.WithLogger(cfg.Logger.Named("stream"))}, cfg.BrokerOptions...)...)
	s.registry = push.NewRegistry(sender, append([]push.Option{push.WithLogger(cfg.Logger.Named("push"))}, cfg.RegistryOptions...)...)

	p, err := NewProcessor(ProcessorConfig{
		Handler:  cfg.TaskHandler,
		Store:    s.store,
		Broker:   s.broker,
		Registry: s.registry,
		Card:     cfg.AgentCard,
		Logger:   cfg.Logger.Named("processor"),
	})
	if err != nil {
		return fmt.Errorf("failed to create task processor: %w", err)
	}
	s.processor = p
	s.taskManager = p
	return nil
}

// Handler returns the server's HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.handler }

// TaskManager returns the task manager requests are routed to.
func (s *Server) TaskManager() TaskManager { return s.taskManager }

// Start runs the A2A server. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ln)
}

// Serve runs the A2A server on ln. It blocks until the server is stopped.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting A2A server",
		zap.String("agent", s.config.AgentCard.Name),
		zap.String("address", ln.Addr().String()),
		zap.String("path", s.config.A2APathPrefix))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server. Running handlers are cancelled,
// open streams are closed and pending push deliveries are abandoned.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping A2A server")

	var errs []error
	if s.processor != nil {
		if err := s.processor.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop task processor: %w", err))
		}
	}
	if s.broker != nil {
		s.broker.Close()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to gracefully shutdown HTTP server: %w", err))
	}
	if s.registry != nil {
		if err := s.registry.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop push delivery: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close task store: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("A2A server stopped")
	return nil
}
