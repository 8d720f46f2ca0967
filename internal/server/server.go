package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/users"
)

// Server ties the user registry, the chat handler, the hub and the HTTP
// routes together. Each Server owns its own registry.
type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *users.Registry
	hub      *Hub
	handler  *chat.Handler
	upgrader websocket.Upgrader
	http     *http.Server
}

type options struct {
	filter chat.ProfanityFilter
	clock  func() time.Time
}

// Option customizes a Server.
type Option func(*options)

// WithProfanityFilter replaces the default profanity filter.
func WithProfanityFilter(filter chat.ProfanityFilter) Option {
	return func(o *options) { o.filter = filter }
}

// WithClock replaces the clock used to timestamp messages.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// New builds a Server from cfg. Call Start before serving requests.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Server {
	cfg = config.Sanitize(cfg)
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.filter == nil {
		o.filter = chat.NewProfanityFilter()
	}

	registry := users.NewRegistry()
	hub := NewHub(cfg, logger)
	handler := chat.NewHandler(registry, messages.NewFormatter(o.clock), hub, o.filter, logger)
	hub.SetEventHandler(handler)

	origins := newOriginPolicy(cfg.AllowedOrigins, logger.With(slog.String("component", "origin")))

	s := &Server{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "server")),
		registry: registry,
		hub:      hub,
		handler:  handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
	s.http = CreateServer(cfg.Addr(), s.SetupRoutes())
	return s
}

// Registry returns the server's user registry.
func (s *Server) Registry() *users.Registry {
	return s.registry
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HTTPServer returns the underlying *http.Server.
func (s *Server) HTTPServer() *http.Server {
	return s.http
}

// Start launches the hub loop. It must be called once before serving.
func (s *Server) Start() {
	go s.hub.Run()
	s.logger.Info("Hub started and ready to manage WebSocket connections")
}

// ListenAndServe blocks serving HTTP until the server is shut down. A
// graceful shutdown is not reported as an error.
func (s *Server) ListenAndServe() error {
	if err := StartServer(s.http, s.logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes every WebSocket connection.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	httpErr := ShutdownServer(ctx, s.http, s.logger)
	hubErr := s.hub.Shutdown(timeout)
	return errors.Join(httpErr, hubErr)
}
