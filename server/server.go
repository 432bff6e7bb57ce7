package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/resilience"
	"github.com/kbukum/floq/server/endpoint"
	"github.com/kbukum/floq/server/middleware"
	"github.com/kbukum/floq/sse"
)

// Server is the status server: a Gin engine behind h2c so HTTP/2 clients
// can hold many event streams over one cleartext connection.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// Routes selects what the status server exposes. Nil fields leave their
// endpoints unregistered.
type Routes struct {
	Service string
	Version string
	Health  endpoint.HealthChecker
	Stats   endpoint.StatsProvider
	Hub     *sse.Hub
}

// New creates a server. No middleware or routes are installed yet; see
// ApplyMiddleware and RegisterRoutes.
func New(cfg Config, log *logger.Logger) *Server {
	cfg.ApplyDefaults()
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h2c.NewHandler(mux, h2s),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		engine:     engine,
		mux:        mux,
		config:     cfg,
		log:        log.WithComponent("server"),
	}
}

// Engine returns the underlying Gin engine for route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handler returns the root handler, h2c included.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Handle mounts an http.Handler at pattern on the root ServeMux, next to Gin.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("handler mounted", logger.Fields("pattern", pattern))
}

// ApplyMiddleware installs recovery, request IDs, the optional rate limit
// and request logging, in that order.
func (s *Server) ApplyMiddleware() {
	s.engine.Use(middleware.Recovery(s.log))
	s.engine.Use(middleware.RequestID())
	if s.config.RequestsPerSecond > 0 {
		rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name: "server",
			Rate: s.config.RequestsPerSecond,
		})
		s.engine.Use(middleware.RateLimit(rl))
	}
	s.engine.Use(middleware.RequestLogger(s.log))
}

// RegisterRoutes registers /healthz, /readyz, /info, and when provided
// /stats and the event stream.
func (s *Server) RegisterRoutes(r Routes) {
	s.engine.GET("/healthz", endpoint.Liveness(r.Service))
	s.engine.GET("/readyz", endpoint.Readiness(r.Service, r.Version, r.Health))
	s.engine.GET("/info", endpoint.Info(r.Service, r.Version))
	if r.Stats != nil {
		s.engine.GET("/stats", endpoint.Stats(r.Stats))
	}
	if r.Hub != nil {
		s.engine.GET(s.config.EventsPath, sse.Handler(r.Hub))
	}
}

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("status server started", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down with a 5-second deadline. Open event streams
// end when the hub stops, so stop it first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	s.listener = nil
	s.mu.Unlock()
	if !started {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("status server stopped")
	return nil
}

// Addr returns the bound address while running, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Running reports whether the server is bound and serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}
