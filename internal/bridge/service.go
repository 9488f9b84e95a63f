// Package bridge composes the exclusive byte channel, its endpoint
// registration, and the HTTP surface clients drive it through.
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/danmuck/simbridge/internal/auth"
	"github.com/danmuck/simbridge/internal/channel"
	"github.com/danmuck/simbridge/internal/config"
	"github.com/danmuck/simbridge/internal/observability"
	"github.com/danmuck/simbridge/internal/registry"
)

const version = "0.1.0"

// shutdownGrace bounds the drain of in-flight requests at shutdown.
const shutdownGrace = 5 * time.Second

// Service owns the channel lifecycle: construct, register, serve,
// seal, deregister. One Service fronts exactly one Channel.
type Service struct {
	cfg      config.Config
	ch       *channel.Channel
	registry registry.Registry
	admin    auth.Validator
	router   *gin.Engine
	logger   zerolog.Logger
	started  time.Time
}

// NewService builds a service whose registry is chosen by cfg.Listen.
func NewService(cfg config.Config, logger zerolog.Logger) *Service {
	var reg registry.Registry
	switch cfg.Listen {
	case config.ListenTCP:
		reg = registry.TCPRegistry{Addr: cfg.Addr}
	default:
		reg = registry.UnixRegistry{Dir: cfg.SocketDir}
	}
	return NewServiceWithRegistry(cfg, logger, reg)
}

// NewServiceWithRegistry builds a service over an injected registry so
// tests can substitute a fake for the host-environment binding.
func NewServiceWithRegistry(cfg config.Config, logger zerolog.Logger, reg registry.Registry) *Service {
	gin.SetMode(gin.ReleaseMode)
	s := &Service{
		cfg:      cfg,
		ch:       channel.New(),
		registry: reg,
		admin:    auth.StaticToken{Token: cfg.AdminToken},
		logger:   logger,
		started:  time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// Channel exposes the owned channel for in-process callers and tests.
func (s *Service) Channel() *channel.Channel {
	return s.ch
}

// Router exposes the HTTP surface for httptest-driven tests.
func (s *Service) Router() *gin.Engine {
	return s.router
}

func (s *Service) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(s.logger))
	router.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
	if len(s.cfg.CorsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = s.cfg.CorsOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, HeaderSessionToken)
		router.Use(cors.New(corsCfg))
	}
	s.registerRoutes(router)
	return router
}

// Run registers the endpoint, serves until SIGINT/SIGTERM, then seals
// the channel and deregisters. Registration failure is startup-fatal:
// no session is ever admitted without a bound name.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle, err := s.registry.Register(s.cfg.Name)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("name", handle.Name()).
		Str("addr", handle.Addr().String()).
		Str("emulator", s.cfg.Emulator).
		Msg("endpoint registered")

	err = s.Serve(ctx, handle.Listener())
	s.shutdown(handle)
	return err
}

// Serve runs the HTTP surface on an existing listener until ctx is
// done or the server fails.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(drainCtx)
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
}

// shutdown seals the channel and releases the name binding. A session
// still held at this point is an anomaly: it is evicted and logged,
// never silently dropped.
func (s *Service) shutdown(handle registry.Handle) {
	if id, held := s.ch.Seal(); held {
		observability.RecordForcedRelease()
		s.logger.Warn().Uint64("session", id).Msg("forced release of held session at shutdown")
	}
	if err := s.registry.Deregister(handle); err != nil {
		s.logger.Error().Err(err).Str("name", s.cfg.Name).Msg("deregister failed")
		return
	}
	s.logger.Info().Str("name", s.cfg.Name).Msg("endpoint deregistered")
}
