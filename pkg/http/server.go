package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"BtcTrader/pkg/http/middleware"
	applogger "BtcTrader/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerOption func(*ServerConfig)

// ServerConfig holds the listener, middleware and timeout settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // 0 keeps event streams open
	ShutdownTimeout time.Duration
	MetricsPath     string        // empty disables /metrics
	SlowThreshold   time.Duration // requests above it are logged at warn
	Limiter         middleware.Limiter
	Logger          *applogger.Logger
}

// Server is the API's echo instance plus its listener lifecycle.
type Server struct {
	echo   *echo.Echo
	config ServerConfig
	log    *applogger.Logger
	addr   net.Addr
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
		SlowThreshold:   time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(cfg.Logger))
	e.Use(middleware.RequestLogging(cfg.Logger))
	e.Use(middleware.Metrics(cfg.Logger, cfg.SlowThreshold))
	if cfg.Limiter != nil {
		e.Use(middleware.RateLimit(cfg.Limiter, "/healthz", cfg.MetricsPath))
	}
	// The dashboard lives on another origin. EventSource reconnects may send
	// Last-Event-ID.
	e.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderCacheControl,
			"Last-Event-ID",
		},
	}))

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{echo: e, config: cfg, log: cfg.Logger}
}

// Start binds the port synchronously, so a taken port fails here, then
// serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.addr = ln.Addr()
	s.log.Info("http server listening", applogger.String("addr", s.addr.String()))

	go func() {
		if err := s.echo.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start succeeded. Useful with port 0.
func (s *Server) Addr() net.Addr { return s.addr }

// Stop drains in-flight requests. ctx without a deadline gets ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = path }
}

// WithRateLimiter enables per client IP limiting on the API routes.
func WithRateLimiter(l middleware.Limiter) ServerOption {
	return func(c *ServerConfig) { c.Limiter = l }
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}
