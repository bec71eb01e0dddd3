package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/alsassist/internal/profile"
	apiv1 "github.com/hrygo/alsassist/server/router/api/v1"
)

const shutdownTimeout = 10 * time.Second

// Server serves the JSON API and the metrics endpoint.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	closers    []func() error
}

// NewServer builds the echo instance. metrics may be nil. closers run after
// the HTTP server stops, in order.
func NewServer(_ context.Context, profile *profile.Profile, api *apiv1.APIV1Service, metrics http.Handler, closers ...func() error) (*Server, error) {
	if api == nil || api.Turns == nil || api.Sessions == nil {
		return nil, errors.New("api service requires a turn processor and a session store")
	}

	s := &Server{
		Profile: profile,
		closers: closers,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestID())
	echoServer.Use(middleware.BodyLimit("64K"))
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("Request handled",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			)
			return nil
		},
	}))

	api.RegisterRoutes(echoServer)
	if metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(metrics))
	}

	s.echoServer = echoServer
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	go func() {
		if err := s.echoServer.Server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and releases the
// backends.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.InfoContext(ctx, "server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown server", "error", err)
	}
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			slog.ErrorContext(ctx, "failed to close backend", "error", err)
		}
	}
	slog.InfoContext(ctx, "server stopped properly")
}
