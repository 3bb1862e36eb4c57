// Package server hosts the HTTP API.
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

	"github.com/hrygo/studynotes/ai/intent"
	"github.com/hrygo/studynotes/ai/rag"
	"github.com/hrygo/studynotes/internal/profile"
	"github.com/hrygo/studynotes/internal/version"
	apiv1 "github.com/hrygo/studynotes/server/router/api/v1"
)

// Dependencies are the services the server exposes.
type Dependencies struct {
	Classifier *intent.Classifier
	Configs    *intent.ConfigStore
	Pipeline   *rag.Pipeline
	Metrics    http.Handler // nil disables /metrics
}

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
}

func NewServer(profile *profile.Profile, deps Dependencies) *Server {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.BodyLimit("1M"))
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.LogAttrs(c.Request().Context(), slog.LevelDebug, "HTTP request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	s := &Server{
		Profile:    profile,
		echoServer: echoServer,
	}

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":  "ok",
			"version": version.Get(),
		})
	})
	if deps.Metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	apiv1.NewAPIV1Service(profile, deps.Classifier, deps.Configs, deps.Pipeline).RegisterRoutes(echoServer)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the profile's address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.echoServer.Listener = listener

	slog.Info("Server listening", "address", listener.Addr().String(), "mode", s.Profile.Mode)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("Server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("Failed to shutdown server", "error", err)
	}
	slog.Info("Server stopped properly")
}
