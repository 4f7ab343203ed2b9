// Package httpserver exposes the bot's operational surface: health
// probes, version info, and Prometheus metrics. It serves no chat
// traffic; the bot's real work happens on the EventSub session.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Effex-D/twitch-bot/internal/eventsub"
	"github.com/Effex-D/twitch-bot/internal/platform/version"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sessionReporter is the readiness dependency, satisfied by
// eventsub.Manager.
type sessionReporter interface {
	State() eventsub.State
	SessionID() string
}

type Server struct {
	echo      *echo.Echo
	port      string
	session   sessionReporter
	startTime time.Time
}

func NewServer(port string, session sessionReporter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(newRateLimiter(10, 20))

	s := &Server{
		echo:      e,
		port:      port,
		session:   session,
		startTime: time.Now(),
	}

	e.GET("/health/live", s.handleLiveness)
	e.GET("/health/ready", s.handleReadiness)
	e.GET("/version", s.handleVersion)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

func (s *Server) Start() error {
	slog.Info("Starting status server", "port", s.port)
	return s.echo.Start(fmt.Sprintf(":%s", s.port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// handleReadiness reports ready only with a live chat session. During
// reconnects the bot is alive but not ready.
func (s *Server) handleReadiness(c echo.Context) error {
	state := s.session.State()
	if state != eventsub.StateActive {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":        "unhealthy",
			"session_state": state.String(),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ready",
		"session_state": state.String(),
		"session_id":    s.session.SessionID(),
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
