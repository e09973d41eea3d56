package agent

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// initManagement configures the optional HTTP management endpoint with
// liveness and readiness probes.
func (s *Server) initManagement() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/-/healthy", func(c echo.Context) error {
		return c.String(http.StatusOK, "healthy")
	})
	e.GET("/-/ready", func(c echo.Context) error {
		if !s.Ready() {
			return c.String(http.StatusServiceUnavailable, "not ready")
		}
		return c.String(http.StatusOK, "ready")
	})
	e.GET("/-/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"agent":    agentID,
			"protocol": protocolVersion,
		})
	})

	s.Echo = e
}

// StartManagement serves the management endpoint. It returns immediately when
// no listen address is configured and blocks otherwise.
func (s *Server) StartManagement() error {
	if s.Config.Management.ListenAddress == "" {
		return nil
	}
	if s.Echo == nil {
		s.initManagement()
	}

	if err := s.Echo.Start(s.Config.Management.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start management server: %w", err)
	}
	return nil
}
