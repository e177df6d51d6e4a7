package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/structs"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.Level(slog.LevelDebug - 1)

var logger = slog.New(slog.DiscardHandler)

// Server serves the metrics of a Source on /metrics and a JSON snapshot of
// its statistics on /stats.
type Server struct {
	Config

	server *echo.Echo
}

func (s *Server) String() string {
	return "metrics"
}

func NewServer(c *Config, src Source) (*Server, error) {
	if c == nil {
		c = &DefaultConfig
	}

	if c.Log {
		logger = slog.Default().With("t", "metrics")
	} else {
		logger = slog.New(slog.DiscardHandler)
	}

	// Create a non-global registry.
	reg := prometheus.NewRegistry()
	if err := Register(reg, src); err != nil {
		return nil, fmt.Errorf("error registering the metrics: %w", err)
	}

	s := Server{Config: *c, server: echo.New()}

	s.server.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	s.server.GET("/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, structs.Map(src.Stats()))
	})

	// Prevent the banner from showing up in the log
	s.server.HideBanner = true
	s.server.HidePort = true

	return &s, nil
}

// Handler returns the server's routes as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.server
}

// Run serves until done is closed.
func (s *Server) Run(done <-chan struct{}) {
	logger.Debug("running the metrics server", "address", s.BindAddress, "port", s.Port)

	go func() {
		if err := s.server.Start(fmt.Sprintf("%s:%d", s.BindAddress, s.Port)); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("couldn't start the metrics server", "err", err)
		}
	}()

	<-done
	logger.Debug("cleanly exiting the metrics server")
}

func (s *Server) Cleanup() error {
	logger.Debug("cleaning up the metrics server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down the metrics server: %w", err)
	}
	return nil
}
