// Package server exposes a small HTTP surface for ops probes.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lumebot/lume/internal/bot"
	"github.com/lumebot/lume/internal/version"
)

type Server struct {
	echo *echo.Echo
	addr string
}

type statusResponse struct {
	Version   string `json:"version"`
	Enabled   bool   `json:"enabled"`
	UptimeSec int64  `json:"uptime_seconds"`
	Asked     int64  `json:"asked"`
	Completed int64  `json:"completed"`
	Rejected  int64  `json:"rejected"`
}

func NewServer(log *slog.Logger, addr string, service *bot.Service) *Server {
	if addr == "" {
		addr = ":8080"
	}

	startedAt := time.Now()
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			)
			return nil
		},
	}))

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	e.GET("/status", func(c echo.Context) error {
		asked, completed, rejected := service.Counters()
		return c.JSON(http.StatusOK, statusResponse{
			Version:   version.GetInfo(),
			Enabled:   service.Enabled(),
			UptimeSec: int64(time.Since(startedAt).Seconds()),
			Asked:     asked,
			Completed: completed,
			Rejected:  rejected,
		})
	})

	return &Server{echo: e, addr: addr}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
