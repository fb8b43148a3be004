// Package api serves the operations HTTP API: manual checks, read-only views
// of checks and alerts, Prometheus metrics and a websocket event feed.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/errors"
	"github.com/loghealer/healthmon/internal/logger"
)

// DefaultListen is used when no listen address is configured.
const DefaultListen = ":8080"

// Server owns the echo instance and its lifecycle.
type Server struct {
	echo       *echo.Echo
	controller *Controller
	listen     string
	log        logger.Logger
}

// NewServer builds the router for deps.
func NewServer(settings *conf.APISettings, deps *Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Module("api")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(settings.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: settings.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		}))
	}
	e.Use(requestLogger(log))

	listen := settings.Listen
	if listen == "" {
		listen = DefaultListen
	}

	c := NewController(e.Group("/api/v1"), deps, log)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}
	return &Server{echo: e, controller: c, listen: listen, log: log}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", logger.String("listen", s.listen))
		if err := s.echo.Start(s.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.New(err).
				Component("api").
				Category(errors.CategoryNetwork).
				Context("listen", s.listen).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	s.controller.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("operation", "shutdown").
			Build()
	}
	s.log.Info("api server stopped")
	return nil
}

func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				log.Warn("request failed", append(fields, logger.Error(v.Error))...)
				return nil
			}
			log.Debug("request", fields...)
			return nil
		},
	})
}
