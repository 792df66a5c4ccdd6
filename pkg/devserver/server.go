// Package devserver is a self-contained board service speaking the same HTTP contract as the
// hosted one, backed by sqlite. It exists for local development and end-to-end tests.
package devserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/matt-steen/chore-board/pkg/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	editTokenHeader = "X-Edit-Token"
	dateLayout      = "2006-01-02"
	maxCodeAttempts = 5
)

// Server serves the board API under /api and a health check at /healthz.
type Server struct {
	db        *db.Database
	echo      *echo.Echo
	now       func() time.Time
	newCode   func() (string, error)
	authToken string
	logger    zerolog.Logger
	registry  prometheus.Registerer
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for completion times and the default chore date.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAuthToken requires "Authorization: Bearer <token>" on every /api request.
func WithAuthToken(token string) Option {
	return func(s *Server) {
		s.authToken = token
	}
}

// WithCodeGenerator replaces the random board code generator.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Server) {
		if gen != nil {
			s.newCode = gen
		}
	}
}

// WithRegisterer counts requests in reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a Server on top of database.
func New(database *db.Database, opts ...Option) *Server {
	s := &Server{
		db:      database,
		now:     time.Now,
		newCode: newBoardCode,
		logger:  log.Logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Error != nil {
				event = s.logger.Warn().Err(v.Error)
			}

			event.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")

			return nil
		},
	}))

	if s.registry != nil {
		e.Use(requestCounter(s.registry))
	}

	e.GET("/healthz", s.healthz)

	api := e.Group("/api")

	if s.authToken != "" {
		api.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(s.authToken)) == 1, nil
			},
		}))
	}

	api.POST("/boards", s.createBoard)
	api.GET("/boards/:code", s.getBoard)
	api.DELETE("/boards/:code", s.deleteBoard)
	api.POST("/boards/:code/participants", s.addParticipant)
	api.GET("/boards/:code/chores", s.listChores)
	api.POST("/boards/:code/chores", s.createChore)
	api.PATCH("/boards/:code/chores/assignees", s.assignChores)
	api.PUT("/boards/:code/chores/:id", s.updateChore)
	api.DELETE("/boards/:code/chores/:id", s.deleteChore)
	api.PATCH("/boards/:code/chores/:id/complete", s.toggleChore)
	api.PATCH("/boards/:code/chores/:id/order", s.orderChore)

	s.echo = e

	return s
}

// ServeHTTP lets the server be mounted on any http.Server or httptest.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("board service listening")

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error serving on %s: %w", addr, err)
	}

	return nil
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down board service: %w", err)
	}

	return nil
}

// sonicSerializer replaces echo's encoding/json serializer.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}

	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body").SetInternal(err)
	}

	return nil
}

func requestCounter(reg prometheus.Registerer) echo.MiddlewareFunc {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chore_board",
		Subsystem: "devserver",
		Name:      "requests_total",
		Help:      "Board service requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	reg.MustRegister(requests)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			requests.WithLabelValues(c.Request().Method, c.Path(), fmt.Sprint(status)).Inc()

			return err
		}
	}
}
