// Package server exposes the completion gateway over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/knight1008610000/codegen-server/internal/catalog"
	"github.com/knight1008610000/codegen-server/internal/config"
	"github.com/knight1008610000/codegen-server/internal/provider"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 45 * time.Second
	idleTimeout         = 120 * time.Second
)

// Error codes surfaced in the response envelope.
const (
	codeInvalidParams = "INVALID_PARAMS"
	codeInvalidJSON   = "INVALID_JSON"
	codeAPITimeout    = "API_TIMEOUT"
	codeAPIConnection = "API_CONNECTION_ERROR"
	codeAPIError      = "API_ERROR"
	codeInternalError = "INTERNAL_ERROR"
)

type Server struct {
	cfg      config.Config
	registry *provider.Registry
	app      *echo.Echo
	address  string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, registry *provider.Registry) (*Server, error) {
	if registry == nil {
		return nil, errors.New("registry must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = envelopeErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"error", v.Error,
			)
			return nil
		},
	}))
	// The editor plugin runs in browser-like contexts with arbitrary
	// origins; preflight OPTIONS is answered here, never by handlers.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	srv := &Server{
		cfg:      cfg,
		registry: registry,
		app:      e,
		address:  fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/completion", s.handleCompletion)
	s.app.POST("/chat", s.handleChat)
	s.app.GET("/models", s.handleModels)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requestError is an error the envelope handler knows how to serialise.
type requestError struct {
	Status  int
	Code    string
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

type errorEnvelope struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code"`
	Error     string `json:"error"`
}

func writeError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, errorEnvelope{Success: false, ErrorCode: code, Error: message})
}

func envelopeErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Code, reqErr.Message)
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := codeInternalError
		if httpErr.Code >= 400 && httpErr.Code < 500 {
			code = codeInvalidParams
		}
		_ = writeError(c, httpErr.Code, code, fmt.Sprintf("%v", httpErr.Message))
		return
	}

	_ = writeError(c, http.StatusInternalServerError, codeInternalError, "internal server error")
}

// mapError converts catalog and provider failures into the client-facing
// envelope. Client-caused selection errors get 400; anything attributable to
// configuration or the upstream gets 500 with a distinguishing code. Messages
// never include credentials.
func mapError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, catalog.ErrUnknownProvider), errors.Is(err, catalog.ErrUnsupportedModel):
		return requestError{Status: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, provider.ErrMissingCredential):
		return requestError{Status: http.StatusInternalServerError, Code: codeInternalError, Message: err.Error()}
	case errors.Is(err, provider.ErrTimeout):
		return requestError{Status: http.StatusInternalServerError, Code: codeAPITimeout, Message: err.Error()}
	case errors.Is(err, provider.ErrUnreachable):
		return requestError{Status: http.StatusInternalServerError, Code: codeAPIConnection, Message: err.Error()}
	}

	var upErr *provider.UpstreamError
	if errors.As(err, &upErr) {
		return requestError{Status: http.StatusInternalServerError, Code: codeAPIError, Message: upErr.Error()}
	}

	return requestError{Status: http.StatusInternalServerError, Code: codeInternalError, Message: "internal server error"}
}

func printStartupBanner(port int) {
	fmt.Println()
	fmt.Println("codegen-server ready")
	fmt.Printf("Listening on http://127.0.0.1:%d\n", port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /completion")
	fmt.Println("  POST /chat")
	fmt.Println("  GET  /models")
	fmt.Println()
}
