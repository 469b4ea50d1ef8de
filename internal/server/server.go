package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

// maxUploadBytes caps the size of an ingested document.
const maxUploadBytes = 20 << 20

// Agent is the subset of the query pipeline the HTTP layer calls.
type Agent interface {
	Mode() string
	Ingest(ctx context.Context, data []byte, filename string) (domain.IngestResult, error)
	Clear(ctx context.Context) (string, error)
	Query(ctx context.Context, question string) (domain.QueryResponse, error)
	Stream(ctx context.Context, question string, emit func(domain.StreamEvent) error) error
	Execute(ctx context.Context, code string) domain.ExecutionOutcome
}

// Server manages the HTTP server and routes
type Server struct {
	agent    Agent
	logger   arbor.ILogger
	validate *validator.Validate
	router   *http.ServeMux
	server   *http.Server
}

// New creates the HTTP server. Nothing listens until Start.
func New(agent Agent, addr string, logger arbor.ILogger) *Server {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("notblank", validators.NotBlank)

	s := &Server{agent: agent, logger: logger, validate: validate}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// a query may wait on the model and then on a sandbox run
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routed handler with middleware, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Str("mode", s.agent.Mode()).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /query/stream", s.handleQueryStream)
	mux.HandleFunc("GET /query/ws", s.handleQueryWebSocket)
	mux.HandleFunc("DELETE /documents", s.handleClear)
	mux.HandleFunc("POST /execute", s.handleExecute)
	return mux
}
