// Package webhook exposes the inbound HTTP listener that feeds raw signals
// into the pipeline.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tathienbao/signal-bridge/internal/signal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Processor runs one raw signal through the pipeline.
type Processor interface {
	Process(ctx context.Context, raw signal.Raw) types.ExecutionOutcome
}

// ServerConfig holds webhook listener settings.
type ServerConfig struct {
	Port         int
	Path         string
	AuthToken    string // empty disables auth
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         8080,
		Path:         "/signal",
		MaxBodyBytes: 64 * 1024,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server accepts signal webhooks and hands them to the processor.
type Server struct {
	cfg       ServerConfig
	logger    *slog.Logger
	processor Processor
	srv       *http.Server
}

// NewServer creates a webhook server.
func NewServer(cfg ServerConfig, processor Processor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultServerConfig().Path
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		processor: processor,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.signalHandler)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("webhook server starting", "addr", s.srv.Addr, "path", s.cfg.Path)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server. In-flight pipeline runs finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("webhook server shutting down")
	return s.srv.Shutdown(ctx)
}

// signalHandler decodes one raw signal, runs the pipeline and writes the
// structured outcome. The outcome body is always JSON; HTTP status carries
// the coarse result.
func (s *Server) signalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.authorized(r) {
		s.logger.Warn("webhook unauthorized", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var raw signal.Raw
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.logger.Warn("webhook payload undecodable", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	raw.ReceivedAt = time.Now().UTC()

	outcome := s.processor.Process(r.Context(), raw)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(outcome.Status))
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		s.logger.Error("encode outcome", "outcome_id", outcome.ID, "error", err)
	}
}

// authorized checks the bearer token when one is configured.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	token := r.Header.Get("Authorization")
	want := "Bearer " + s.cfg.AuthToken
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// statusCode maps a pipeline outcome to an HTTP status. Partial executions
// still return 200; the body distinguishes them.
func statusCode(status types.OutcomeStatus) int {
	if status == types.OutcomeError {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
