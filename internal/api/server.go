// Package api serves searches, counts and trees over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/search"
	"github.com/ca-srg/treesearch/internal/types"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RatePerMinute   int
	DefaultBudget   int
	MaxBudget       int
}

// DefaultServerConfig returns the default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "localhost",
		Port:            8090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RatePerMinute:   120,
		DefaultBudget:   500,
		MaxBudget:       5000,
	}
}

// ServerConfigFromConfig maps the application config onto a ServerConfig.
func ServerConfigFromConfig(cfg *types.Config) *ServerConfig {
	sc := DefaultServerConfig()
	if cfg == nil {
		return sc
	}
	sc.Host = cfg.APIHost
	sc.Port = cfg.APIPort
	sc.ReadTimeout = cfg.APIReadTimeout
	sc.WriteTimeout = cfg.APIWriteTimeout
	sc.ShutdownTimeout = cfg.APIShutdownTimeout
	sc.RatePerMinute = cfg.APIRatePerMinute
	sc.DefaultBudget = cfg.SearchBatchLimit
	sc.MaxBudget = cfg.SearchMaxBatchLimit
	return sc
}

// Catalog lists the corpora the server knows about.
type Catalog interface {
	HasComponent(corpus, component string) bool
	Components(corpus string) []string
	Treebanks() []types.Treebank
}

// Searcher runs one page of a search.
type Searcher interface {
	Search(ctx context.Context, plan types.SearchPlan, cursor types.Cursor, budget int) (*search.Page, error)
}

// Counter counts matches per component.
type Counter interface {
	Count(ctx context.Context, corpus string, components []string, pattern string) (map[string]int, error)
}

// TreeSource fetches the full tree of a sentence.
type TreeSource interface {
	Tree(ctx context.Context, corpus, component, database, sentenceID string) (string, error)
}

// Dependencies are the services behind the endpoints.
type Dependencies struct {
	Catalog  Catalog
	Searcher Searcher
	Counter  Counter
	Trees    TreeSource
}

// Server serves the search API
type Server struct {
	config       *ServerConfig
	deps         Dependencies
	limiter      *RateLimiter
	httpServer   *http.Server
	logger       *zap.Logger
	shutdownOnce sync.Once
}

// NewServer creates a new API server
func NewServer(serverConfig *ServerConfig, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if serverConfig == nil {
		serverConfig = DefaultServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Catalog == nil || deps.Searcher == nil || deps.Counter == nil || deps.Trees == nil {
		return nil, errors.New("api: catalog, searcher, counter and tree source are required")
	}
	if serverConfig.DefaultBudget <= 0 {
		return nil, fmt.Errorf("api: default budget must be positive, got %d", serverConfig.DefaultBudget)
	}
	if serverConfig.MaxBudget < serverConfig.DefaultBudget {
		serverConfig.MaxBudget = serverConfig.DefaultBudget
	}

	return &Server{
		config:  serverConfig,
		deps:    deps,
		limiter: NewRateLimiter(serverConfig.RatePerMinute, 0),
		logger:  logger.Named("api"),
	}, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.loggingMiddleware(s.rateLimitMiddleware(s.setupRoutes())))
}

// Run starts the server and blocks until context is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) shutdown() error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	})
	return shutdownErr
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/results", s.handleResults)
	mux.HandleFunc("/treebank_counts", s.handleCounts)
	mux.HandleFunc("/tree", s.handleTree)
	mux.HandleFunc("/configured_treebanks", s.handleTreebanks)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Health probes are too noisy to log
		if r.URL.Path == "/healthz" {
			return
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", requestIDFrom(r.Context())))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && !s.limiter.Allow(clientKey(r)) {
			s.writeError(w, r, http.StatusTooManyRequests, &ErrorResponse{
				Type:    types.ErrorTypeValidation,
				Message: "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
