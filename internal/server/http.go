package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/logger"
	"github.com/nursmen/neuralhire/internal/metrics"
	"github.com/nursmen/neuralhire/internal/ranking"
	"github.com/nursmen/neuralhire/internal/repository"
	"github.com/nursmen/neuralhire/internal/service"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Matcher is the application surface served over HTTP.
type Matcher interface {
	Rank(ctx context.Context, req ranking.Request) (*ranking.Result, error)
	Explain(ctx context.Context, req service.ExplainRequest) (string, error)
	Catalog() *jobtext.Catalog
}

// Pinger reports dependency readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPServer serves the JSON API
type HTTPServer struct {
	server  *http.Server
	router  *chi.Mux
	matcher Matcher
	ready   Pinger
	logger  *zap.Logger
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port           int
	Logger         *zap.Logger
	AllowedOrigins []string // CORS allowed origins
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg HTTPServerConfig, matcher Matcher, ready Pinger) *HTTPServer {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &HTTPServer{
		router:  chi.NewRouter(),
		matcher: matcher,
		ready:   ready,
		logger:  log,
	}

	// Add middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLoggingMiddleware(log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware(cfg.AllowedOrigins))
	s.router.Use(metrics.Middleware())

	s.router.Get("/healthz", healthCheckHandler())
	s.router.Get("/readyz", s.readinessCheckHandler())
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/rank", s.handleRank)
		r.Post("/explain", s.handleExplain)
		r.Get("/tags", s.handleTags)
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

type rankRequest struct {
	Query  string   `json:"query"`
	Tags   []string `json:"tags"`
	UseLLM bool     `json:"use_llm"`
}

type jobResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	City      string    `json:"city"`
	Salary    *int64    `json:"salary"`
	Knowledge string    `json:"knowledge"`
	Additions []string  `json:"additions"`
	Link      string    `json:"link"`
	Score     float64   `json:"score"`
	Source    string    `json:"source"`
}

type stepResponse struct {
	Stage      string  `json:"stage"`
	Initial    int     `json:"initial"`
	Dropped    int     `json:"dropped"`
	Left       int     `json:"left"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

type rankResponse struct {
	Jobs        []jobResponse  `json:"jobs"`
	NoMatches   bool           `json:"no_matches"`
	Reason      string         `json:"reason,omitempty"`
	LLMFallback bool           `json:"llm_fallback"`
	Steps       []stepResponse `json:"steps"`
}

func (s *HTTPServer) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.matcher.Rank(r.Context(), ranking.Request{Query: req.Query, Tags: req.Tags, UseLLM: req.UseLLM})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := rankResponse{
		Jobs:        make([]jobResponse, 0, len(res.Jobs)),
		NoMatches:   res.NoMatches,
		Reason:      res.Reason,
		LLMFallback: res.LLMFallback,
		Steps:       make([]stepResponse, 0, len(res.Steps)),
	}
	for _, j := range res.Jobs {
		resp.Jobs = append(resp.Jobs, jobResponse{
			ID:        j.JobID,
			Title:     j.Job.Title,
			Company:   jobtext.CleanField(j.Job.Company),
			City:      jobtext.CleanField(j.Job.City),
			Salary:    j.Job.Salary,
			Knowledge: j.Job.Knowledge,
			Additions: jobtext.SplitAdditions(j.Job.Additions),
			Link:      j.Job.Link,
			Score:     j.Score,
			Source:    j.Source,
		})
	}
	for _, st := range res.Steps {
		resp.Steps = append(resp.Steps, stepResponse{
			Stage:      st.Stage,
			Initial:    st.Initial,
			Dropped:    st.Dropped(),
			Left:       st.Left,
			DurationMS: float64(st.Duration.Microseconds()) / 1000,
			Note:       st.Note,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type explainRequest struct {
	Query  string      `json:"query"`
	JobIDs []uuid.UUID `json:"job_ids"`
}

func (s *HTTPServer) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !decode(w, r, &req) {
		return
	}

	text, err := s.matcher.Explain(r.Context(), service.ExplainRequest{Query: req.Query, JobIDs: req.JobIDs})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": text})
}

func (s *HTTPServer) handleTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tags": s.matcher.Catalog().Tags})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to an HTTP status and a user-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ranking.ErrEmptyQuery):
		return http.StatusBadRequest, "empty query"
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ranking.ErrDimensionMismatch):
		return http.StatusInternalServerError, "vector dimension mismatch"
	case errors.Is(err, ranking.ErrQueryNotProcessed):
		return http.StatusBadGateway, "could not process query"
	case errors.Is(err, ranking.ErrRerankFailed):
		return http.StatusBadGateway, "rerank failed"
	case errors.Is(err, service.ErrExplainUnavailable):
		return http.StatusNotImplemented, "explanations are not configured"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	log := logger.FromContext(r.Context(), nil)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", code), zap.Error(err))
	} else {
		log.Info("request rejected", zap.Int("status", code), zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLoggingMiddleware logs HTTP requests and attaches a request-scoped logger
func requestLoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := log.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			r = r.WithContext(logger.ContextWithLogger(r.Context(), reqLog))

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			reqLog.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 {
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// readinessCheckHandler reports whether the job store answers.
func (s *HTTPServer) readinessCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.ready.Ping(ctx); err != nil {
				logger.FromContext(r.Context(), s.logger).Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
