package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nav/navframe/internal/auth"
	"github.com/nav/navframe/internal/batch"
	"github.com/nav/navframe/internal/health"
	"github.com/nav/navframe/internal/metrics"
)

// Config holds API behavior limits.
type Config struct {
	// MaxBatchPoints caps the number of points in one batch request.
	MaxBatchPoints int
	// MaxBatchPerIP caps concurrent batch requests per client IP.
	MaxBatchPerIP int
	// TrustProxy enables X-Forwarded-For/X-Real-IP for client IPs.
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, pool *batch.Pool, cfg Config) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/ellipsoids", ellipsoidsHandler())
	mux.HandleFunc("POST /api/v1/convert/llh", convertLLHHandler())
	mux.HandleFunc("POST /api/v1/convert/ecef", convertECEFHandler())
	mux.HandleFunc("POST /api/v1/convert/ned", convertNEDHandler())
	mux.HandleFunc("POST /api/v1/convert/azel", convertAzElHandler())
	mux.HandleFunc("POST /api/v1/convert/batch", convertBatchHandler(logger, pool, cfg))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// quietPaths are probe endpoints whose requests log at Debug so liveness
// checks don't flood the request log.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// responseRecorder captures the status code and body size for the
// request log.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rr, r)

			level := slog.LevelInfo
			if quietPaths[r.URL.Path] {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rr.status,
				"bytes", rr.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"client", r.RemoteAddr,
			)
		})
	}
}
