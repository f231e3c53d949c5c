package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"answerd/internal/generation"
	"answerd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	// Generate starts a session and streams it as NDJSON until it finishes.
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	Start(ctx context.Context, req types.GenerateRequest) (*generation.Session, error)
	Session(id string) (types.SessionStatus, error)
	Stream(ctx context.Context, id string, w io.Writer, flush func()) error
	Interrupt(id string) error
}

// NewMux builds the HTTP API router.
//
//	POST /generate                  NDJSON stream of a new session
//	POST /sessions                  start a session in the background
//	GET  /sessions/{id}             session snapshot
//	GET  /sessions/{id}/stream      NDJSON stream of an existing session
//	POST /sessions/{id}/interrupt   interrupt a session (idempotent)
//	GET  /models, /status, /healthz, /readyz, /metrics
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(requestLogger)
	// Compression for JSON endpoints; NDJSON is not in the compressible set.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: orDefault(corsAllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level", "X-Request-Id"}),
			MaxAge:         300,
		}))
	}

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		ctx, cancel := streamContext(r)
		defer cancel()
		streamNDJSON(w, r, "generate", func(out io.Writer, flush func()) error {
			return svc.Generate(ctx, req, out, flush)
		})
	})

	r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		s, err := svc.Start(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, types.SessionCreated{ID: s.ID()})
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Session(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Get("/sessions/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		// Fail before committing to a streaming response.
		if _, err := svc.Session(id); err != nil {
			writeError(w, r, err)
			return
		}
		ctx, cancel := streamContext(r)
		defer cancel()
		streamNDJSON(w, r, "stream", func(out io.Writer, flush func()) error {
			return svc.Stream(ctx, id, out, flush)
		})
	})

	r.Post("/sessions/{id}/interrupt", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Interrupt(chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (types.GenerateRequest, bool) {
	var req types.GenerateRequest
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Oversized bodies also land here; 400 avoids leaking the limit.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" && len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "query or messages required")
		return req, false
	}
	return req, true
}

// streamNDJSON runs fn with an NDJSON writer. Errors before the first byte
// map to a JSON error response; later errors end the stream.
func streamNDJSON(w http.ResponseWriter, r *http.Request, op string, fn func(io.Writer, func()) error) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	lvl := requestLogLevel(r)
	log := zerolog.Ctx(r.Context())
	cw := &countingWriter{w: w}
	out := io.Writer(cw)
	if lvl >= LevelDebug {
		out = io.MultiWriter(cw, &loggingLineWriter{log: log, op: op})
	}
	start := time.Now()
	if lvl >= LevelInfo {
		log.Info().Str("path", r.URL.Path).Msg(op + " start")
	}
	err := fn(out, flush)
	streamBytesTotal.WithLabelValues(op).Add(float64(cw.n))
	if err != nil {
		// Client gone or server shutting down: nothing left to tell anyone.
		if streamAbandoned(r) {
			return
		}
		if cw.n == 0 {
			writeError(w, r, err)
		}
		if lvl >= LevelError {
			log.Error().Err(err).Int("status", statusFor(err)).Dur("dur", time.Since(start)).Msg(op + " end")
		}
		return
	}
	if lvl >= LevelInfo {
		log.Info().Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg(op + " end")
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
