// Package server exposes the detection and voiceprint engines over HTTP.
//
// Routes:
//
//	POST   /process_audio   multipart audio_files → per-file REAL/FAKE
//	GET    /audio_results   the verdict log
//	POST   /enroll          multipart username + audio_files
//	POST   /verify          multipart username + audio_file
//	GET    /users           enrolled user names
//	GET    /users/{name}    enrollment check
//	DELETE /users/{name}    remove a voiceprint
//	GET    /healthz
//
// Every request carries its own state; the server only holds the shared
// engines.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/haivivi/vocalis/pkg/audio/ingest"
	"github.com/haivivi/vocalis/pkg/detect"
	"github.com/haivivi/vocalis/pkg/results"
	"github.com/haivivi/vocalis/pkg/voiceprint"
)

// DefaultMaxUpload bounds the multipart body of one request.
const DefaultMaxUpload int64 = 64 << 20

// Deps are the engines the handlers call into.
type Deps struct {
	Pipeline *detect.Pipeline
	Results  results.Store
	Enroller *voiceprint.Enroller
	Verifier *voiceprint.Verifier

	// Speaker loads enrollment and test audio at the voiceprint rate.
	Speaker *ingest.Loader
}

// Server routes HTTP requests to the engines.
type Server struct {
	deps      Deps
	maxUpload int64
	logger    *slog.Logger
	mux       *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUpload bounds request bodies to n bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server over deps.
func New(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:      deps,
		maxUpload: DefaultMaxUpload,
		logger:    slog.Default(),
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /process_audio", s.handleProcessAudio)
	s.mux.HandleFunc("GET /audio_results", s.handleResults)
	s.mux.HandleFunc("POST /enroll", s.handleEnroll)
	s.mux.HandleFunc("POST /verify", s.handleVerify)
	s.mux.HandleFunc("GET /users", s.handleListUsers)
	s.mux.HandleFunc("GET /users/{name}", s.handleGetUser)
	s.mux.HandleFunc("DELETE /users/{name}", s.handleDeleteUser)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ServeHTTP implements http.Handler with request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
