package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyrunner/download"
	"github.com/caffeineduck/pyrunner/executor"
	"github.com/caffeineduck/pyrunner/installer"
	"github.com/caffeineduck/pyrunner/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for code execution",
	Long: `Start an HTTP server over one process-wide session. State, installed
packages and saved files persist across requests.

Endpoints:
  POST   /execute        Execute code, body {"code":"..."}
  GET    /status         Session state: uninitialized, initializing, ready, failed
  GET    /files          List saved files
  GET    /files/{name}   Download a saved file
  GET    /metrics        Prometheus metrics
  GET    /health         Health check

Only one execution runs at a time; concurrent requests get 409.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (default :8080)")
	addSessionFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

type executeRequest struct {
	Code string `json:"code"`
}

type fileInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type executeResponse struct {
	ID         string           `json:"id"`
	Output     string           `json:"output"`
	Empty      bool             `json:"empty"`
	Files      []fileInfo       `json:"files"`
	Packages   installer.Report `json:"packages"`
	DurationMs int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
}

type statusResponse struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
	Files int    `json:"files"`
}

type errorResponse struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// server exposes one session over HTTP.
type server struct {
	session *executor.Session
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newServer(session *executor.Session, m *metrics.Metrics, logger *slog.Logger) *server {
	return &server{session: session, metrics: m, logger: logger}
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/files", s.handleFiles).Methods(http.MethodGet)
	r.Handle("/files/{name}", download.Handler(s.session.Files())).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

// handler wraps routes with panic recovery and access logging.
func (s *server) handler() http.Handler {
	var h http.Handler = s.routes()
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return handlers.CombinedLoggingHandler(os.Stderr, h)
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ID: id, Error: "invalid json"})
		return
	}

	// Detached from the client: cancelling a run kills the runtime and fails
	// the shared session. The session timeout still applies.
	result := s.session.Execute(context.WithoutCancel(r.Context()), req.Code)
	s.metrics.Observe(result)

	if status := statusFor(result.Error); status != http.StatusOK {
		s.logger.Warn("execute rejected", "id", id, "status", status, "error", result.Error)
		writeJSON(w, status, errorResponse{ID: id, Error: result.Error.Error()})
		return
	}

	resp := executeResponse{
		ID:         id,
		Output:     result.Output,
		Empty:      result.Empty(),
		Files:      fileInfos(result.Files),
		Packages:   result.Packages,
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	s.logger.Info("executed", "id", id, "duration", result.Duration, "files", len(resp.Files), "error", resp.Error)
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps Execute errors to HTTP statuses. Exceptions raised by the
// code are a normal outcome and reported in the body.
func statusFor(err error) int {
	switch {
	case err == nil, errors.Is(err, executor.ErrExecution):
		return http.StatusOK
	case errors.Is(err, executor.ErrEmptySource):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, executor.ErrNotInitialized), errors.Is(err, executor.ErrSessionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State: s.session.State().String(),
		Files: s.session.Files().Len(),
	}
	if err := s.session.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fileInfos(s.session.ListProducedFiles()))
}

func fileInfos(files map[string][]byte) []fileInfo {
	out := make([]fileInfo, 0, len(files))
	for name, content := range files {
		out = append(out, fileInfo{
			Name: name,
			Size: len(content),
			Type: download.MimeType(name),
			URL:  "/files/" + url.PathEscape(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func runServe(cmd *cobra.Command, args []string) {
	eng, err := newEngine(cfg, false)
	if err != nil {
		fatal(cmd, err)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize in the background; /status reports progress and /execute
	// answers 503 until the session is ready.
	go eng.session.Initialize(ctx)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newServer(eng.session, metrics.New(), logger).handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("pyrunner server listening", "addr", cfg.Listen, "site_dir", eng.siteDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		eng.Close()
		fatal(cmd, err)
	}
}
