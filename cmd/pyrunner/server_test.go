package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/pyrunner/executor"
	"github.com/caffeineduck/pyrunner/executor/executortest"
	"github.com/caffeineduck/pyrunner/internal/metrics"
)

func setupTestServer(t *testing.T, initialize bool) (*server, *executortest.Interpreter, http.Handler) {
	t.Helper()

	interp := executortest.New()
	session := executor.NewSession(interp, executor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() { session.Close() })

	if initialize {
		require.NoError(t, session.Initialize(context.Background()))
	}

	srv := newServer(session, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv, interp, srv.routes()
}

func doExecute(t *testing.T, h http.Handler, code string) (*httptest.ResponseRecorder, executeResponse) {
	t.Helper()
	body, _ := json.Marshal(executeRequest{Code: code})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(body)))

	var resp executeResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHealthEndpoint(t *testing.T) {
	_, _, h := setupTestServer(t, false)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, h := setupTestServer(t, false)

	status := func() statusResponse {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp statusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	assert.Equal(t, "uninitialized", status().State)
	require.NoError(t, srv.session.Initialize(context.Background()))
	assert.Equal(t, "ready", status().State)
}

func TestExecuteNotInitialized(t *testing.T) {
	_, interp, h := setupTestServer(t, false)

	w, _ := doExecute(t, h, "print hi")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, interp.Execs())
}

func TestExecuteEndpoint(t *testing.T) {
	_, _, h := setupTestServer(t, true)

	w, resp := doExecute(t, h, "print hello")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello\n", resp.Output)
	assert.False(t, resp.Empty)
	assert.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, resp.ID, w.Header().Get("X-Request-ID"))

	_, resp = doExecute(t, h, "x = 1")
	assert.True(t, resp.Empty)
}

func TestExecuteEmptySource(t *testing.T) {
	_, _, h := setupTestServer(t, true)

	w, _ := doExecute(t, h, "   ")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no code to execute")
}

func TestExecuteInvalidJSON(t *testing.T) {
	_, _, h := setupTestServer(t, true)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteException(t *testing.T) {
	_, _, h := setupTestServer(t, true)

	w, resp := doExecute(t, h, "print partial\nraise ValueError: bad")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial\n", resp.Output)
	assert.Equal(t, "ValueError: bad", resp.Error)
}

func TestExecuteBusy(t *testing.T) {
	_, interp, h := setupTestServer(t, true)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(`{"code":"block"}`)))
	}()

	select {
	case <-interp.Blocked():
	case <-time.After(2 * time.Second):
		t.Fatal("first execution never started")
	}

	w, _ := doExecute(t, h, "print second")
	assert.Equal(t, http.StatusConflict, w.Code)

	interp.Release()
	wg.Wait()
}

func TestExecuteClientDisconnect(t *testing.T) {
	srv, interp, h := setupTestServer(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(`{"code":"block\nprint finished"}`))
		h.ServeHTTP(w, req.WithContext(ctx))
		done <- w.Code
	}()

	select {
	case <-interp.Blocked():
	case <-time.After(2 * time.Second):
		t.Fatal("execution never started")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("run ended when the client went away")
	case <-time.After(50 * time.Millisecond):
	}
	interp.Release()
	assert.Equal(t, http.StatusOK, <-done)

	assert.Equal(t, executor.StateReady, srv.session.State())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Contains(t, w.Body.String(), `"ready"`)

	w, resp := doExecute(t, h, "print hi")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi\n", resp.Output)
}

func TestExecuteRuntimeExit(t *testing.T) {
	_, _, h := setupTestServer(t, true)

	w, _ := doExecute(t, h, "exit")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w, _ = doExecute(t, h, "print hi")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFilesEndpoints(t *testing.T) {
	_, _, h := setupTestServer(t, true)

	_, resp := doExecute(t, h, "save report.csv a,b\nsave notes.txt hi")
	require.Len(t, resp.Files, 2)
	assert.Equal(t, fileInfo{Name: "notes.txt", Size: 2, Type: "text/plain", URL: "/files/notes.txt"}, resp.Files[0])
	assert.Equal(t, "report.csv", resp.Files[1].Name)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))
	var list []fileInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/report.csv", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "a,b", w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, h := setupTestServer(t, true)
	doExecute(t, h, "print hi")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pyrunner_executions_total{outcome="ok"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, h := setupTestServer(t, true)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/execute", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusFor(nil))
	assert.Equal(t, http.StatusOK, statusFor(&executor.ExecError{Message: "x"}))
	assert.Equal(t, http.StatusConflict, statusFor(executor.ErrSessionBusy))
	assert.Equal(t, http.StatusBadRequest, statusFor(executor.ErrEmptySource))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(executor.ErrNotInitialized))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(executor.ErrSessionClosed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(executor.ErrRuntimeExited))
}
