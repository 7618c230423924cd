package download

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/pyrunner/hostfunc"
)

func TestMimeType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"report.csv", "text/csv"},
		{"notes.txt", "text/plain"},
		{"page.HTML", "text/html"},
		{"page.htm", "text/html"},
		{"a.b.json", "application/json"},
		{"photo.JPG", "image/jpeg"},
		{"doc.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"unknown.xyz", DefaultMimeType},
		{"README", DefaultMimeType},
		{"trailing.", DefaultMimeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeType(tt.name))
		})
	}
}

func newRouter(files *hostfunc.Files) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/files/{name}", Handler(files)).Methods(http.MethodGet)
	return r
}

func TestHandlerServesFile(t *testing.T) {
	files := hostfunc.NewFiles()
	files.Put("report.csv", []byte("a,b\n1,2\n"))
	files.Put("raw.bin", []byte{0, 1, 2, 255})

	srv := httptest.NewServer(newRouter(files))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/files/report.csv")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=report.csv`, resp.Header.Get("Content-Disposition"))

	rec := httptest.NewRecorder()
	newRouter(files).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/raw.bin", nil))
	assert.Equal(t, []byte{0, 1, 2, 255}, rec.Body.Bytes())
	assert.Equal(t, DefaultMimeType, rec.Header().Get("Content-Type"))
}

func TestHandlerNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(hostfunc.NewFiles()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerWithoutRouteVars(t *testing.T) {
	files := hostfunc.NewFiles()
	files.Put("out.txt", []byte("hi"))

	rec := httptest.NewRecorder()
	Handler(files).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/out.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}

func TestContentDispositionQuotes(t *testing.T) {
	assert.Equal(t, `attachment; filename="my report.txt"`, ContentDisposition("my report.txt"))
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files := map[string][]byte{
		"b.txt":            []byte("bee"),
		"a.bin":            {0, 255},
		"../../escape.txt": []byte("nope"),
	}

	written, err := WriteDir(dir, files)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "escape.txt"),
		filepath.Join(dir, "a.bin"),
		filepath.Join(dir, "b.txt"),
	}, written)

	got, err := os.ReadFile(filepath.Join(dir, "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255}, got)

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteDirEmpty(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteDir(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestWriteDirNameCollision(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files := map[string][]byte{
		"a/x.txt": []byte("first"),
		"b/x.txt": []byte("second"),
		"y.txt":   []byte("ok"),
	}

	written, err := WriteDir(dir, files)
	require.ErrorIs(t, err, ErrNameCollision)
	assert.Contains(t, err.Error(), `"a/x.txt" and "b/x.txt"`)
	assert.Empty(t, written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written when names collide")
}
