package download

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/mux"
)

// Source is a produced file set.
type Source interface {
	Get(name string) ([]byte, bool)
}

// Handler serves one produced file per request. The name comes from the
// mux route variable "name", or the last path element when the route has
// none. Unknown names get 404.
func Handler(files Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := mux.Vars(r)["name"]
		if !ok {
			name = path.Base(r.URL.Path)
		}

		content, ok := files.Get(name)
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", MimeType(name))
		w.Header().Set("Content-Disposition", ContentDisposition(name))
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(content))
	})
}

// ContentDisposition returns an attachment header value for name.
func ContentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return fmt.Sprintf("attachment; filename=%q", path.Base(name))
}
