package http

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/transport"
)

// spaHandler serves a single-page application bundle. Existing files are
// served as-is; any other path gets index.html so client-side routes load
// the app.
func spaHandler(fsys fs.FS) http.Handler {
	files := http.FileServerFS(fsys)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			transport.WriteAPIError(w, api.NewNotFoundError("no such endpoint: "+r.URL.Path))
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" || name == "index.html" {
			serveIndex(w, fsys)
			return
		}
		if info, err := fs.Stat(fsys, name); err != nil || info.IsDir() {
			serveIndex(w, fsys)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func serveIndex(w http.ResponseWriter, fsys fs.FS) {
	b, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		http.Error(w, "index.html not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(b)
}
