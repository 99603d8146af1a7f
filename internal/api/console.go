package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ConsoleRoutes serves the operator console from webFS: index.html at /
// and assets under /static/.
func ConsoleRoutes(r chi.Router, webFS fs.FS) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, webFS, "index.html")
	})
	r.Handle("/static/*", http.FileServerFS(webFS))
}
