// Package web serves the embedded admin UI. Unknown paths fall back to
// index.html so client-side routing works after a page reload.
package web

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var dist embed.FS

// Handler serves the packaged frontend from the binary.
func Handler() http.Handler {
	assets, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}
	return &spaHandler{assets: assets}
}

type spaHandler struct {
	assets fs.FS
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" || name == "." {
		name = "index.html"
	}

	data, err := fs.ReadFile(h.assets, name)
	if err != nil {
		// SPA fallback: let the frontend router handle the path.
		name = "index.html"
		data, err = fs.ReadFile(h.assets, name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
