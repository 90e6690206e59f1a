package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler serves the bundled web UI. Unknown paths fall back to index.html
// so client-side routes survive a reload.
type StaticHandler struct {
	dir        string
	fileServer http.Handler
}

// NewStaticHandler creates a StaticHandler rooted at dir.
func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{dir: dir, fileServer: http.FileServer(http.Dir(dir))}
}

// ServeHTTP implements http.Handler.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	if _, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(clean))); err != nil && !strings.HasPrefix(clean, "/assets/") {
		http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
		return
	}
	h.fileServer.ServeHTTP(w, r)
}
