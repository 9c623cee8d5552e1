package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alextreichler/mayajewelry/internal/store"
)

// HomeHandler serves the built client bundle. Paths that are not files fall
// back to index.html so client side routes like /admin survive a reload.
type HomeHandler struct {
	StaticDir string
	files     http.Handler
}

// NewHomeHandler returns nil when dir does not exist; the API still works
// without a bundled client.
func NewHomeHandler(dir string) *HomeHandler {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return &HomeHandler{StaticDir: dir, files: http.FileServer(http.Dir(dir))}
}

func (h *HomeHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeMessage(w, http.StatusNotFound, "Not found")
		return
	}

	name := filepath.Join(h.StaticDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		h.files.ServeHTTP(w, r)
		return
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		writeError(w, r, http.StatusInternalServerError, "Failed to read static file", err)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.StaticDir, "index.html"))
}

// UploadsHandler serves saved order images. Directory listings are refused.
func UploadsHandler(dir string) http.Handler {
	files := http.StripPrefix(strings.TrimSuffix(store.UploadURLPrefix, "/"), http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
