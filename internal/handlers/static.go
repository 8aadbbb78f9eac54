package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/imgshare/apiserver/internal/storage"
	"github.com/rs/zerolog"
)

// ObjectReader opens stored objects by key.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// UploadsHandler serves stored upload files by their generated name.
func UploadsHandler(objects ObjectReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" || strings.ContainsAny(filename, `/\`) || strings.HasPrefix(filename, ".") {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}

		body, err := objects.Get(r.Context(), filename)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				writeError(w, http.StatusNotFound, "file not found")
				return
			}
			zerolog.Ctx(r.Context()).Error().Err(err).Str("filename", filename).Msg("failed to open upload")
			writeError(w, http.StatusInternalServerError, "failed to read file")
			return
		}
		defer body.Close()

		contentType := mime.TypeByExtension(path.Ext(filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", storage.ImmutableCacheControl)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("filename", filename).Msg("upload copy interrupted")
		}
	}
}

// SPA serves the built frontend from dir. Existing files are served as-is;
// any other path gets index.html so client-side routes resolve.
func SPA(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean("/" + r.URL.Path)
		if reqPath == "/" {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, indexPath)
			return
		}

		staticPath := filepath.Join(dir, filepath.FromSlash(reqPath))
		if info, err := os.Stat(staticPath); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, indexPath)
	})
}
