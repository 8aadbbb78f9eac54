package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/imgshare/apiserver/internal/services"
	"github.com/imgshare/apiserver/internal/store"
	"github.com/imgshare/apiserver/internal/upload"
	"github.com/imgshare/apiserver/types"
	"github.com/rs/zerolog"
)

// MaxImageNameLength is the longest accepted image name, in characters.
const MaxImageNameLength = 100

// ImageStore is the image use-case surface the routes depend on.
type ImageStore interface {
	ListWithAuthors(ctx context.Context, nameFilter string) ([]types.ImageView, error)
	GetByID(ctx context.Context, id string) (types.Image, error)
	UpdateName(ctx context.Context, id, name, username string) (services.UpdateResult, error)
	Save(ctx context.Context, src, name, owner string) (types.Image, error)
}

// Uploader parses and stores a multipart image upload.
type Uploader interface {
	Parse(w http.ResponseWriter, r *http.Request) (upload.Form, error)
	Store(ctx context.Context, file upload.File) (string, error)
	Discard(ctx context.Context, src string) error
}

// ImageHandler serves the image gallery endpoints.
type ImageHandler struct {
	images  ImageStore
	uploads Uploader
}

// NewImageHandler constructs an ImageHandler.
func NewImageHandler(images ImageStore, uploads Uploader) *ImageHandler {
	return &ImageHandler{images: images, uploads: uploads}
}

// ImageRouter registers image routes. Callers mount it behind RequireAuth.
func ImageRouter(r chi.Router, images ImageStore, uploads Uploader) {
	handler := NewImageHandler(images, uploads)

	r.Get("/", handler.List)
	r.Get("/search", handler.Search)
	r.Post("/", handler.Create)
	r.Patch("/{imageId}", handler.Rename)
}

type RenameRequest struct {
	Name string `json:"name"`
}

type CreateImageResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

// List returns every image with its author.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	h.writeImages(w, r, "")
}

// Search returns images whose name contains the name query parameter.
func (h *ImageHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name query parameter")
		return
	}
	h.writeImages(w, r, name)
}

func (h *ImageHandler) writeImages(w http.ResponseWriter, r *http.Request, filter string) {
	views, err := h.images.ListWithAuthors(r.Context(), filter)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("filter", filter).Msg("failed to list images")
		writeError(w, http.StatusInternalServerError, "failed to fetch images")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Rename changes the name of an image owned by the caller.
func (h *ImageHandler) Rename(w http.ResponseWriter, r *http.Request) {
	username, err := UsernameFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RenameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, status, msg := validateImageName(req.Name)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	id := chi.URLParam(r, "imageId")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}

	logger := zerolog.Ctx(r.Context())
	if _, err := h.images.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		logger.Error().Err(err).Str("image_id", id).Msg("failed to load image")
		writeError(w, http.StatusInternalServerError, "failed to update image")
		return
	}

	result, err := h.images.UpdateName(r.Context(), id, name, username)
	if err != nil {
		logger.Error().Err(err).Str("image_id", id).Msg("failed to rename image")
		writeError(w, http.StatusInternalServerError, "failed to update image")
		return
	}
	switch {
	case !result.IsOwner:
		writeError(w, http.StatusForbidden, "you can only rename your own images")
	case !result.Matched:
		writeError(w, http.StatusNotFound, "image not found")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Create stores an uploaded image file and records it for the caller.
func (h *ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, err := UsernameFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	form, err := h.uploads.Parse(w, r)
	if err != nil {
		if upload.IsClientError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read upload")
		writeError(w, http.StatusInternalServerError, "failed to upload image")
		return
	}

	name, status, msg := validateImageName(form.Name)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	logger := zerolog.Ctx(r.Context())
	src, err := h.uploads.Store(r.Context(), form.File)
	if err != nil {
		logger.Error().Err(err).Msg("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to upload image")
		return
	}

	image, err := h.images.Save(r.Context(), src, name, username)
	if err != nil {
		logger.Error().Err(err).Str("src", src).Msg("failed to save image")
		if derr := h.uploads.Discard(context.WithoutCancel(r.Context()), src); derr != nil {
			logger.Warn().Err(derr).Str("src", src).Msg("failed to remove orphaned upload")
		}
		writeError(w, http.StatusInternalServerError, "failed to upload image")
		return
	}

	writeJSON(w, http.StatusCreated, CreateImageResponse{
		ID:   image.ID,
		Name: image.Name,
		Src:  image.Src,
	})
}

// validateImageName trims name and returns a non-zero status when it is
// empty or too long.
func validateImageName(name string) (string, int, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", http.StatusBadRequest, "name is required"
	}
	if utf8.RuneCountInString(name) > MaxImageNameLength {
		return "", http.StatusUnprocessableEntity, "name must be at most 100 characters"
	}
	return name, 0, ""
}
