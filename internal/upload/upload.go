// Package upload accepts a single image file from a multipart request,
// validates it and hands it to object storage under a generated name.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	FieldImage = "image"
	FieldName  = "name"

	// MaxFileSize is the hard ceiling for one uploaded image.
	MaxFileSize = 5 << 20
	// MaxFiles is the number of file parts accepted per request.
	MaxFiles = 1

	// PublicPrefix is the URL path stored files are served under.
	PublicPrefix = "/uploads/"

	maxFieldBytes  = 4 << 10
	formOverhead   = 1 << 20
	randomNameSpan = 1_000_000_000
)

var (
	ErrInvalidForm       = errors.New("invalid multipart form")
	ErrNoFile            = errors.New("no image file provided")
	ErrUnsupportedFormat = errors.New("unsupported image type")
	ErrFileTooLarge      = errors.New("file too large")
	ErrTooManyFiles      = errors.New("too many files")
)

// extensions maps accepted MIME types to the stored file extension.
var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
}

// File is a validated image held in memory until it is stored.
type File struct {
	// OriginalName is the client supplied filename. It is never used for storage.
	OriginalName string
	ContentType  string
	Extension    string
	Data         []byte
}

// Form is the parsed upload request.
type Form struct {
	Name string
	File File
}

// ObjectWriter is the slice of object storage the handler writes to.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Handler parses and stores uploads.
type Handler struct {
	storage     ObjectWriter
	maxFileSize int64
	now         func() time.Time
	randInt     func() int64
}

// NewHandler constructs a Handler writing to storage.
func NewHandler(storage ObjectWriter) *Handler {
	return &Handler{
		storage:     storage,
		maxFileSize: MaxFileSize,
		now:         time.Now,
		randInt:     func() int64 { return rand.Int64N(randomNameSpan) },
	}
}

// Parse streams the multipart body of r. The whole file is validated and
// buffered before anything reaches storage; every error it returns is a
// client error.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) (Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+formOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		return Form{}, ErrInvalidForm
	}

	var (
		form  Form
		files int
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Form{}, bodyError(err)
		}

		if part.FileName() == "" {
			if part.FormName() == FieldName {
				value, err := readLimited(part, maxFieldBytes)
				if err != nil {
					_ = part.Close()
					return Form{}, ErrInvalidForm
				}
				form.Name = string(value)
			}
			_ = part.Close()
			continue
		}

		files++
		if files > MaxFiles {
			_ = part.Close()
			return Form{}, ErrTooManyFiles
		}
		if part.FormName() != FieldImage {
			_ = part.Close()
			return Form{}, fmt.Errorf("%w: unexpected file field %q", ErrInvalidForm, part.FormName())
		}

		file, err := h.readFile(part.FileName(), part.Header.Get("Content-Type"), part)
		_ = part.Close()
		if err != nil {
			return Form{}, err
		}
		form.File = file
	}

	if files == 0 {
		return Form{}, ErrNoFile
	}
	return form, nil
}

func (h *Handler) readFile(filename, contentType string, r io.Reader) (File, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return File{}, ErrUnsupportedFormat
	}
	mediaType = strings.ToLower(mediaType)
	ext, ok := extensions[mediaType]
	if !ok {
		return File{}, ErrUnsupportedFormat
	}

	data, err := readLimited(r, h.maxFileSize)
	if err != nil {
		return File{}, err
	}

	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	return File{
		OriginalName: filename,
		ContentType:  mediaType,
		Extension:    ext,
		Data:         data,
	}, nil
}

// GenerateFilename returns "<unix millis>-<random>.<ext>". Collisions are
// possible in theory and are not checked.
func (h *Handler) GenerateFilename(ext string) string {
	return fmt.Sprintf("%d-%d.%s", h.now().UnixMilli(), h.randInt(), ext)
}

// Store writes file to storage under a generated name and returns the public
// src path of the stored object.
func (h *Handler) Store(ctx context.Context, file File) (string, error) {
	key := h.GenerateFilename(file.Extension)
	if err := h.storage.Put(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType); err != nil {
		return "", fmt.Errorf("store upload %s: %w", key, err)
	}
	return PublicPrefix + key, nil
}

// Discard removes an upload previously returned by Store.
func (h *Handler) Discard(ctx context.Context, src string) error {
	key, ok := strings.CutPrefix(src, PublicPrefix)
	if !ok || key == "" || strings.Contains(key, "/") {
		return fmt.Errorf("discard upload %q: not a stored upload path", src)
	}
	if err := h.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("discard upload %s: %w", key, err)
	}
	return nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, bodyError(err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrFileTooLarge
	}
	return ErrInvalidForm
}

// IsClientError reports whether err came from validating the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidForm) ||
		errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrTooManyFiles)
}
