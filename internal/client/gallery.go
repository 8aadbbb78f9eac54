package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/imgshare/apiserver/types"
)

// ImageFetcher is the part of Client a Gallery reads from.
type ImageFetcher interface {
	ListImages(ctx context.Context) ([]types.ImageView, error)
	SearchImages(ctx context.Context, name string) ([]types.ImageView, error)
}

// Gallery holds the most recently requested set of images. Every Load or
// Search takes a new generation; a response is applied only if no newer
// request was issued while it was in flight.
type Gallery struct {
	fetcher ImageFetcher
	latest  atomic.Uint64

	mu     sync.RWMutex
	images []types.ImageView
	err    error
}

// NewGallery returns an empty Gallery reading from fetcher.
func NewGallery(fetcher ImageFetcher) *Gallery {
	return &Gallery{fetcher: fetcher}
}

// Load fetches the whole gallery. It reports whether the result was applied.
func (g *Gallery) Load(ctx context.Context) bool {
	gen := g.latest.Add(1)
	images, err := g.fetcher.ListImages(ctx)
	return g.apply(gen, images, err)
}

// Search fetches images matching name. An empty name loads the whole
// gallery. It reports whether the result was applied.
func (g *Gallery) Search(ctx context.Context, name string) bool {
	if name == "" {
		return g.Load(ctx)
	}
	gen := g.latest.Add(1)
	images, err := g.fetcher.SearchImages(ctx, name)
	return g.apply(gen, images, err)
}

func (g *Gallery) apply(gen uint64, images []types.ImageView, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Superseded by a newer request.
	if gen != g.latest.Load() {
		return false
	}
	if err != nil {
		g.err = err
		return true
	}
	g.images = images
	g.err = nil
	return true
}

// Images returns the current images and the error of the last applied fetch.
func (g *Gallery) Images() ([]types.ImageView, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]types.ImageView, len(g.images))
	copy(out, g.images)
	return out, g.err
}
