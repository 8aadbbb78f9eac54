package client

import (
	"context"
	"errors"
	"testing"

	"github.com/imgshare/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingFetch struct {
	images []types.ImageView
	err    error
}

// gatedFetcher blocks each search until the test releases it.
type gatedFetcher struct {
	started map[string]chan struct{}
	release map[string]chan pendingFetch
}

func newGatedFetcher(names ...string) *gatedFetcher {
	f := &gatedFetcher{
		started: make(map[string]chan struct{}),
		release: make(map[string]chan pendingFetch),
	}
	for _, name := range names {
		f.started[name] = make(chan struct{})
		f.release[name] = make(chan pendingFetch)
	}
	return f
}

func (f *gatedFetcher) ListImages(ctx context.Context) ([]types.ImageView, error) {
	return f.SearchImages(ctx, "")
}

func (f *gatedFetcher) SearchImages(ctx context.Context, name string) ([]types.ImageView, error) {
	close(f.started[name])
	result := <-f.release[name]
	return result.images, result.err
}

func TestGallery_LateResponseIsDiscarded(t *testing.T) {
	fetcher := newGatedFetcher("a", "b")
	g := NewGallery(fetcher)
	ctx := context.Background()

	applied := map[string]chan bool{"a": make(chan bool, 1), "b": make(chan bool, 1)}

	go func() { applied["a"] <- g.Search(ctx, "a") }()
	<-fetcher.started["a"]
	go func() { applied["b"] <- g.Search(ctx, "b") }()
	<-fetcher.started["b"]

	fromB := []types.ImageView{{ID: "b1", Name: "b"}}
	fetcher.release["b"] <- pendingFetch{images: fromB}
	require.True(t, <-applied["b"])

	fetcher.release["a"] <- pendingFetch{images: []types.ImageView{{ID: "a1", Name: "a"}}}
	assert.False(t, <-applied["a"])

	images, err := g.Images()
	require.NoError(t, err)
	assert.Equal(t, fromB, images)
}

func TestGallery_LateErrorIsDiscarded(t *testing.T) {
	fetcher := newGatedFetcher("a", "b")
	g := NewGallery(fetcher)
	ctx := context.Background()

	doneA := make(chan bool, 1)
	go func() { doneA <- g.Search(ctx, "a") }()
	<-fetcher.started["a"]

	doneB := make(chan bool, 1)
	go func() { doneB <- g.Search(ctx, "b") }()
	<-fetcher.started["b"]
	fetcher.release["b"] <- pendingFetch{images: []types.ImageView{}}
	<-doneB

	fetcher.release["a"] <- pendingFetch{err: errors.New("timeout")}
	assert.False(t, <-doneA)

	_, err := g.Images()
	assert.NoError(t, err)
}

type staticFetcher struct {
	all []types.ImageView
	err error
}

func (f staticFetcher) ListImages(ctx context.Context) ([]types.ImageView, error) {
	return f.all, f.err
}

func (f staticFetcher) SearchImages(ctx context.Context, name string) ([]types.ImageView, error) {
	return nil, errors.New("unexpected search")
}

func TestGallery_EmptySearchLoadsAll(t *testing.T) {
	all := []types.ImageView{{ID: "1"}, {ID: "2"}}
	g := NewGallery(staticFetcher{all: all})

	assert.True(t, g.Search(context.Background(), ""))
	images, err := g.Images()
	require.NoError(t, err)
	assert.Equal(t, all, images)
}

func TestGallery_ErrorKeepsPreviousImages(t *testing.T) {
	all := []types.ImageView{{ID: "1"}}
	g := NewGallery(staticFetcher{all: all})
	require.True(t, g.Load(context.Background()))

	g.fetcher = staticFetcher{err: errors.New("offline")}
	require.True(t, g.Load(context.Background()))

	images, err := g.Images()
	assert.EqualError(t, err, "offline")
	assert.Equal(t, all, images)
}
