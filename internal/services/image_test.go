package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imgshare/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceImageID = "11111111-1111-1111-1111-111111111111"
	ghostImageID = "22222222-2222-2222-2222-222222222222"
)

func seededImageService(t *testing.T) (*ImageService, *memoryImages, *memoryUsers, *recordingEvents) {
	t.Helper()
	images := newMemoryImages(
		types.Image{ID: aliceImageID, Src: "/uploads/1.png", Name: "Sunset", AuthorUsername: "alice"},
		types.Image{ID: ghostImageID, Src: "/uploads/2.png", Name: "Sunrise", AuthorUsername: "ghost"},
	)
	users := newMemoryUsers(types.User{Username: "alice", Name: "Alice A.", AvatarSrc: "/avatars/alice.png"})
	events := &recordingEvents{}
	svc := NewImageService(images, users, events, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, images, users, events
}

func TestListWithAuthors_FallsBackForMissingUser(t *testing.T) {
	svc, _, _, _ := seededImageService(t)

	views, err := svc.ListWithAuthors(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, types.ImageView{
		ID:     aliceImageID,
		Src:    "/uploads/1.png",
		Name:   "Sunset",
		Author: types.Author{ID: "alice", Name: "Alice A.", AvatarSrc: "/avatars/alice.png"},
	}, views[0])

	assert.Equal(t, types.Author{
		ID:        "ghost",
		Name:      "ghost (No profile)",
		AvatarSrc: types.DefaultAvatarSrc,
	}, views[1].Author)
}

func TestListWithAuthors_EmptyOwnerUsesUnknown(t *testing.T) {
	images := newMemoryImages(types.Image{ID: aliceImageID, Name: "Orphan"})
	svc := NewImageService(images, newMemoryUsers(), nil, zerolog.Nop())

	views, err := svc.ListWithAuthors(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "unknown", views[0].Author.ID)
	assert.Equal(t, "Unknown (No profile)", views[0].Author.Name)
}

func TestListWithAuthors_BatchesAuthorLookup(t *testing.T) {
	images := newMemoryImages(
		types.Image{ID: "a", Name: "one", AuthorUsername: "alice"},
		types.Image{ID: "b", Name: "two", AuthorUsername: "alice"},
		types.Image{ID: "c", Name: "three", AuthorUsername: "bob"},
	)
	users := newMemoryUsers(types.User{Username: "alice"}, types.User{Username: "bob"})
	svc := NewImageService(images, users, nil, zerolog.Nop())

	views, err := svc.ListWithAuthors(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, views, 3)
	assert.Equal(t, 1, users.listCalls)
}

func TestListWithAuthors_NoImagesSkipsUserLookup(t *testing.T) {
	users := newMemoryUsers()
	svc := NewImageService(newMemoryImages(), users, nil, zerolog.Nop())

	views, err := svc.ListWithAuthors(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
	assert.Zero(t, users.listCalls)
}

func TestListWithAuthors_FilterIsCaseInsensitiveSubstring(t *testing.T) {
	svc, _, _, _ := seededImageService(t)

	views, err := svc.ListWithAuthors(context.Background(), "SET")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, aliceImageID, views[0].ID)
}

func TestListWithAuthors_PropagatesErrors(t *testing.T) {
	svc, images, users, _ := seededImageService(t)

	users.listErr = errors.New("users down")
	_, err := svc.ListWithAuthors(context.Background(), "")
	assert.ErrorContains(t, err, "users down")

	images.listErr = errors.New("images down")
	_, err = svc.ListWithAuthors(context.Background(), "")
	assert.ErrorContains(t, err, "images down")
}

func TestUpdateName_NonOwnerLeavesImageUntouched(t *testing.T) {
	svc, images, _, events := seededImageService(t)

	result, err := svc.UpdateName(context.Background(), ghostImageID, "x", "bob")
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{Matched: false, IsOwner: false}, result)
	assert.Equal(t, "Sunrise", images.name(ghostImageID))
	assert.Zero(t, images.updateCalls)
	assert.Empty(t, events.events)
}

// A missing image reports the same result as a foreign one.
func TestUpdateName_MissingMatchesNonOwnerShape(t *testing.T) {
	svc, images, _, _ := seededImageService(t)

	result, err := svc.UpdateName(context.Background(), "33333333-3333-3333-3333-333333333333", "x", "alice")
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{}, result)
	assert.Zero(t, images.updateCalls)
}

func TestUpdateName_OwnerRenames(t *testing.T) {
	svc, images, _, events := seededImageService(t)

	result, err := svc.UpdateName(context.Background(), aliceImageID, "Golden hour", "alice")
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{Matched: true, IsOwner: true}, result)
	assert.Equal(t, "Golden hour", images.name(aliceImageID))

	require.Len(t, events.events, 1)
	assert.Equal(t, types.ImageEvent{
		Type:       types.EventImageRenamed,
		ImageID:    aliceImageID,
		Name:       "Golden hour",
		Src:        "/uploads/1.png",
		Username:   "alice",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, events.events[0])
}

func TestUpdateName_WriteFailureSurfaces(t *testing.T) {
	svc, images, _, _ := seededImageService(t)
	images.updateErr = errors.New("write failed")

	_, err := svc.UpdateName(context.Background(), aliceImageID, "x", "alice")
	assert.ErrorContains(t, err, "write failed")
}

func TestSave_InsertsAndPublishes(t *testing.T) {
	svc, images, _, events := seededImageService(t)

	image, err := svc.Save(context.Background(), "/uploads/3.png", "New", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, image.ID)
	assert.Equal(t, "bob", image.AuthorUsername)

	stored, err := images.Get(context.Background(), image.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/3.png", stored.Src)

	require.Len(t, events.events, 1)
	assert.Equal(t, types.EventImageUploaded, events.events[0].Type)
}

func TestSave_PublishFailureIsNotFatal(t *testing.T) {
	svc, _, _, events := seededImageService(t)
	events.err = errors.New("broker down")

	_, err := svc.Save(context.Background(), "/uploads/3.png", "New", "bob")
	assert.NoError(t, err)
}
