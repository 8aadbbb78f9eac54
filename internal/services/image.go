package services

import (
	"context"
	"errors"
	"time"

	"github.com/imgshare/apiserver/internal/store"
	"github.com/imgshare/apiserver/types"
	"github.com/rs/zerolog"
)

// ImageRepository defines persistence operations for images.
type ImageRepository interface {
	List(ctx context.Context, nameFilter string) ([]types.Image, error)
	Get(ctx context.Context, id string) (types.Image, error)
	Create(ctx context.Context, image types.Image) (types.Image, error)
	UpdateName(ctx context.Context, id, name string) (int64, error)
}

// EventPublisher receives image lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event types.ImageEvent) error
}

// UpdateResult reports the outcome of an ownership checked rename. A missing
// image and an image owned by someone else both yield the zero value.
type UpdateResult struct {
	Matched bool
	IsOwner bool
}

// ImageService encapsulates image use-cases.
type ImageService struct {
	images ImageRepository
	users  UserRepository
	events EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewImageService constructs an ImageService. events may be nil.
func NewImageService(images ImageRepository, users UserRepository, events EventPublisher, logger zerolog.Logger) *ImageService {
	return &ImageService{
		images: images,
		users:  users,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// ListWithAuthors returns every image, or those whose name contains
// nameFilter, with author data joined in. Authors are fetched in one batch;
// owners without a user record get a placeholder author.
func (s *ImageService) ListWithAuthors(ctx context.Context, nameFilter string) ([]types.ImageView, error) {
	images, err := s.images.List(ctx, nameFilter)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(images))
	usernames := make([]string, 0, len(images))
	for _, image := range images {
		if _, ok := seen[image.AuthorUsername]; ok {
			continue
		}
		seen[image.AuthorUsername] = struct{}{}
		usernames = append(usernames, image.AuthorUsername)
	}

	authors := make(map[string]types.User, len(usernames))
	if len(usernames) > 0 {
		users, err := s.users.ListByUsernames(ctx, usernames)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			authors[user.Username] = user
		}
	}

	views := make([]types.ImageView, 0, len(images))
	for _, image := range images {
		view := types.ImageView{
			ID:   image.ID,
			Src:  image.Src,
			Name: image.Name,
		}
		if user, ok := authors[image.AuthorUsername]; ok {
			view.Author = types.AuthorFromUser(user)
		} else {
			s.logger.Debug().
				Str("image_id", image.ID).
				Str("author", image.AuthorUsername).
				Msg("author not found, using placeholder")
			view.Author = types.PlaceholderAuthor(image.AuthorUsername)
		}
		views = append(views, view)
	}
	return views, nil
}

// GetByID loads one image. Malformed ids are reported as store.ErrNotFound.
func (s *ImageService) GetByID(ctx context.Context, id string) (types.Image, error) {
	return s.images.Get(ctx, id)
}

// UpdateName renames image id on behalf of username. Ownership is checked
// before any write.
func (s *ImageService) UpdateName(ctx context.Context, id, name, username string) (UpdateResult, error) {
	image, err := s.images.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UpdateResult{}, nil
		}
		return UpdateResult{}, err
	}

	if image.AuthorUsername != username {
		return UpdateResult{}, nil
	}

	affected, err := s.images.UpdateName(ctx, id, name)
	if err != nil {
		return UpdateResult{}, err
	}

	result := UpdateResult{Matched: affected > 0, IsOwner: true}
	if result.Matched {
		s.publish(ctx, types.ImageEvent{
			Type:     types.EventImageRenamed,
			ImageID:  image.ID,
			Name:     name,
			Src:      image.Src,
			Username: username,
		})
	}
	return result, nil
}

// Save records a stored image file. Name validation belongs to the caller.
func (s *ImageService) Save(ctx context.Context, src, name, owner string) (types.Image, error) {
	image, err := s.images.Create(ctx, types.Image{
		Src:            src,
		Name:           name,
		AuthorUsername: owner,
	})
	if err != nil {
		return types.Image{}, err
	}

	s.publish(ctx, types.ImageEvent{
		Type:     types.EventImageUploaded,
		ImageID:  image.ID,
		Name:     image.Name,
		Src:      image.Src,
		Username: owner,
	})
	return image, nil
}

// publish is best effort; the write it reports on has already committed.
func (s *ImageService) publish(ctx context.Context, event types.ImageEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("event", event.Type).
			Str("image_id", event.ImageID).
			Msg("failed to publish image event")
	}
}
