package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/imgshare/apiserver/internal/store"
	"github.com/imgshare/apiserver/types"
)

// memoryUsers is an in-memory UserRepository.
type memoryUsers struct {
	mu        sync.Mutex
	users     map[string]types.User
	listCalls int
	getErr    error
	createErr error
	listErr   error
}

func newMemoryUsers(users ...types.User) *memoryUsers {
	m := &memoryUsers{users: make(map[string]types.User)}
	for _, u := range users {
		m.users[u.Username] = u
	}
	return m
}

func (m *memoryUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return types.User{}, m.getErr
	}
	user, ok := m.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) ListByUsernames(ctx context.Context, usernames []string) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]types.User, 0, len(usernames))
	for _, name := range usernames {
		if user, ok := m.users[name]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (m *memoryUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return types.User{}, m.createErr
	}
	if _, ok := m.users[user.Username]; ok {
		return types.User{}, store.ErrConflict
	}
	m.users[user.Username] = user
	return user, nil
}

// memoryImages is an in-memory ImageRepository preserving insertion order.
type memoryImages struct {
	mu          sync.Mutex
	order       []string
	images      map[string]types.Image
	updateCalls int
	listErr     error
	updateErr   error
}

func newMemoryImages(images ...types.Image) *memoryImages {
	m := &memoryImages{images: make(map[string]types.Image)}
	for _, img := range images {
		m.order = append(m.order, img.ID)
		m.images[img.ID] = img
	}
	return m
}

func (m *memoryImages) List(ctx context.Context, nameFilter string) ([]types.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]types.Image, 0, len(m.order))
	for _, id := range m.order {
		img := m.images[id]
		if nameFilter != "" && !containsFold(img.Name, nameFilter) {
			continue
		}
		out = append(out, img)
	}
	return out, nil
}

func (m *memoryImages) Get(ctx context.Context, id string) (types.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return types.Image{}, store.ErrNotFound
	}
	return img, nil
}

func (m *memoryImages) Create(ctx context.Context, image types.Image) (types.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image.ID = uuid.NewString()
	m.order = append(m.order, image.ID)
	m.images[image.ID] = image
	return image, nil
}

func (m *memoryImages) UpdateName(ctx context.Context, id, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	img, ok := m.images[id]
	if !ok {
		return 0, nil
	}
	img.Name = name
	m.images[id] = img
	return 1, nil
}

func (m *memoryImages) name(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.images[id].Name
}

type recordingEvents struct {
	events []types.ImageEvent
	err    error
}

func (r *recordingEvents) Publish(ctx context.Context, event types.ImageEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
