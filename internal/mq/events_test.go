package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imgshare/apiserver/config"
	"github.com/imgshare/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// channelBackend delivers published messages to subscribers in process.
type channelBackend struct {
	published []Message
	channels  []string
	messages  chan Message
	err       error
}

func newChannelBackend() *channelBackend {
	return &channelBackend{messages: make(chan Message, 8)}
}

func (b *channelBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	msg := Message{ID: "m1", Data: data, Attributes: attrs}
	b.published = append(b.published, msg)
	b.channels = append(b.channels, channel)
	b.messages <- msg
	return msg.ID, nil
}

func (b *channelBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.messages:
			_ = handler(ctx, msg)
		}
	}
}

func (b *channelBackend) Close() error { return nil }

func TestImageEvents_PublishEncodesJSON(t *testing.T) {
	backend := newChannelBackend()
	events := NewImageEvents(New(backend), "image-events")

	event := types.ImageEvent{
		Type:       types.EventImageUploaded,
		ImageID:    "id-1",
		Name:       "Cat",
		Src:        "/uploads/1-2.png",
		Username:   "alice",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, events.Publish(context.Background(), event))

	require.Len(t, backend.published, 1)
	assert.Equal(t, "image-events", backend.channels[0])
	assert.Equal(t, "application/json", backend.published[0].Attributes[AttrContentType])
	assert.Equal(t, types.EventImageUploaded, backend.published[0].Attributes[AttrEventType])
	assert.Equal(t, "id-1", backend.published[0].Attributes[AttrOrderingKey])

	decoded, err := DecodeImageEvent(backend.published[0].Data)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestImageEvents_PublishWrapsBackendError(t *testing.T) {
	backend := newChannelBackend()
	backend.err = errors.New("broker down")
	events := NewImageEvents(New(backend), "image-events")

	err := events.Publish(context.Background(), types.ImageEvent{Type: types.EventImageRenamed})
	assert.ErrorContains(t, err, "broker down")
}

func TestImageEvents_TailDecodesAndSkipsGarbage(t *testing.T) {
	backend := newChannelBackend()
	events := NewImageEvents(New(backend), "image-events")
	backend.messages <- Message{ID: "bad", Data: []byte("not json")}
	require.NoError(t, events.Publish(context.Background(), types.ImageEvent{Type: types.EventImageRenamed, ImageID: "id-2"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []types.ImageEvent
	err := events.Tail(ctx, func(ctx context.Context, event types.ImageEvent) error {
		got = append(got, event)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 1)
	assert.Equal(t, "id-2", got[0].ImageID)
}

func TestOpen_NoneReturnsNil(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.ErrorContains(t, err, "unknown mq backend")
}

func TestContentTypeFallback(t *testing.T) {
	assert.Equal(t, "application/octet-stream", contentType(nil))
	assert.Equal(t, "application/json", contentType(map[string]string{AttrContentType: "application/json"}))
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	assert.Equal(t, map[string]string{
		"event-type":   "image.renamed",
		"ordering-key": "id-1",
		"retries":      "3",
	}, headersToAttributes(map[string]any{
		"event-type":   "image.renamed",
		"ordering-key": []byte("id-1"),
		"retries":      int32(3),
	}))
}
