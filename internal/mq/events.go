package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imgshare/apiserver/types"
)

const (
	AttrContentType = "content-type"
	AttrEventType   = "event-type"

	// AttrOrderingKey groups messages that must be delivered in publish
	// order. Image events use the image id.
	AttrOrderingKey = "ordering-key"
)

// ImageEvents publishes and consumes image lifecycle events on one channel.
type ImageEvents struct {
	mq      *MQ
	channel string
}

// NewImageEvents binds image events to channel on m.
func NewImageEvents(m *MQ, channel string) *ImageEvents {
	return &ImageEvents{mq: m, channel: channel}
}

// Publish encodes event as JSON and sends it.
func (e *ImageEvents) Publish(ctx context.Context, event types.ImageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode image event: %w", err)
	}
	attrs := map[string]string{
		AttrContentType: "application/json",
		AttrEventType:   event.Type,
		AttrOrderingKey: event.ImageID,
	}
	if _, err := e.mq.Publish(ctx, e.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Tail delivers decoded events to handler until ctx is done. Messages that
// do not decode are acknowledged and dropped.
func (e *ImageEvents) Tail(ctx context.Context, handler func(context.Context, types.ImageEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeImageEvent(msg.Data)
		if err != nil {
			return nil
		}
		return handler(ctx, event)
	})
}

// Channel returns the channel events are bound to.
func (e *ImageEvents) Channel() string {
	return e.channel
}

// DecodeImageEvent parses a JSON encoded event.
func DecodeImageEvent(data []byte) (types.ImageEvent, error) {
	var event types.ImageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return types.ImageEvent{}, fmt.Errorf("decode image event: %w", err)
	}
	return event, nil
}
