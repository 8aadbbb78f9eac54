package types

import "time"

const (
	EventImageUploaded = "image.uploaded"
	EventImageRenamed  = "image.renamed"
)

// ImageEvent is published after an image is created or renamed.
type ImageEvent struct {
	Type       string    `json:"type"`
	ImageID    string    `json:"image_id"`
	Name       string    `json:"name"`
	Src        string    `json:"src,omitempty"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}
