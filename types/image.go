package types

import "time"

const (
	// DefaultAvatarSrc is rendered for authors without an avatar.
	DefaultAvatarSrc = "/default-avatar.png"

	// UnknownAuthorID stands in for an image that carries no owner at all.
	UnknownAuthorID = "unknown"
)

// Image is a stored image record.
type Image struct {
	// ID is the generated UUID of the image.
	ID string `json:"id" db:"id"`

	// Src is the public path the image file is served from.
	Src string `json:"src" db:"src"`

	// Name is the display name, changeable by the owner only.
	Name string `json:"name" db:"name"`

	// AuthorUsername references the owning user by username. The user
	// row is not guaranteed to exist.
	AuthorUsername string `json:"authorId" db:"author_username"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Author is the snapshot of user data embedded in an ImageView.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarSrc string `json:"avatarSrc"`
}

// ImageView is an image with its author denormalized into it, the shape
// returned by the gallery endpoints.
type ImageView struct {
	ID     string `json:"id"`
	Src    string `json:"src"`
	Name   string `json:"name"`
	Author Author `json:"author"`
}

// AuthorFromUser builds the author snapshot for an existing user.
func AuthorFromUser(user User) Author {
	author := Author{
		ID:        user.Username,
		Name:      user.Name,
		AvatarSrc: user.AvatarSrc,
	}
	if author.Name == "" {
		author.Name = user.Username
	}
	if author.AvatarSrc == "" {
		author.AvatarSrc = DefaultAvatarSrc
	}
	return author
}

// PlaceholderAuthor builds the author snapshot for an owner username that
// has no matching user record.
func PlaceholderAuthor(username string) Author {
	id := username
	label := username
	if username == "" {
		id = UnknownAuthorID
		label = "Unknown"
	}
	return Author{
		ID:        id,
		Name:      label + " (No profile)",
		AvatarSrc: DefaultAvatarSrc,
	}
}
