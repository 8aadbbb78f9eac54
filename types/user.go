package types

import "time"

// User represents an account in the system.
// It carries the public profile shown next to a user's images.
type User struct {
	// Username is the unique login name chosen by the user. Images refer
	// to their owner by this value.
	Username string `json:"username" db:"username"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// AvatarSrc is the path of the user's avatar image, empty when unset.
	AvatarSrc string `json:"avatarSrc" db:"avatar_src"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
