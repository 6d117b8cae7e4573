package store

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when no profile exists for an identity.
var ErrUserNotFound = errors.New("user not found")

// UserProfile is the persisted account data the story pipeline reads.
type UserProfile struct {
	BaseModel
	Identity       string `json:"identity" db:"identity"`
	PasswordHash   string `json:"-" db:"password_hash"`
	YearOfBirth    int    `json:"year_of_birth" db:"year_of_birth"`
	PreferredVoice string `json:"preferred_voice" db:"preferred_voice"`
	StoryCount     int    `json:"story_count" db:"story_count"`
}

// UserStore reads and maintains user profiles.
type UserStore interface {
	// GetUser returns the profile for identity or ErrUserNotFound.
	GetUser(ctx context.Context, identity string) (*UserProfile, error)
	// UpsertUser creates the profile or updates its year of birth and preferred voice.
	UpsertUser(ctx context.Context, u *UserProfile) error
	// IncrementStoryCount bumps the cached story counter by one.
	IncrementStoryCount(ctx context.Context, identity string) error
	Close() error
}
