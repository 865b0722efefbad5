package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for the identity store.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned when email/password verification fails.
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

// User represents a registered account. Identity fields are immutable after
// registration; only profile fields change.
type User struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash string
	Contact      string
	Address      string
	AvatarURL    string
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
}

// ProfilePatch describes a partial profile update. Nil fields are unchanged.
type ProfilePatch struct {
	FullName  *string
	Contact   *string
	Address   *string
	AvatarURL *string
}

// Repository defines persistence operations for user accounts.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) (*User, error)
}
