package user

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// Service implements registration and credential verification on top of a
// user Repository. Passwords are stored only as bcrypt hashes.
type Service struct {
	users Repository
	cost  int
}

// NewService creates a user Service. A non-positive cost falls back to
// bcrypt.DefaultCost.
func NewService(users Repository, cost int) *Service {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost}
}

// Register hashes the password and persists a new user. The email conflict is
// checked by a prior lookup; the unique index backs it up against races.
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if existing, err := s.users.GetByEmail(ctx, email); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "lookup email")
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies the email/password pair and returns the matching
// user. Both unknown emails and wrong passwords map to ErrInvalidCredentials
// so the response does not leak which part failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "lookup email")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies a partial profile update and returns the result.
func (s *Service) UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) (*User, error) {
	return s.users.UpdateProfile(ctx, id, patch)
}
