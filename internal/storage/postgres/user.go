package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averlane/storefront/internal/domain/user"
)

const uniqueViolation = "23505"

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const insertUserSQL = `INSERT INTO users (full_name, email, password_hash, contact, address, avatar_url, is_active, is_admin)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	RETURNING id, created_at`

// Create persists a new user and assigns its id. A unique-violation on the
// email index surfaces as user.ErrEmailTaken, covering the registration race
// the pre-insert lookup cannot.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, insertUserSQL,
		u.FullName, u.Email, u.PasswordHash, u.Contact, u.Address, u.AvatarURL, u.IsActive, u.IsAdmin,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.ErrEmailTaken
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

const selectUserSQL = `SELECT id, full_name, email, password_hash,
	COALESCE(contact, ''), COALESCE(address, ''), COALESCE(avatar_url, ''),
	is_active, is_admin, created_at
	FROM users`

// GetByID returns a user by id or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, selectUserSQL+" WHERE id = $1", id))
}

// GetByEmail returns a user by email or user.ErrNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, selectUserSQL+" WHERE email = $1", email))
}

const updateProfileSQL = `UPDATE users SET
	full_name  = COALESCE($2, full_name),
	contact    = COALESCE($3, contact),
	address    = COALESCE($4, address),
	avatar_url = COALESCE($5, avatar_url)
	WHERE id = $1
	RETURNING id, full_name, email, password_hash,
		COALESCE(contact, ''), COALESCE(address, ''), COALESCE(avatar_url, ''),
		is_active, is_admin, created_at`

// UpdateProfile merges the present patch fields into the user's profile.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, patch user.ProfilePatch) (*user.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, updateProfileSQL,
		id, patch.FullName, patch.Contact, patch.Address, patch.AvatarURL))
}

func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash,
		&u.Contact, &u.Address, &u.AvatarURL, &u.IsActive, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan user")
	}
	return &u, nil
}
