// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"

	"subscription-service/internal/domain/auth"
	xerrors "subscription-service/internal/pkg/errors"
)

const userColumns = `id, username, email, hashed_password, created_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user; duplicate username or email comes back as a conflict
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (username, email, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	return r.db.mutate(ctx, "create user", func(ctx context.Context) error {
		return r.db.pool.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash).
			Scan(&user.ID, &user.CreatedAt)
	})
}

// FindByID retrieves a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername is used at login
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByEmail retrieves a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*auth.User, error) {
	var u auth.User
	err := r.db.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if isNoRows(err) {
		return nil, xerrors.NotFound("user not found")
	}
	if err != nil {
		return nil, mapError("find user", err)
	}
	return &u, nil
}
