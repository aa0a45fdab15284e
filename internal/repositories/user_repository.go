package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Divarin/Community-sub002/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts account lookup. Authentication itself lives
// outside the session core.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (models.User, error)
	GetByIDs(ctx context.Context, ids []int) ([]models.User, error)
	GetByName(ctx context.Context, name string) (models.User, error)
	Update(ctx context.Context, u models.User) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID fetches one user.
func (r *UserRepo) GetByID(ctx context.Context, id int) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, name, is_admin, is_global_moderator, last_login_at
         FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByIDs fetches the users with the given ids.
func (r *UserRepo) GetByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, name, is_admin, is_global_moderator, last_login_at
         FROM users WHERE id = ANY($1)`, pq.Array(ids))
	return users, err
}

// GetByName fetches a user by account name, case-insensitively.
func (r *UserRepo) GetByName(ctx context.Context, name string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, name, is_admin, is_global_moderator, last_login_at
         FROM users WHERE LOWER(name)=LOWER($1)`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

// Update rewrites mutable account fields.
func (r *UserRepo) Update(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_admin=$2, is_global_moderator=$3, last_login_at=$4 WHERE id=$1`,
		u.ID, u.IsAdmin, u.IsGlobalModerator, u.LastLoginAt)
	return err
}
