package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type UserRepository struct {
	db
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db{pool: pool}}
}

func (r *UserRepository) CreateUser(ctx context.Context, u domain.User) error {
	const stmt = `INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3)`
	if _, err := r.exec(ctx, stmt, u.Username, u.PasswordHash, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return wrap("create user", err)
	}
	return nil
}

// GetUser returns the user with the ids of the projects they belong to.
func (r *UserRepository) GetUser(ctx context.Context, username string) (domain.User, error) {
	const query = `SELECT username, password_hash, created_at FROM users WHERE username = $1`
	var u domain.User
	err := r.queryRow(ctx, query, username).Scan(&u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, wrap("get user", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()

	rows, err := r.query(ctx, `SELECT project_id FROM project_members WHERE username = $1 ORDER BY project_id`, username)
	if err != nil {
		return domain.User{}, wrap("list memberships", err)
	}
	u.ProjectMemberships, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return domain.User{}, wrap("list memberships", err)
	}
	return u, nil
}
