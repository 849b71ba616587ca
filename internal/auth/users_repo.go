package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tadeportfolio/portfolio/pkg"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// User is created out of band (see cmd/useradd), the service only reads it
type User struct {
	ID           int
	Username     string
	PasswordHash string
}

var _ usersRepo = (*UsersRepo)(nil)

type UsersRepo struct {
	db *pgxpool.Pool
}

func NewUsersRepo(db *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{
		db: db,
	}
}

func (r *UsersRepo) Get(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.QueryRow(
		ctx,
		`SELECT id, username, password FROM users WHERE username = $1;`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *UsersRepo) Add(ctx context.Context, user *User) error {
	if user.Username == "" || user.PasswordHash == "" {
		return errors.New("username or password hash empty")
	}

	err := r.db.QueryRow(
		ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2) RETURNING id;`,
		user.Username, user.PasswordHash,
	).Scan(&user.ID)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}
