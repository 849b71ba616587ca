package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tadeportfolio/portfolio/pkg"
)

// ErrInvalidCredentials is returned both for unknown users and wrong passwords
var ErrInvalidCredentials = errors.New("invalid username or password")

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type usersRepo interface {
	Get(ctx context.Context, username string) (*User, error)
}

type tokenIssuer interface {
	Issue(username string) (string, error)
}

type Service struct {
	users  usersRepo
	tokens tokenIssuer
}

func NewService(users usersRepo, tokens tokenIssuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
	}
}

// Login checks the credentials against the stored password hash and issues a new token
func (s *Service) Login(ctx context.Context, creds Credentials) (string, error) {
	if creds.Username == "" || creds.Password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.Get(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !pkg.CheckPasswordHash(creds.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	return token, nil
}
