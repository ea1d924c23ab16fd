package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/auth"
	"finledger/internal/core"
)

// UserService handles registration and login.
type UserService struct {
	users UserStore
	codec *auth.TokenCodec
}

func NewUserService(users UserStore, codec *auth.TokenCodec) *UserService {
	return &UserService{users: users, codec: codec}
}

// Register creates an account with the default role. The password is
// bcrypt-hashed before it reaches storage.
func (s *UserService) Register(ctx context.Context, username, password string) (*core.User, error) {
	if err := core.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User registered", "username", user.Username)
	return user, nil
}

// Login verifies credentials and issues a signed token. Unknown usernames
// and wrong passwords produce the same error so callers cannot probe for
// existing accounts.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.ErrAccessDenied
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", core.ErrAccessDenied
	}

	token, err := s.codec.Issue(user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "username", user.Username)
	return token, nil
}
