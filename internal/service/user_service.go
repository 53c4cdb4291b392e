package service

import (
	"context"
	"errors"
	"fmt"

	"bioauth-server/internal/auth"
	"bioauth-server/internal/domain"
	"bioauth-server/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for an unknown email, a wrong password,
	// or an unbound biometric key. The three cases are deliberately
	// indistinguishable so callers cannot probe for account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an email that is already bound.
	ErrEmailTaken = errors.New("email already in use")
)

// AuthResult is the outcome of a successful login: a human-readable message
// and a bearer token for subsequent requests.
type AuthResult struct {
	Message string
	Token   string
}

// UserService verifies credentials against the store and mints tokens.
type UserService interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	SetBiometricKey(ctx context.Context, userID, key string) (string, error)
	BiometricLogin(ctx context.Context, key string) (*AuthResult, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenService
}

func NewUserService(users repository.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register creates a user with a freshly hashed password. It does not log the
// user in; no token is issued.
func (s *userService) Register(ctx context.Context, email, password string) (string, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// the store may still lose the race between lookup and insert
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", ErrEmailTaken
		}
		return "", err
	}

	return "user registered successfully", nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user.ID)
}

// SetBiometricKey overwrites the user's biometric key. Uniqueness is enforced
// by the store; a collision with another user's key propagates as
// repository.ErrDuplicateBiometricKey.
func (s *userService) SetBiometricKey(ctx context.Context, userID, key string) (string, error) {
	if err := s.users.UpdateBiometricKey(ctx, userID, key); err != nil {
		return "", err
	}
	return "biometric key registered successfully", nil
}

func (s *userService) BiometricLogin(ctx context.Context, key string) (*AuthResult, error) {
	user, err := s.users.GetByBiometricKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return s.issueToken(user.ID)
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	sanitized := make([]domain.User, len(users))
	for i := range users {
		sanitized[i] = sanitizeUser(users[i])
	}
	return sanitized, nil
}

func (s *userService) issueToken(userID string) (*AuthResult, error) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{
		Message: "logged in successfully",
		Token:   token,
	}, nil
}

// sanitizeUser strips credentials before a user leaves this layer.
func sanitizeUser(user domain.User) domain.User {
	return domain.User{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
