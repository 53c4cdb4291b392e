package repository

import (
	"context"
	"errors"

	"bioauth-server/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the given selector.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an insert collides with an existing email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateBiometricKey is returned when a biometric key is already bound
	// to another user. Uniqueness is enforced by the store, not pre-checked.
	ErrDuplicateBiometricKey = errors.New("biometric key already registered")
)

// UserRepository defines persistence operations for User entities.
// Email and biometric key are unique lookup keys; the store is the sole
// arbiter of those constraints.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByBiometricKey(ctx context.Context, key string) (*domain.User, error)
	UpdateBiometricKey(ctx context.Context, id, key string) error
	List(ctx context.Context) ([]domain.User, error)
}
