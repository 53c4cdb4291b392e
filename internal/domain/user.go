package domain

import "time"

// User represents a registered account. BiometricKey is an opaque client
// supplied string that acts as an alternate unique login credential; it is
// empty until the user registers one.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	BiometricKey string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
