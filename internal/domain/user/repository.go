package user

import (
	"context"
)

// Profile is the slice of the application's user profile the billing sync needs
type Profile struct {
	ID    string
	Email string
}

// Repository looks up local users by the identity a billing provider knows them by
type Repository interface {
	// FindIDByEmail matches case-insensitively and returns ErrNotFound when no profile has the email
	FindIDByEmail(ctx context.Context, email string) (string, error)
}
