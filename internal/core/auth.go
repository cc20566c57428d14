package core

import "context"

// AuthResult holds the outcome of a resource-owner authentication attempt.
type AuthResult struct {
	UserID   string
	Username string
	Email    string // Optional
	Inactive bool   // Account is administratively deactivated
	Success  bool
}

// AuthProvider is the interface that password-based authentication
// backends must implement.
//
// Providers report the Inactive flag but do not enforce it: the
// password-grant path deliberately accepts inactive accounts, while
// other login surfaces are expected to reject them.
type AuthProvider interface {
	Authenticate(ctx context.Context, username, password string) (*AuthResult, error)
	Name() string
}
