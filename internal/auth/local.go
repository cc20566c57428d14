package auth

import (
	"context"

	"github.com/go-partnergate/partnergate/internal/core"
	"github.com/go-partnergate/partnergate/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// Compile-time interface check.
var _ core.AuthProvider = (*LocalAuthProvider)(nil)

// LocalAuthProvider handles local database authentication
type LocalAuthProvider struct {
	store *store.Store
}

// NewLocalAuthProvider creates a new local authentication provider
func NewLocalAuthProvider(s *store.Store) *LocalAuthProvider {
	return &LocalAuthProvider{store: s}
}

// Authenticate verifies credentials against local database. Deactivated
// accounts still authenticate; the result carries Inactive so the caller
// can decide what that means for its grant type.
func (p *LocalAuthProvider) Authenticate(
	ctx context.Context,
	username, password string,
) (*Result, error) {
	user, err := p.store.GetUserByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash),
		[]byte(password),
	); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Result{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Inactive: !user.IsActive,
		Success:  true,
	}, nil
}

// Name returns provider name for logging
func (p *LocalAuthProvider) Name() string {
	return "local"
}
