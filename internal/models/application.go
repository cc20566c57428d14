package models

import (
	"context"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/go-partnergate/partnergate/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// Client type constants
const (
	ClientConfidential = "confidential"
	ClientPublic       = "public"
)

// Grant type constants
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantPassword          = "password"
	GrantClientCredentials = "client_credentials"
)

// Base32 characters, but lowercased.
const lowerBase32Chars = "abcdefghijklmnopqrstuvwxyz234567"

// base32 encoder that uses lowered characters without padding.
var base32Lower = base32.NewEncoding(lowerBase32Chars).WithPadding(base32.NoPadding)

var ErrRedirectURIsRequired = errors.New(
	"redirect_uris is required for authorization_code and implicit grants",
)

// Application is a registered OAuth client of the partner API.
// Created by an administrator and read-only thereafter except for
// credential rotation.
type Application struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	ClientID     string `gorm:"uniqueIndex;not null"`
	ClientSecret string `gorm:"not null"` // bcrypt hashed secret; empty for public clients
	Name         string `gorm:"not null"`
	ClientType   string `gorm:"not null;default:'confidential'"` // "confidential" or "public"
	GrantType    string `gorm:"not null;default:'authorization_code'"`
	RedirectURIs string `gorm:"type:text"` // space-separated absolute URIs
	OwnerUserID  string `gorm:"index"`     // optional owning user
	// Skip the consent screen for in-house applications; consulted by the
	// authorization UI layer, not by the token lifecycle core.
	SkipAuthorization bool `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the table name used by Application to `applications`
func (Application) TableName() string {
	return "applications"
}

// Validate checks the registration invariants. Redirect URIs are
// mandatory for the redirect-based grants.
func (app *Application) Validate() error {
	switch app.GrantType {
	case GrantAuthorizationCode, GrantImplicit:
		if strings.TrimSpace(app.RedirectURIs) == "" {
			return ErrRedirectURIsRequired
		}
	}
	return nil
}

// RedirectURIList returns the registered redirect URIs as a slice.
func (app *Application) RedirectURIList() []string {
	return strings.Fields(app.RedirectURIs)
}

// RedirectURIAllowed reports whether uri is acceptable during the
// authorization step, before any grant exists. A candidate matches a
// registered URI when scheme, host and path are identical and the
// registered URI's query parameters are a subset of the candidate's.
func (app *Application) RedirectURIAllowed(uri string) bool {
	for _, registered := range app.RedirectURIList() {
		if util.RedirectMatches(registered, uri) {
			return true
		}
	}
	return false
}

// GenerateClientSecret generates a fresh client secret, stores the bcrypt
// hash on the application and returns the plaintext. Public clients keep
// an empty secret and never call this.
func (app *Application) GenerateClientSecret(ctx context.Context) (string, error) {
	rBytes, err := util.CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	// Add a prefix to the base32, this is in order to make it easier
	// for code scanners to grab sensitive tokens.
	clientSecret := "pgo_" + base32Lower.EncodeToString(rBytes)

	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	app.ClientSecret = string(hashedSecret)
	return clientSecret, nil
}

// ValidateClientSecret validates the given secret by the hash saved in database
func (app *Application) ValidateClientSecret(secret []byte) bool {
	if app.ClientSecret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(app.ClientSecret), secret) == nil
}

// IsConfidential returns true for confidential clients
func (app *Application) IsConfidential() bool {
	return app.ClientType == ClientConfidential
}
