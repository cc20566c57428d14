package models

import (
	"strings"
	"time"
)

// AccessToken is a bearer credential for resource access.
// UserID is empty for client_credentials tokens: no end user is
// associated with machine-to-machine access.
type AccessToken struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Token         string `gorm:"uniqueIndex;not null"`
	ApplicationID int64  `gorm:"not null;index"`
	UserID        string `gorm:"index"` // empty for client_credentials grants
	Scopes        string `gorm:"not null"`
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

func (AccessToken) TableName() string {
	return "access_tokens"
}

func (t *AccessToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// ScopeList returns the granted scopes as a slice.
func (t *AccessToken) ScopeList() []string {
	return strings.Fields(t.Scopes)
}

// AllowScopes reports whether every required scope was granted to the
// token. An empty required set always passes.
func (t *AccessToken) AllowScopes(required []string) bool {
	granted := make(map[string]bool, len(t.ScopeList()))
	for _, sc := range t.ScopeList() {
		granted[sc] = true
	}
	for _, sc := range required {
		if !granted[sc] {
			return false
		}
	}
	return true
}

// IsValid reports whether the token is unexpired and covers the
// required scopes.
func (t *AccessToken) IsValid(required []string) bool {
	return !t.IsExpired() && t.AllowScopes(required)
}

// RefreshToken is a long-lived credential used to mint new access
// tokens. Each refresh token owns exactly one access token; revoking
// the refresh token cascades to its access token, while revoking the
// access token directly leaves the refresh token in place.
type RefreshToken struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Token         string `gorm:"uniqueIndex;not null"`
	ApplicationID int64  `gorm:"not null;index"`
	UserID        string `gorm:"index"`
	AccessTokenID uint   `gorm:"uniqueIndex;not null"` // 1:1 owning access token
	CreatedAt     time.Time
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
