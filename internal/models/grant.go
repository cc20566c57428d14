package models

import (
	"strings"
	"time"
)

// Grant is a short-lived authorization code (RFC 6749 §4.1.2).
// Exactly one row per code; consumed (deleted) exactly once at
// code-exchange time or removed by the expiry sweep.
type Grant struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Code          string `gorm:"uniqueIndex;not null"`
	ApplicationID int64  `gorm:"not null;index"`
	UserID        string `gorm:"not null;index"`
	RedirectURI   string `gorm:"not null"`
	Scopes        string `gorm:"not null"` // space-separated scopes
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

func (Grant) TableName() string {
	return "grants"
}

func (g *Grant) IsExpired() bool {
	return !time.Now().Before(g.ExpiresAt)
}

// ScopeList returns the granted scopes as a slice.
func (g *Grant) ScopeList() []string {
	return strings.Fields(g.Scopes)
}

// JoinScopes renders a scope set in the stored space-separated form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// RedirectURIMatches reports whether uri equals the redirect URI the
// grant was issued for, byte for byte. No normalization happens at this
// layer; the looser query-subset rule applies only at the Application
// level before a grant exists.
func (g *Grant) RedirectURIMatches(uri string) bool {
	return g.RedirectURI == uri
}
