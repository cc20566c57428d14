package models

import (
	"time"
)

// User is a resource owner known to the authorization server. Credential
// storage beyond the password hash lives with the external Authenticator.
type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"index"`
	PasswordHash string // externally-managed accounts have empty password
	// IsActive marks an account administratively active. The OAuth
	// password-grant path authenticates inactive accounts anyway; other
	// login surfaces are expected to honor this flag.
	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
