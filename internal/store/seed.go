package store

import (
	"context"
	"encoding/base64"
	"log"

	"github.com/go-partnergate/partnergate/internal/models"
	"github.com/go-partnergate/partnergate/internal/util"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// generateRandomPassword generates a random password of specified length
func generateRandomPassword(length int) (string, error) {
	bytes, err := util.CryptoRandomBytes(int64(length))
	if err != nil {
		return "", err
	}
	// Use base64 URL encoding to get a safe, printable password
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

// Seed creates a default admin user and a default confidential
// application when the respective tables are empty. Generated
// credentials are printed once at startup.
func (s *Store) Seed(ctx context.Context) error {
	var userCount int64
	s.db.Model(&models.User{}).Count(&userCount)
	if userCount == 0 {
		password, err := generateRandomPassword(16)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := &models.User{
			ID:           uuid.New().String(),
			Username:     "admin",
			Email:        "admin@localhost",
			PasswordHash: string(hash),
			IsActive:     true,
		}
		if err := s.db.Create(user).Error; err != nil {
			return err
		}
		log.Printf("Created default user: admin / %s", password)
	}

	var appCount int64
	s.db.Model(&models.Application{}).Count(&appCount)
	if appCount == 0 {
		app := &models.Application{
			ClientID:     uuid.New().String(),
			Name:         "Partner API Default",
			ClientType:   models.ClientConfidential,
			GrantType:    models.GrantAuthorizationCode,
			RedirectURIs: "https://partner.example/cb",
		}
		secret, err := app.GenerateClientSecret(ctx)
		if err != nil {
			return err
		}
		if err := s.CreateApplication(app); err != nil {
			return err
		}
		log.Printf("Created default application: %s", app.ClientID)
		log.Printf("Client Secret (save this): %s", secret)
	}

	return nil
}
