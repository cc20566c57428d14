package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-partnergate/partnergate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the durable record of applications, grants, access tokens and
// refresh tokens. It is the only shared resource between concurrent
// requests; every multi-step mutation runs inside a single transaction
// so readers never observe a partially-applied state.
type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.User{},
		&models.Application{},
		&models.Grant{},
		&models.AccessToken{},
		&models.RefreshToken{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// wrapNotFound maps GORM's record-not-found onto the store sentinel.
func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Application operations

func (s *Store) CreateApplication(app *models.Application) error {
	if err := app.Validate(); err != nil {
		return err
	}
	return s.db.Create(app).Error
}

func (s *Store) GetApplication(clientID string) (*models.Application, error) {
	var app models.Application
	if err := s.db.Where("client_id = ?", clientID).First(&app).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &app, nil
}

func (s *Store) GetApplicationByID(id int64) (*models.Application, error) {
	var app models.Application
	if err := s.db.Where("id = ?", id).First(&app).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &app, nil
}

// Grant operations

func (s *Store) CreateGrant(g *models.Grant) error {
	return s.db.Create(g).Error
}

func (s *Store) GetGrant(code string, applicationID int64) (*models.Grant, error) {
	var g models.Grant
	err := s.db.Where("code = ? AND application_id = ?", code, applicationID).
		First(&g).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &g, nil
}

// DeleteGrant consumes an authorization code. A second exchange of the
// same code fails because the row no longer exists.
func (s *Store) DeleteGrant(g *models.Grant) error {
	res := s.db.Delete(&models.Grant{}, g.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Access token operations

func (s *Store) CreateAccessToken(t *models.AccessToken) error {
	return s.db.Create(t).Error
}

func (s *Store) GetAccessToken(token string) (*models.AccessToken, error) {
	var t models.AccessToken
	if err := s.db.Where("token = ?", token).First(&t).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &t, nil
}

// RevokeAccessToken deletes the access token row. The refresh token
// owning it, if any, is deliberately left in place; see RevokeRefreshToken
// for the cascading direction.
func (s *Store) RevokeAccessToken(token string) error {
	res := s.db.Where("token = ?", token).Delete(&models.AccessToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh token operations

func (s *Store) CreateRefreshToken(rt *models.RefreshToken) error {
	return s.db.Create(rt).Error
}

func (s *Store) GetRefreshToken(token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := s.db.Where("token = ?", token).First(&rt).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &rt, nil
}

// RevokeRefreshToken deletes the refresh token row and cascades to its
// owning access token, in one transaction.
func (s *Store) RevokeRefreshToken(token string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var rt models.RefreshToken
		if err := tx.Where("token = ?", token).First(&rt).Error; err != nil {
			return wrapNotFound(err)
		}
		if err := tx.Delete(&models.RefreshToken{}, rt.ID).Error; err != nil {
			return err
		}
		// The access token may already have been revoked directly; a
		// missing row here is not an error.
		return tx.Where("id = ?", rt.AccessTokenID).
			Delete(&models.AccessToken{}).Error
	})
}

// CreateTokenPair persists a new access token and, when rt is non-nil,
// its 1:1 refresh token, atomically. A concurrent reader never observes
// the access token without its paired refresh token.
func (s *Store) CreateTokenPair(at *models.AccessToken, rt *models.RefreshToken) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(at).Error; err != nil {
			return fmt.Errorf("failed to save access token: %w", err)
		}
		if rt != nil {
			rt.AccessTokenID = at.ID
			if err := tx.Create(rt).Error; err != nil {
				return fmt.Errorf("failed to save refresh token: %w", err)
			}
		}
		return nil
	})
}

// PurgeResult reports how many rows an expiry sweep removed.
type PurgeResult struct {
	Grants        int64
	AccessTokens  int64
	RefreshTokens int64
}

// PurgeExpired removes expired rows in a single transaction:
//
//  1. refresh tokens whose owning access token expired more than
//     refreshGrace ago (skipped entirely when refreshGrace is zero,
//     meaning refresh tokens never age out),
//  2. access tokens past expiry that have no refresh token — a token
//     with a live refresh token is retained past its own expiry,
//     pending refresh,
//  3. expired grants.
//
// Running as one atomic unit guarantees a concurrent reader never sees
// a refresh token pointing at a deleted access token mid-sweep.
func (s *Store) PurgeExpired(now time.Time, refreshGrace time.Duration) (PurgeResult, error) {
	var result PurgeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if refreshGrace > 0 {
			cutoff := now.Add(-refreshGrace)
			res := tx.Where(
				"access_token_id IN (?)",
				tx.Model(&models.AccessToken{}).Select("id").
					Where("expires_at < ?", cutoff),
			).Delete(&models.RefreshToken{})
			if res.Error != nil {
				return res.Error
			}
			result.RefreshTokens = res.RowsAffected
		}

		res := tx.Where(
			"expires_at < ? AND id NOT IN (?)",
			now,
			tx.Model(&models.RefreshToken{}).Select("access_token_id"),
		).Delete(&models.AccessToken{})
		if res.Error != nil {
			return res.Error
		}
		result.AccessTokens = res.RowsAffected

		res = tx.Where("expires_at < ?", now).Delete(&models.Grant{})
		if res.Error != nil {
			return res.Error
		}
		result.Grants = res.RowsAffected
		return nil
	})
	if err != nil {
		return PurgeResult{}, err
	}
	return result, nil
}

// User operations

func (s *Store) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}

func (s *Store) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

// Gauge counts for the metrics updater

func (s *Store) CountAccessTokens() (int64, error) {
	var n int64
	err := s.db.Model(&models.AccessToken{}).Count(&n).Error
	return n, err
}

func (s *Store) CountRefreshTokens() (int64, error) {
	var n int64
	err := s.db.Model(&models.RefreshToken{}).Count(&n).Error
	return n, err
}

func (s *Store) CountGrants() (int64, error) {
	var n int64
	err := s.db.Model(&models.Grant{}).Count(&n).Error
	return n, err
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}
