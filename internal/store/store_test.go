package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-partnergate/partnergate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation
// For SQLite, each call creates a fresh :memory: database
// For PostgreSQL, each call creates a uniquely-named database in the container
func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]

		ctx := context.Background()

		createDBCmd := fmt.Sprintf("CREATE DATABASE %s", dbName)
		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", createDBCmd},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			dropDBCmd := fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", dropDBCmd},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	store, err := New(driver, dsn)
	require.NoError(t, err)
	require.NotNil(t, store)

	return store
}

func createTestApplication(t *testing.T, s *Store) *models.Application {
	t.Helper()
	app := &models.Application{
		ClientID:     uuid.New().String(),
		ClientSecret: "hashed-secret",
		Name:         "Test Partner",
		ClientType:   models.ClientConfidential,
		GrantType:    models.GrantAuthorizationCode,
		RedirectURIs: "https://partner.example/cb",
	}
	require.NoError(t, s.CreateApplication(app))
	return app
}

func createTestTokenPair(
	t *testing.T,
	s *Store,
	app *models.Application,
	expiresAt time.Time,
	withRefresh bool,
) (*models.AccessToken, *models.RefreshToken) {
	t.Helper()
	at := &models.AccessToken{
		Token:         uuid.New().String(),
		ApplicationID: app.ID,
		UserID:        uuid.New().String(),
		Scopes:        "read write",
		ExpiresAt:     expiresAt,
	}
	var rt *models.RefreshToken
	if withRefresh {
		rt = &models.RefreshToken{
			Token:         uuid.New().String(),
			ApplicationID: app.ID,
			UserID:        at.UserID,
		}
	}
	require.NoError(t, s.CreateTokenPair(at, rt))
	return at, rt
}

// testBasicOperations tests store operations against the given driver.
// Each subtest creates a fresh store instance for isolation.
func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	t.Run("CreateAndGetApplication", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)

		retrieved, err := s.GetApplication(app.ClientID)
		require.NoError(t, err)
		assert.Equal(t, app.ID, retrieved.ID)
		assert.Equal(t, app.Name, retrieved.Name)

		byID, err := s.GetApplicationByID(app.ID)
		require.NoError(t, err)
		assert.Equal(t, app.ClientID, byID.ClientID)

		_, err = s.GetApplication("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CreateApplicationRequiresRedirectURIs", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		err := s.CreateApplication(&models.Application{
			ClientID:  uuid.New().String(),
			Name:      "No Redirects",
			GrantType: models.GrantAuthorizationCode,
		})
		assert.ErrorIs(t, err, models.ErrRedirectURIsRequired)
	})

	t.Run("GrantLifecycle", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		grant := &models.Grant{
			Code:          uuid.New().String(),
			ApplicationID: app.ID,
			UserID:        uuid.New().String(),
			RedirectURI:   "https://partner.example/cb",
			Scopes:        "read write",
			ExpiresAt:     time.Now().Add(10 * time.Minute),
		}
		require.NoError(t, s.CreateGrant(grant))

		retrieved, err := s.GetGrant(grant.Code, app.ID)
		require.NoError(t, err)
		assert.Equal(t, grant.Scopes, retrieved.Scopes)

		// Lookup is keyed by (code, application); the wrong application misses
		_, err = s.GetGrant(grant.Code, app.ID+1)
		assert.ErrorIs(t, err, ErrNotFound)

		// Single-use: once deleted, the code is gone
		require.NoError(t, s.DeleteGrant(retrieved))
		_, err = s.GetGrant(grant.Code, app.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteGrant(retrieved), ErrNotFound)
	})

	t.Run("TokenPairAndCascadeRevoke", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		at, rt := createTestTokenPair(t, s, app, time.Now().Add(time.Hour), true)

		// Revoking the refresh token cascades to its access token
		require.NoError(t, s.RevokeRefreshToken(rt.Token))
		_, err := s.GetRefreshToken(rt.Token)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetAccessToken(at.Token)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("AccessTokenRevokeDoesNotCascade", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		at, rt := createTestTokenPair(t, s, app, time.Now().Add(time.Hour), true)

		// The reverse direction is asymmetric: the refresh token survives
		require.NoError(t, s.RevokeAccessToken(at.Token))
		_, err := s.GetAccessToken(at.Token)
		assert.ErrorIs(t, err, ErrNotFound)

		orphan, err := s.GetRefreshToken(rt.Token)
		require.NoError(t, err)
		assert.Equal(t, at.ID, orphan.AccessTokenID)
	})

	t.Run("RevokeMissingToken", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		assert.ErrorIs(t, s.RevokeAccessToken("absent"), ErrNotFound)
		assert.ErrorIs(t, s.RevokeRefreshToken("absent"), ErrNotFound)
	})

	t.Run("PurgeExpiredFreshTokensUntouched", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		at, rt := createTestTokenPair(t, s, app, time.Now().Add(time.Hour), true)

		result, err := s.PurgeExpired(time.Now(), 0)
		require.NoError(t, err)
		assert.Zero(t, result.AccessTokens)
		assert.Zero(t, result.RefreshTokens)

		_, err = s.GetAccessToken(at.Token)
		assert.NoError(t, err)
		_, err = s.GetRefreshToken(rt.Token)
		assert.NoError(t, err)
	})

	t.Run("PurgeExpiredDeletesBareAccessToken", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		at, _ := createTestTokenPair(t, s, app, time.Now().Add(-2*time.Hour), false)

		result, err := s.PurgeExpired(time.Now(), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.AccessTokens)

		_, err = s.GetAccessToken(at.Token)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PurgeExpiredRetainsTokenWithRefresh", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		at, rt := createTestTokenPair(t, s, app, time.Now().Add(-2*time.Hour), true)

		// Zero grace disables the refresh sweep, so the expired access
		// token is retained pending refresh
		result, err := s.PurgeExpired(time.Now(), 0)
		require.NoError(t, err)
		assert.Zero(t, result.AccessTokens)
		assert.Zero(t, result.RefreshTokens)

		_, err = s.GetAccessToken(at.Token)
		assert.NoError(t, err)
		_, err = s.GetRefreshToken(rt.Token)
		assert.NoError(t, err)
	})

	t.Run("PurgeExpiredRefreshGrace", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		// Expired 2h ago: outside a 1h grace window
		oldAT, oldRT := createTestTokenPair(t, s, app, time.Now().Add(-2*time.Hour), true)
		// Expired 10m ago: still within grace
		newAT, newRT := createTestTokenPair(t, s, app, time.Now().Add(-10*time.Minute), true)

		result, err := s.PurgeExpired(time.Now(), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.RefreshTokens)
		assert.Equal(t, int64(1), result.AccessTokens)

		_, err = s.GetRefreshToken(oldRT.Token)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetAccessToken(oldAT.Token)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetRefreshToken(newRT.Token)
		assert.NoError(t, err)
		_, err = s.GetAccessToken(newAT.Token)
		assert.NoError(t, err)
	})

	t.Run("PurgeExpiredGrants", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		expired := &models.Grant{
			Code:          uuid.New().String(),
			ApplicationID: app.ID,
			UserID:        uuid.New().String(),
			RedirectURI:   "https://partner.example/cb",
			Scopes:        "read",
			ExpiresAt:     time.Now().Add(-time.Minute),
		}
		fresh := &models.Grant{
			Code:          uuid.New().String(),
			ApplicationID: app.ID,
			UserID:        uuid.New().String(),
			RedirectURI:   "https://partner.example/cb",
			Scopes:        "read",
			ExpiresAt:     time.Now().Add(10 * time.Minute),
		}
		require.NoError(t, s.CreateGrant(expired))
		require.NoError(t, s.CreateGrant(fresh))

		result, err := s.PurgeExpired(time.Now(), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Grants)

		_, err = s.GetGrant(expired.Code, app.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetGrant(fresh.Code, app.ID)
		assert.NoError(t, err)
	})

	t.Run("UserOperations", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		user := &models.User{
			ID:           uuid.New().String(),
			Username:     "partner-user",
			PasswordHash: "hashed",
			IsActive:     true,
		}
		require.NoError(t, s.CreateUser(user))

		byName, err := s.GetUserByUsername("partner-user")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)

		byID, err := s.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, byID.Username)

		_, err = s.GetUserByID("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Counts", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		app := createTestApplication(t, s)
		createTestTokenPair(t, s, app, time.Now().Add(time.Hour), true)
		createTestTokenPair(t, s, app, time.Now().Add(time.Hour), false)

		atCount, err := s.CountAccessTokens()
		require.NoError(t, err)
		assert.Equal(t, int64(2), atCount)

		rtCount, err := s.CountRefreshTokens()
		require.NoError(t, err)
		assert.Equal(t, int64(1), rtCount)
	})

	t.Run("Seed", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)

		require.NoError(t, s.Seed(context.Background()))

		admin, err := s.GetUserByUsername("admin")
		require.NoError(t, err)
		assert.True(t, admin.IsActive)

		// Idempotent: a second run creates nothing new
		require.NoError(t, s.Seed(context.Background()))
	})
}
