package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/go-partnergate/partnergate/internal/metrics"
	"github.com/go-partnergate/partnergate/internal/models"
	"github.com/go-partnergate/partnergate/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*store.Store, *models.Application) {
	t.Helper()
	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	app := &models.Application{
		ClientID:   uuid.NewString(),
		Name:       "partner-app",
		ClientType: models.ClientConfidential,
		GrantType:  models.GrantClientCredentials,
	}
	require.NoError(t, s.CreateApplication(app))
	return s, app
}

func TestSweepRemovesExpiredRows(t *testing.T) {
	s, app := newTestStore(t)

	require.NoError(t, s.CreateGrant(&models.Grant{
		Code:          "expired-code",
		ApplicationID: app.ID,
		UserID:        "u-1",
		RedirectURI:   "https://partner.example/cb",
		Scopes:        "read",
		ExpiresAt:     time.Now().Add(-time.Hour),
	}))
	require.NoError(t, s.CreateAccessToken(&models.AccessToken{
		Token:         "expired-token",
		ApplicationID: app.ID,
		Scopes:        "read",
		ExpiresAt:     time.Now().Add(-2 * time.Hour),
	}))
	require.NoError(t, s.CreateAccessToken(&models.AccessToken{
		Token:         "live-token",
		ApplicationID: app.ID,
		Scopes:        "read",
		ExpiresAt:     time.Now().Add(time.Hour),
	}))

	sw := New(s, time.Hour, 0, metrics.NewNoopMetrics())
	sw.Sweep()

	_, err := s.GetGrant("expired-code", app.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetAccessToken("expired-token")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetAccessToken("live-token")
	assert.NoError(t, err)
}

func TestSweepRetainsRefreshablePairAtZeroGrace(t *testing.T) {
	s, app := newTestStore(t)

	at := &models.AccessToken{
		Token:         "expired-with-refresh",
		ApplicationID: app.ID,
		Scopes:        "read",
		ExpiresAt:     time.Now().Add(-2 * time.Hour),
	}
	rt := &models.RefreshToken{
		Token:         "rt-1",
		ApplicationID: app.ID,
	}
	require.NoError(t, s.CreateTokenPair(at, rt))

	// Zero grace means refresh tokens never age out, and their access
	// token survives pending refresh.
	sw := New(s, time.Hour, 0, metrics.NewNoopMetrics())
	sw.Sweep()

	_, err := s.GetAccessToken("expired-with-refresh")
	assert.NoError(t, err)
	_, err = s.GetRefreshToken("rt-1")
	assert.NoError(t, err)
}

func TestSweepExpiresRefreshTokensPastGrace(t *testing.T) {
	s, app := newTestStore(t)

	at := &models.AccessToken{
		Token:         "long-expired",
		ApplicationID: app.ID,
		Scopes:        "read",
		ExpiresAt:     time.Now().Add(-3 * time.Hour),
	}
	rt := &models.RefreshToken{
		Token:         "rt-old",
		ApplicationID: app.ID,
	}
	require.NoError(t, s.CreateTokenPair(at, rt))

	sw := New(s, time.Hour, time.Hour, metrics.NewNoopMetrics())
	sw.Sweep()

	_, err := s.GetRefreshToken("rt-old")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetAccessToken("long-expired")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s, _ := newTestStore(t)
	sw := New(s, 10*time.Millisecond, 0, metrics.NewNoopMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sw.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
