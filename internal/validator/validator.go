package validator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-partnergate/partnergate/internal/config"
	"github.com/go-partnergate/partnergate/internal/core"
	"github.com/go-partnergate/partnergate/internal/models"
	"github.com/go-partnergate/partnergate/internal/store"
)

// Token type hints accepted by RevokeToken (RFC 7009 §2.1).
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
	HintUnknown      = ""
)

// Validator is the decision logic invoked by the protocol layer at each
// OAuth step. It is stateless: all durable state lives in the store, and
// per-request state lives in the Request the caller threads through.
// Safe for arbitrary concurrent use.
type Validator struct {
	store   *store.Store
	auth    core.AuthProvider
	apps    core.Cache[models.Application]
	cfg     *config.Config
	metrics core.Recorder
}

// New creates a Validator. The application cache fronts the hot
// ResolveApplication lookup; pass a memory cache for single-instance
// deployments.
func New(
	s *store.Store,
	authProvider core.AuthProvider,
	appCache core.Cache[models.Application],
	cfg *config.Config,
	recorder core.Recorder,
) *Validator {
	return &Validator{
		store:   s,
		auth:    authProvider,
		apps:    appCache,
		cfg:     cfg,
		metrics: recorder,
	}
}

// ResolveApplication looks up the application for clientID and stores it
// in req.Client. Repeat calls within the same request reuse the resolved
// value. Returns false for an unknown client.
func (v *Validator) ResolveApplication(
	ctx context.Context,
	req *Request,
	clientID string,
) (bool, error) {
	if req.Client != nil && req.Client.ClientID == clientID {
		return true, nil
	}

	app, err := v.apps.GetWithFetch(
		ctx,
		clientID,
		v.cfg.AppCacheTTL,
		func(ctx context.Context, key string) (models.Application, error) {
			a, err := v.store.GetApplication(key)
			if err != nil {
				return models.Application{}, err
			}
			return *a, nil
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		v.metrics.RecordDatabaseQueryError("resolve_application")
		return false, fmt.Errorf("failed to resolve application: %w", err)
	}

	req.Client = &app
	return true, nil
}

// ConfirmRedirectURI reports whether redirectURI byte-for-byte equals
// the redirect URI the grant identified by code was issued for. No
// normalization happens here; the looser query-subset rule applies only
// before a grant exists (ApplicationRedirectAllowed). Fails closed when
// the grant does not exist.
func (v *Validator) ConfirmRedirectURI(
	ctx context.Context,
	req *Request,
	code, redirectURI string,
) (bool, error) {
	grant, err := v.store.GetGrant(code, req.Client.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		v.metrics.RecordDatabaseQueryError("confirm_redirect_uri")
		return false, fmt.Errorf("failed to load grant: %w", err)
	}
	return grant.RedirectURIMatches(redirectURI), nil
}

// ApplicationRedirectAllowed reports whether uri is acceptable during
// the authorization step, before any grant exists. The registered URI's
// query parameters must be a subset of uri's, with identical scheme,
// host and path.
func (v *Validator) ApplicationRedirectAllowed(app *models.Application, uri string) bool {
	return app.RedirectURIAllowed(uri)
}

// ValidateCode looks up the grant for (code, req.Client) and reports
// whether it exists and is unexpired. On success it populates the
// granted scopes and the resolved user into req. The grant is NOT
// consumed here; InvalidateAuthorizationCode does that after a
// successful exchange.
func (v *Validator) ValidateCode(
	ctx context.Context,
	req *Request,
	code string,
) (bool, error) {
	grant, err := v.store.GetGrant(code, req.Client.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordCodeValidation("not_found")
			return false, nil
		}
		v.metrics.RecordDatabaseQueryError("validate_code")
		return false, fmt.Errorf("failed to load grant: %w", err)
	}

	if grant.IsExpired() {
		v.metrics.RecordCodeValidation("expired")
		return false, nil
	}

	user, err := v.store.GetUserByID(grant.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordCodeValidation("not_found")
			return false, nil
		}
		v.metrics.RecordDatabaseQueryError("validate_code")
		return false, fmt.Errorf("failed to load grant user: %w", err)
	}

	req.Scopes = grant.ScopeList()
	req.User = user
	v.metrics.RecordCodeValidation("success")
	return true, nil
}

// InvalidateAuthorizationCode consumes the grant for code. Called
// exactly once per successful exchange; a second exchange of the same
// code then fails because ValidateCode no longer finds the grant. An
// already-consumed code is a no-op.
func (v *Validator) InvalidateAuthorizationCode(
	ctx context.Context,
	req *Request,
	code string,
) error {
	grant, err := v.store.GetGrant(code, req.Client.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		v.metrics.RecordDatabaseQueryError("invalidate_code")
		return fmt.Errorf("failed to load grant: %w", err)
	}
	if err := v.store.DeleteGrant(grant); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		v.metrics.RecordDatabaseQueryError("invalidate_code")
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// SaveAuthorizationCode creates a grant for the approved authorization,
// expiring after the configured code TTL.
func (v *Validator) SaveAuthorizationCode(
	ctx context.Context,
	req *Request,
	user *models.User,
	code, redirectURI string,
	scopes []string,
) error {
	grant := &models.Grant{
		Code:          code,
		ApplicationID: req.Client.ID,
		UserID:        user.ID,
		RedirectURI:   redirectURI,
		Scopes:        models.JoinScopes(scopes),
		ExpiresAt:     time.Now().Add(v.cfg.AuthCodeTTL),
	}
	if err := v.store.CreateGrant(grant); err != nil {
		v.metrics.RecordGrantIssued(false)
		v.metrics.RecordDatabaseQueryError("save_authorization_code")
		return fmt.Errorf("failed to save grant: %w", err)
	}
	v.metrics.RecordGrantIssued(true)
	return nil
}

// SaveBearerToken persists the tokens of a successful exchange and
// returns the access token TTL for the protocol response.
//
// When req.RefreshToken is set (a refresh-grant exchange), the consumed
// refresh token is revoked first, cascading to its old access token, so
// at most one access token per lineage is ever live. For
// client_credentials exchanges the new access token carries no user.
// An empty refreshTokenValue issues a bare access token.
func (v *Validator) SaveBearerToken(
	ctx context.Context,
	req *Request,
	grantType string,
	scopes []string,
	accessTokenValue, refreshTokenValue string,
) (time.Duration, error) {
	if req.RefreshToken != nil {
		err := v.store.RevokeRefreshToken(req.RefreshToken.Token)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordDatabaseQueryError("save_bearer_token")
			return 0, fmt.Errorf("failed to revoke consumed refresh token: %w", err)
		}
		if err == nil {
			v.metrics.RecordTokenRevoked("refresh", "refresh_rotation")
		}
	}

	var userID string
	if grantType != models.GrantClientCredentials && req.User != nil {
		userID = req.User.ID
	}

	at := &models.AccessToken{
		Token:         accessTokenValue,
		ApplicationID: req.Client.ID,
		UserID:        userID,
		Scopes:        models.JoinScopes(scopes),
		ExpiresAt:     time.Now().Add(v.cfg.AccessTokenTTL),
	}

	var rt *models.RefreshToken
	if refreshTokenValue != "" {
		rt = &models.RefreshToken{
			Token:         refreshTokenValue,
			ApplicationID: req.Client.ID,
			UserID:        userID,
		}
	}

	if err := v.store.CreateTokenPair(at, rt); err != nil {
		v.metrics.RecordDatabaseQueryError("save_bearer_token")
		return 0, fmt.Errorf("failed to save bearer token: %w", err)
	}

	v.metrics.RecordTokenIssued("access", grantType)
	if rt != nil {
		v.metrics.RecordTokenIssued("refresh", grantType)
	}
	return v.cfg.AccessTokenTTL, nil
}

// ValidateBearerToken reports whether token grants access with the
// required scopes. On success it populates req with the resolved
// application, user, granted scopes and the token record. Empty,
// unknown, expired and under-scoped tokens all fail with no side
// effect.
func (v *Validator) ValidateBearerToken(
	ctx context.Context,
	req *Request,
	token string,
	requiredScopes []string,
) (bool, error) {
	start := time.Now()

	if token == "" {
		v.metrics.RecordTokenValidation("empty", time.Since(start))
		return false, nil
	}

	at, err := v.store.GetAccessToken(token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordTokenValidation("not_found", time.Since(start))
			return false, nil
		}
		v.metrics.RecordDatabaseQueryError("validate_bearer_token")
		return false, fmt.Errorf("failed to load access token: %w", err)
	}

	if at.IsExpired() {
		v.metrics.RecordTokenValidation("expired", time.Since(start))
		return false, nil
	}

	if !at.AllowScopes(requiredScopes) {
		v.metrics.RecordTokenValidation("scope_denied", time.Since(start))
		return false, nil
	}

	app, err := v.store.GetApplicationByID(at.ApplicationID)
	if err != nil {
		v.metrics.RecordDatabaseQueryError("validate_bearer_token")
		return false, fmt.Errorf("failed to load token application: %w", err)
	}

	// client_credentials tokens carry no user
	var user *models.User
	if at.UserID != "" {
		user, err = v.store.GetUserByID(at.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordDatabaseQueryError("validate_bearer_token")
			return false, fmt.Errorf("failed to load token user: %w", err)
		}
	}

	req.Client = app
	req.User = user
	req.Scopes = at.ScopeList()
	req.AccessToken = at
	v.metrics.RecordTokenValidation("success", time.Since(start))
	return true, nil
}

// RevokeToken revokes tokenValue wherever it is found. The hint names
// the table to try first; on a miss there the other table is probed.
// Revoking an absent token is a successful no-op, so callers cannot
// probe for token existence through the revocation endpoint.
func (v *Validator) RevokeToken(
	ctx context.Context,
	req *Request,
	tokenValue, typeHint string,
) error {
	order := []string{HintAccessToken, HintRefreshToken}
	if typeHint == HintRefreshToken {
		order = []string{HintRefreshToken, HintAccessToken}
	}

	for _, kind := range order {
		var err error
		switch kind {
		case HintAccessToken:
			err = v.store.RevokeAccessToken(tokenValue)
		case HintRefreshToken:
			err = v.store.RevokeRefreshToken(tokenValue)
		}
		if err == nil {
			if kind == HintAccessToken {
				v.metrics.RecordTokenRevoked("access", "request")
			} else {
				v.metrics.RecordTokenRevoked("refresh", "request")
			}
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordDatabaseQueryError("revoke_token")
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	// Nothing matched in either table. Idempotent success, but worth a
	// log line when the client hinted a type it should have known.
	if typeHint != HintUnknown {
		log.Printf("[Validator] revoke: no %s (or fallback) match for presented token", typeHint)
	}
	return nil
}

// AuthenticateResourceOwner verifies username/password through the
// configured authentication provider and populates req.User on success.
//
// Administratively inactive accounts still authenticate here. Only the
// password-grant path honors inactive accounts; interactive login
// surfaces are expected to reject them.
func (v *Validator) AuthenticateResourceOwner(
	ctx context.Context,
	req *Request,
	username, password string,
) (bool, error) {
	start := time.Now()

	result, err := v.auth.Authenticate(ctx, username, password)
	if err != nil {
		v.metrics.RecordAuthAttempt(v.auth.Name(), false, time.Since(start))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		return false, nil
	}
	if result == nil || !result.Success {
		v.metrics.RecordAuthAttempt(v.auth.Name(), false, time.Since(start))
		return false, nil
	}

	if result.Inactive {
		log.Printf("[Validator] password grant for inactive account %q accepted", username)
	}

	req.User = &models.User{
		ID:       result.UserID,
		Username: result.Username,
		Email:    result.Email,
		IsActive: !result.Inactive,
	}
	v.metrics.RecordAuthAttempt(v.auth.Name(), true, time.Since(start))
	return true, nil
}

// ValidateRefreshToken reports whether tokenValue is a live refresh
// token belonging to req.Client. On success it attaches the resolved
// user and the refresh-token record itself to req; the record is needed
// later by the scope-carryover logic and by SaveBearerToken's rotation
// step.
func (v *Validator) ValidateRefreshToken(
	ctx context.Context,
	req *Request,
	tokenValue string,
) (bool, error) {
	rt, err := v.store.GetRefreshToken(tokenValue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordRefreshValidation(false)
			return false, nil
		}
		v.metrics.RecordDatabaseQueryError("validate_refresh_token")
		return false, fmt.Errorf("failed to load refresh token: %w", err)
	}

	if rt.ApplicationID != req.Client.ID {
		v.metrics.RecordRefreshValidation(false)
		return false, nil
	}

	var user *models.User
	if rt.UserID != "" {
		user, err = v.store.GetUserByID(rt.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			v.metrics.RecordDatabaseQueryError("validate_refresh_token")
			return false, fmt.Errorf("failed to load refresh token user: %w", err)
		}
	}

	req.User = user
	req.RefreshToken = rt
	v.metrics.RecordRefreshValidation(true)
	return true, nil
}
