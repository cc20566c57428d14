package models

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationValidate(t *testing.T) {
	app := &Application{GrantType: GrantAuthorizationCode}
	assert.ErrorIs(t, app.Validate(), ErrRedirectURIsRequired)

	app.RedirectURIs = "https://partner.example/cb"
	assert.NoError(t, app.Validate())

	implicit := &Application{GrantType: GrantImplicit}
	assert.ErrorIs(t, implicit.Validate(), ErrRedirectURIsRequired)

	// Non-redirect grants do not require redirect URIs
	cc := &Application{GrantType: GrantClientCredentials}
	assert.NoError(t, cc.Validate())
	pw := &Application{GrantType: GrantPassword}
	assert.NoError(t, pw.Validate())
}

func TestApplicationRedirectURIAllowed(t *testing.T) {
	app := &Application{
		GrantType:    GrantAuthorizationCode,
		RedirectURIs: "https://partner.example/cb https://partner.example/alt",
	}

	assert.True(t, app.RedirectURIAllowed("https://partner.example/cb"))
	assert.True(t, app.RedirectURIAllowed("https://partner.example/cb?state=xyz"))
	assert.True(t, app.RedirectURIAllowed("https://partner.example/alt"))
	assert.False(t, app.RedirectURIAllowed("https://partner.example/other"))
	assert.False(t, app.RedirectURIAllowed("http://partner.example/cb"))
	assert.False(t, app.RedirectURIAllowed(""))
}

func TestApplicationClientSecret(t *testing.T) {
	app := &Application{ClientType: ClientConfidential}

	secret, err := app.GenerateClientSecret(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret, "pgo_"))
	assert.NotEqual(t, secret, app.ClientSecret) // only the hash is stored

	assert.True(t, app.ValidateClientSecret([]byte(secret)))
	assert.False(t, app.ValidateClientSecret([]byte("wrong")))

	// Public clients carry no secret and never validate one
	public := &Application{ClientType: ClientPublic}
	assert.False(t, public.ValidateClientSecret([]byte("")))
}

func TestGrantExpiry(t *testing.T) {
	g := &Grant{ExpiresAt: time.Now().Add(10 * time.Minute)}
	assert.False(t, g.IsExpired())

	g.ExpiresAt = time.Now().Add(-time.Second)
	assert.True(t, g.IsExpired())
}

func TestGrantRedirectURIMatches(t *testing.T) {
	g := &Grant{RedirectURI: "https://partner.example/cb"}

	assert.True(t, g.RedirectURIMatches("https://partner.example/cb"))
	// Byte-for-byte: the grant-level check allows no query superset
	assert.False(t, g.RedirectURIMatches("https://partner.example/cb?state=xyz"))
	assert.False(t, g.RedirectURIMatches("https://partner.example/cb/"))
}

func TestGrantScopeList(t *testing.T) {
	g := &Grant{Scopes: "read write"}
	assert.Equal(t, []string{"read", "write"}, g.ScopeList())
}

func TestAccessTokenAllowScopes(t *testing.T) {
	tok := &AccessToken{
		Scopes:    "read write",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	assert.True(t, tok.AllowScopes(nil))
	assert.True(t, tok.AllowScopes([]string{"read"}))
	assert.True(t, tok.AllowScopes([]string{"read", "write"}))
	assert.False(t, tok.AllowScopes([]string{"admin"}))
	assert.False(t, tok.AllowScopes([]string{"read", "admin"}))
}

func TestAccessTokenIsValid(t *testing.T) {
	tok := &AccessToken{
		Scopes:    "read",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	assert.True(t, tok.IsValid(nil))
	assert.True(t, tok.IsValid([]string{"read"}))
	assert.False(t, tok.IsValid([]string{"write"}))

	tok.ExpiresAt = time.Now().Add(-time.Minute)
	assert.False(t, tok.IsValid(nil))
	assert.False(t, tok.IsValid([]string{"read"}))
}
