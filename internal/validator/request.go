package validator

import "github.com/go-partnergate/partnergate/internal/models"

// Request carries the per-request context the protocol layer threads
// through a single inbound OAuth request. Validator operations populate
// it as a side effect of successful checks; nothing here outlives the
// request.
type Request struct {
	// Client is the resolved application, populated by ResolveApplication
	// and reused by later operations within the same request.
	Client *models.Application

	// User is the resolved resource owner. Nil for client_credentials
	// exchanges and until a validate/authenticate step succeeds.
	User *models.User

	// Scopes are the granted scopes attached by ValidateCode or
	// ValidateBearerToken.
	Scopes []string

	// AccessToken is the record resolved by ValidateBearerToken.
	AccessToken *models.AccessToken

	// RefreshToken is the record resolved by ValidateRefreshToken. When
	// set, SaveBearerToken treats it as the consumed token of a refresh
	// exchange and revokes it before issuing the replacement pair.
	RefreshToken *models.RefreshToken
}
