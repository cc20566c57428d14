package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	retry "github.com/appleboy/go-httpretry"

	"github.com/go-partnergate/partnergate/internal/config"
	"github.com/go-partnergate/partnergate/internal/core"
)

// Compile-time interface check.
var _ core.AuthProvider = (*HTTPAPIAuthProvider)(nil)

// HTTPAPIAuthProvider handles HTTP API-based authentication against an
// external account service. Transient failures are retried by the
// underlying client.
type HTTPAPIAuthProvider struct {
	config      *config.Config
	retryClient *retry.Client
}

// NewHTTPAPIAuthProvider creates a new HTTP API authentication provider
func NewHTTPAPIAuthProvider(cfg *config.Config, retryClient *retry.Client) *HTTPAPIAuthProvider {
	return &HTTPAPIAuthProvider{
		config:      cfg,
		retryClient: retryClient,
	}
}

// APIAuthRequest is the request payload sent to external API
type APIAuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIAuthResponse is the expected response from external API
type APIAuthResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"` // nil means the API does not track activation
	Message  string `json:"message,omitempty"`
}

// Authenticate verifies credentials against external HTTP API
func (p *HTTPAPIAuthProvider) Authenticate(
	ctx context.Context,
	username, password string,
) (*Result, error) {
	reqBody := APIAuthRequest{
		Username: username,
		Password: password,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Authentication headers are added by the underlying HTTP client
	resp, err := p.retryClient.Post(
		ctx,
		p.config.HTTPAPIURL,
		retry.WithBody("application/json", bytes.NewBuffer(jsonData)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrHTTPAPIInvalidResp)
	}

	// Check HTTP status code before attempting to parse JSON
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Try to parse as JSON to get error message
		var authResp APIAuthResponse
		if err := json.Unmarshal(body, &authResp); err == nil {
			if authResp.Message != "" {
				return nil, fmt.Errorf(
					"%w: HTTP %d - %s",
					ErrHTTPAPIAuthFailed,
					resp.StatusCode,
					authResp.Message,
				)
			}
		}
		// Non-JSON or missing message, return generic error with status code
		// Limit body preview to 200 characters to avoid overwhelming logs
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		return nil, fmt.Errorf(
			"%w: HTTP %d - %s",
			ErrHTTPAPIInvalidResp,
			resp.StatusCode,
			bodyPreview,
		)
	}

	var authResp APIAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIInvalidResp, err)
	}

	if !authResp.Success {
		return nil, ErrHTTPAPIAuthFailed
	}

	// Validate that user_id is provided when authentication succeeds
	if authResp.UserID == "" {
		return nil, fmt.Errorf(
			"%w: external API returned success=true but missing user_id",
			ErrHTTPAPIInvalidResp,
		)
	}

	inactive := authResp.IsActive != nil && !*authResp.IsActive

	return &Result{
		UserID:   authResp.UserID,
		Username: username,
		Email:    authResp.Email,
		Inactive: inactive,
		Success:  true,
	}, nil
}

// Name returns provider name for logging
func (p *HTTPAPIAuthProvider) Name() string {
	return "http_api"
}
