package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Grant lifecycle
	RecordGrantIssued(success bool)
	RecordCodeValidation(result string)

	// Token Operations
	RecordTokenIssued(tokenType, grantType string)
	RecordTokenRevoked(tokenType, reason string)
	RecordTokenValidation(result string, duration time.Duration)
	RecordRefreshValidation(success bool)

	// Authentication
	RecordAuthAttempt(provider string, success bool, duration time.Duration)

	// Expiry sweep
	RecordPurge(grants, accessTokens, refreshTokens int64, duration time.Duration)

	// Gauge Setters (for periodic updates)
	SetActiveTokensCount(tokenType string, count int64)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by the gauge updater.
type MetricsStore interface {
	CountAccessTokens() (int64, error)
	CountRefreshTokens() (int64, error)
	CountGrants() (int64, error)
}
