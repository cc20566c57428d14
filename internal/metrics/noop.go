package metrics

import "time"

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NoopMetrics is a no-op implementation used when metrics are disabled.
type NoopMetrics struct{}

// NewNoopMetrics creates a new no-op metrics recorder.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordGrantIssued(success bool)                              {}
func (n *NoopMetrics) RecordCodeValidation(result string)                          {}
func (n *NoopMetrics) RecordTokenIssued(tokenType, grantType string)               {}
func (n *NoopMetrics) RecordTokenRevoked(tokenType, reason string)                 {}
func (n *NoopMetrics) RecordTokenValidation(result string, duration time.Duration) {}
func (n *NoopMetrics) RecordRefreshValidation(success bool)                        {}
func (n *NoopMetrics) RecordAuthAttempt(provider string, success bool, duration time.Duration) {}
func (n *NoopMetrics) RecordPurge(grants, accessTokens, refreshTokens int64, duration time.Duration) {
}
func (n *NoopMetrics) SetActiveTokensCount(tokenType string, count int64) {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)          {}
