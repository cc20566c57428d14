package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledReturnsNoop(t *testing.T) {
	rec := Init(false)
	_, ok := rec.(*NoopMetrics)
	assert.True(t, ok)

	// Safe to call every method on the noop recorder
	rec.RecordGrantIssued(true)
	rec.RecordCodeValidation("success")
	rec.RecordTokenIssued("access", "password")
	rec.RecordTokenRevoked("refresh", "request")
	rec.RecordTokenValidation("expired", time.Millisecond)
	rec.RecordRefreshValidation(false)
	rec.RecordAuthAttempt("local", true, time.Millisecond)
	rec.RecordPurge(1, 2, 3, time.Millisecond)
	rec.SetActiveTokensCount("access", 10)
	rec.RecordDatabaseQueryError("get_access_token")
}

func TestInitEnabledIsSingleton(t *testing.T) {
	first := Init(true)
	second := Init(true)
	assert.Same(t, first, second)
}

func TestMetricsRecording(t *testing.T) {
	rec := Init(true)
	m, ok := rec.(*Metrics)
	require.True(t, ok)

	m.RecordTokenValidation("success", 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.TokenValidationTotal.WithLabelValues("success")))

	m.RecordTokenRevoked("access", "cascade")
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.TokensRevokedTotal.WithLabelValues("access", "cascade")))

	m.RecordPurge(2, 3, 1, time.Millisecond)
	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.PurgedRowsTotal.WithLabelValues("grants")))
	assert.Equal(t, float64(3), testutil.ToFloat64(
		m.PurgedRowsTotal.WithLabelValues("access_tokens")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.PurgedRowsTotal.WithLabelValues("refresh_tokens")))

	m.SetActiveTokensCount("grant", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(
		m.TokensActive.WithLabelValues("grant")))
}
