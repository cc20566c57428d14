package metrics

import (
	"sync"
	"time"

	"github.com/go-partnergate/partnergate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is re-exported so callers outside main can depend on the
// metrics package alone.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the token lifecycle
type Metrics struct {
	// Grant lifecycle
	GrantsIssuedTotal   *prometheus.CounterVec
	CodeValidationTotal *prometheus.CounterVec

	// Token Metrics
	TokensIssuedTotal       *prometheus.CounterVec
	TokensRevokedTotal      *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec
	RefreshValidationTotal  *prometheus.CounterVec
	TokensActive            *prometheus.GaugeVec
	TokenValidationDuration prometheus.Histogram

	// Authentication Metrics
	AuthAttemptsTotal *prometheus.CounterVec
	AuthDuration      *prometheus.HistogramVec

	// Expiry sweep
	PurgedRowsTotal *prometheus.CounterVec
	PurgeDuration   prometheus.Histogram

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		GrantsIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_grants_issued_total",
				Help: "Total number of authorization codes issued",
			},
			[]string{"result"}, // success, error
		),
		CodeValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_code_validation_total",
				Help: "Total number of authorization code validations",
			},
			[]string{"result"}, // success, expired, not_found
		),
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"token_type", "grant_type"},
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_revoked_total",
				Help: "Total number of tokens revoked",
			},
			[]string{"token_type", "reason"}, // reason: request, refresh_rotation, sweep
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_validation_total",
				Help: "Total number of bearer token validations",
			},
			[]string{"result"}, // success, expired, not_found, scope_denied, empty
		),
		RefreshValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_refresh_validation_total",
				Help: "Total number of refresh token validations",
			},
			[]string{"result"}, // success, failure
		),
		TokensActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oauth_tokens_active",
				Help: "Current number of stored tokens by type",
			},
			[]string{"token_type"}, // access, refresh, grant
		),
		TokenValidationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_token_validation_duration_seconds",
				Help:    "Time taken to validate a bearer token",
				Buckets: prometheus.DefBuckets,
			},
		),
		AuthAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_auth_attempts_total",
				Help: "Total number of resource owner authentication attempts",
			},
			[]string{"provider", "result"},
		),
		AuthDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_auth_duration_seconds",
				Help:    "Time taken to authenticate a resource owner",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		PurgedRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_purged_rows_total",
				Help: "Total number of rows removed by the expiry sweep",
			},
			[]string{"table"}, // grants, access_tokens, refresh_tokens
		),
		PurgeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_purge_duration_seconds",
				Help:    "Time taken by a single expiry sweep",
				Buckets: prometheus.DefBuckets,
			},
		),
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_database_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func (m *Metrics) RecordGrantIssued(success bool) {
	m.GrantsIssuedTotal.WithLabelValues(resultLabel(success)).Inc()
}

func (m *Metrics) RecordCodeValidation(result string) {
	m.CodeValidationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTokenIssued(tokenType, grantType string) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
}

func (m *Metrics) RecordTokenRevoked(tokenType, reason string) {
	m.TokensRevokedTotal.WithLabelValues(tokenType, reason).Inc()
}

func (m *Metrics) RecordTokenValidation(result string, duration time.Duration) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
	m.TokenValidationDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordRefreshValidation(success bool) {
	if success {
		m.RefreshValidationTotal.WithLabelValues("success").Inc()
		return
	}
	m.RefreshValidationTotal.WithLabelValues("failure").Inc()
}

func (m *Metrics) RecordAuthAttempt(provider string, success bool, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(provider, resultLabel(success)).Inc()
	m.AuthDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordPurge(grants, accessTokens, refreshTokens int64, duration time.Duration) {
	m.PurgedRowsTotal.WithLabelValues("grants").Add(float64(grants))
	m.PurgedRowsTotal.WithLabelValues("access_tokens").Add(float64(accessTokens))
	m.PurgedRowsTotal.WithLabelValues("refresh_tokens").Add(float64(refreshTokens))
	m.PurgeDuration.Observe(duration.Seconds())
}

func (m *Metrics) SetActiveTokensCount(tokenType string, count int64) {
	m.TokensActive.WithLabelValues(tokenType).Set(float64(count))
}

func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
