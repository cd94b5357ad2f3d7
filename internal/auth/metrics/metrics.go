// Package metrics provides Prometheus metrics for the token subsystem.
//
// All methods are safe on a nil *Metrics so services can run without a
// registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authcore"

// Result labels.
const (
	ResultActive   = "active"
	ResultInactive = "inactive"
)

type Metrics struct {
	TokensIssued         *prometheus.CounterVec
	Rotations            prometheus.Counter
	Replays              *prometheus.CounterVec
	Revocations          *prometheus.CounterVec
	ChainRecordsRevoked  prometheus.Counter
	Introspections       *prometheus.CounterVec
	Extensions           prometheus.Counter
	HousekeepingDeleted  *prometheus.CounterVec
	HousekeepingFailures prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tokens",
				Name:      "issued_total",
				Help:      "Tokens issued, by token type and grant type",
			},
			[]string{"token_type", "grant_type"},
		),
		Rotations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refresh",
				Name:      "rotations_total",
				Help:      "Refresh tokens consumed and replaced",
			},
		),
		Replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tokens",
				Name:      "replays_total",
				Help:      "Reuse of a consumed refresh token or authorization code",
			},
			[]string{"token_type"},
		),
		Revocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tokens",
				Name:      "revocations_total",
				Help:      "Revocation requests that removed a token, by token type",
			},
			[]string{"token_type"},
		),
		ChainRecordsRevoked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tokens",
				Name:      "chain_records_revoked_total",
				Help:      "Records removed by cascading chain revocation",
			},
		),
		Introspections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tokens",
				Name:      "introspections_total",
				Help:      "Introspection requests, by result",
			},
			[]string{"result"},
		),
		Extensions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tokens",
				Name:      "expiry_extensions_total",
				Help:      "Access token expiry extensions on use",
			},
		),
		HousekeepingDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "housekeeping",
				Name:      "deleted_total",
				Help:      "Records removed by housekeeping, by view",
			},
			[]string{"view"},
		),
		HousekeepingFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "housekeeping",
				Name:      "failures_total",
				Help:      "Housekeeping passes that hit an error",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.TokensIssued,
			m.Rotations,
			m.Replays,
			m.Revocations,
			m.ChainRecordsRevoked,
			m.Introspections,
			m.Extensions,
			m.HousekeepingDeleted,
			m.HousekeepingFailures,
		)
	}
	return m
}

func (m *Metrics) TokenIssued(tokenType, grantType string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(tokenType, grantType).Inc()
}

func (m *Metrics) Rotated() {
	if m == nil {
		return
	}
	m.Rotations.Inc()
}

func (m *Metrics) Replayed(tokenType string) {
	if m == nil {
		return
	}
	m.Replays.WithLabelValues(tokenType).Inc()
}

func (m *Metrics) Revoked(tokenType string, chainRecords int64) {
	if m == nil {
		return
	}
	m.Revocations.WithLabelValues(tokenType).Inc()
	if chainRecords > 0 {
		m.ChainRecordsRevoked.Add(float64(chainRecords))
	}
}

// ChainRevoked counts records removed by a replay cascade.
func (m *Metrics) ChainRevoked(records int64) {
	if m == nil || records <= 0 {
		return
	}
	m.ChainRecordsRevoked.Add(float64(records))
}

func (m *Metrics) Introspected(active bool) {
	if m == nil {
		return
	}
	result := ResultInactive
	if active {
		result = ResultActive
	}
	m.Introspections.WithLabelValues(result).Inc()
}

func (m *Metrics) Extended() {
	if m == nil {
		return
	}
	m.Extensions.Inc()
}

func (m *Metrics) HousekeepingRemoved(view string, n int64) {
	if m == nil {
		return
	}
	m.HousekeepingDeleted.WithLabelValues(view).Add(float64(n))
}

func (m *Metrics) HousekeepingFailed() {
	if m == nil {
		return
	}
	m.HousekeepingFailures.Inc()
}
