package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the auth counters. A nil *Metrics records nothing.
type Metrics struct {
	Resolutions  *prometheus.CounterVec
	TokensIssued *prometheus.CounterVec
	Signups      *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when given
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_session_resolutions_total",
				Help: "Session resolutions by resulting state.",
			},
			[]string{"state"},
		),
		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_tokens_issued_total",
				Help: "Tokens minted by type.",
			},
			[]string{"type"},
		),
		Signups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_signup_total",
				Help: "Signup attempts by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Resolutions, m.TokensIssued, m.Signups)
	}
	return m
}

func (m *Metrics) resolution(state string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(state).Inc()
}

func (m *Metrics) tokenIssued(typ TokenType) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(string(typ)).Inc()
}

func (m *Metrics) signup(stage string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsCodeMismatch(err):
		outcome = "mismatch"
	case IsNotFound(err):
		outcome = "not_found"
	case hasTextCode(err, TextCodeTooManyAttempts):
		outcome = "rate_limited"
	case IsUnprocessable(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	m.Signups.WithLabelValues(stage, outcome).Inc()
}
