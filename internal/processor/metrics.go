package processor

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eigerco/accountability/internal/challenge"
	"github.com/eigerco/accountability/internal/state"
)

// Metrics counts executed instructions by kind and outcome.
type Metrics struct {
	instructions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics registers the processor's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accountability",
			Name:      "instructions_total",
			Help:      "Instructions processed, by kind and result.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "accountability",
			Name:      "instruction_duration_seconds",
			Help:      "Time to execute and commit an instruction.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"kind"}),
	}
	reg.MustRegister(m.instructions, m.duration)
	return m
}

func (m *Metrics) observe(kind Kind, err error, started time.Time) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(kind.String(), resultLabel(err)).Inc()
	m.duration.WithLabelValues(kind.String()).Observe(time.Since(started).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, challenge.ErrChallengeInactive):
		return "challenge_inactive"
	case errors.Is(err, challenge.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, state.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, state.ErrMissingSignature), errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, state.ErrAccountExists):
		return "account_exists"
	default:
		return "error"
	}
}
