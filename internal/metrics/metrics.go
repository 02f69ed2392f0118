// Package metrics exposes counters for the authentication endpoints
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

type Metrics struct {
	Registrations *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Rotations     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "registrations_total",
			Help:      "Registration attempts by result.",
		}, []string{"result"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		Rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "token_rotations_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
	}
}
