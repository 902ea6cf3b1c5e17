// Package metrics holds Prometheus instruments that are used across the
// front-end.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FormSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Form submissions by form id and outcome (invalid, busy, succeeded, failed).",
		}, []string{"form", "outcome"})

	UniquenessChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniqueness_checks_total",
			Help: "Remote uniqueness checks by kind and result (available, taken, error).",
		}, []string{"kind", "result"})

	AuthGate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_gate_total",
			Help: "Auth gate decisions (allow, redirect, unknown) and revoked sessions.",
		}, []string{"decision"})

	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Requests sent to the forum REST API by method and status code.",
		}, []string{"method", "code"})

	ActiveFormSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_form_sessions",
			Help: "Number of server-side form sessions currently held in memory.",
		})
)

func init() {
	prometheus.MustRegister(
		FormSubmissions,
		UniquenessChecks,
		AuthGate,
		APIRequests,
		ActiveFormSessions,
	)
}
