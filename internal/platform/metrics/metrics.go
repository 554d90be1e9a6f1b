package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation counters, partitioned by outcome where a call can fail.
// Registered on the default registry and served by the RPC mux.
var (
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signdesk_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signdesk_registrations_total",
		Help: "Account registrations by outcome.",
	}, []string{"outcome"})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signdesk_uploads_total",
		Help: "Document uploads by outcome.",
	}, []string{"outcome"})

	ListRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signdesk_list_refreshes_total",
		Help: "Document list refreshes by outcome.",
	}, []string{"outcome"})

	StaleRefreshesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signdesk_stale_refreshes_discarded_total",
		Help: "List refreshes discarded because a newer refresh superseded them.",
	})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signdesk_downloads_total",
		Help: "Document downloads by outcome.",
	}, []string{"outcome"})

	SigningLinks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signdesk_signing_links_total",
		Help: "Signing link creations by outcome.",
	}, []string{"outcome"})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Observe increments a vec with the outcome derived from err.
func Observe(vec *prometheus.CounterVec, err error) {
	if err != nil {
		vec.WithLabelValues(OutcomeError).Inc()
		return
	}
	vec.WithLabelValues(OutcomeOK).Inc()
}
