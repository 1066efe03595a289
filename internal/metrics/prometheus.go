package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	TokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airform_token_refreshes_total",
		Help: "Total number of Airtable token refresh attempts by outcome.",
	}, []string{"outcome"})
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airform_logins_total",
		Help: "Total number of completed Airtable authorizations by outcome.",
	}, []string{"outcome"})
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airform_submissions_total",
		Help: "Total number of form submissions by outcome.",
	}, []string{"outcome"})
	SyncRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airform_sync_auth_retries_total",
		Help: "Total number of Airtable calls retried after a forced token refresh.",
	})
	SubmissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "airform_submission_duration_seconds",
		Help:    "Time taken to sync a submission to Airtable.",
		Buckets: prometheus.DefBuckets,
	})
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
)

// InitCustomMetrics registers the service metrics with reg.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := map[string]prometheus.Collector{
		"TokenRefreshesTotal": TokenRefreshesTotal,
		"LoginsTotal":         LoginsTotal,
		"SubmissionsTotal":    SubmissionsTotal,
		"SyncRetriesTotal":    SyncRetriesTotal,
		"SubmissionDuration":  SubmissionDuration,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msgf("Failed to register %s metric", name)
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
