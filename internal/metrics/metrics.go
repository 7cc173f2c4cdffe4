package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/segyhp/loan-importer/internal/domain"
)

var (
	ImportOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_import_outcomes_total",
			Help: "Loan rows processed by outcome",
		},
		[]string{"route", "outcome"},
	)

	ImportRenewals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_import_renewals_total",
			Help: "Renewals linked to their predecessor",
		},
		[]string{"route"},
	)

	ImportPayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_import_payments_total",
			Help: "Payments and write-off recoveries persisted",
		},
		[]string{"route", "kind"},
	)

	ImportFailedBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_import_failed_batches_total",
			Help: "Batches whose transaction did not commit",
		},
		[]string{"route"},
	)

	ImportUnreconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_import_unreconciled_runs_total",
			Help: "Runs where outcomes did not add up to the source rows",
		},
		[]string{"route"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_import_duration_seconds",
			Help:    "Duration of a route import in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"route"},
	)
)

// Recorder publishes run summaries as Prometheus metrics.
type Recorder struct{}

func (Recorder) Record(ctx context.Context, s *domain.RunSummary) error {
	for tag, n := range s.Counts {
		ImportOutcomes.WithLabelValues(s.Route, string(tag)).Add(float64(n))
	}
	ImportRenewals.WithLabelValues(s.Route).Add(float64(s.RenewalsProcessed))
	ImportPayments.WithLabelValues(s.Route, "payment").Add(float64(s.PaymentsPersisted))
	ImportPayments.WithLabelValues(s.Route, "recovery").Add(float64(s.RecoveriesRecorded))
	ImportFailedBatches.WithLabelValues(s.Route).Add(float64(s.FailedBatches))
	if !s.Reconciled() {
		ImportUnreconciled.WithLabelValues(s.Route).Inc()
	}
	if !s.FinishedAt.IsZero() {
		ImportDuration.WithLabelValues(s.Route).Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	}
	return nil
}
