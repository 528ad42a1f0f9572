package campaign

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmax-ai/causalmr/pkg/score"
	"github.com/rmax-ai/causalmr/pkg/store"
)

var (
	// JobsTotal counts finished jobs by kind and outcome.
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causalmr_jobs_total",
			Help: "Total number of campaign jobs run",
		},
		[]string{"kind", "outcome"},
	)

	// RelationOutcomesTotal counts judged relations by job kind.
	RelationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causalmr_relation_outcomes_total",
			Help: "Total number of relations judged",
		},
		[]string{"kind", "result"},
	)

	// JobDuration tracks wall time per job.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "causalmr_job_duration_seconds",
			Help:    "Duration of a single campaign job",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"kind"},
	)

	// MutationScore is the last mutation score of a campaign.
	MutationScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "causalmr_mutation_score",
			Help: "Killed mutants over total mutants",
		},
		[]string{"campaign"},
	)

	// Classifications holds the relation classification totals of a campaign.
	Classifications = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "causalmr_classifications",
			Help: "Relation classification counts across all mutants",
		},
		[]string{"campaign", "class"},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(RelationOutcomesTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(MutationScore)
	prometheus.MustRegister(Classifications)
}

func observeJob(job *store.JobResult, killed *bool) {
	kind := string(job.Kind)
	outcome := "baseline"
	if killed != nil {
		outcome = "survived"
		if *killed {
			outcome = "killed"
		}
	}
	JobsTotal.WithLabelValues(kind, outcome).Inc()
	JobDuration.WithLabelValues(kind).Observe(job.FinishedAt.Sub(job.StartedAt).Seconds())

	failed := job.FailedCount()
	RelationOutcomesTotal.WithLabelValues(kind, "failed").Add(float64(failed))
	RelationOutcomesTotal.WithLabelValues(kind, "passed").Add(float64(len(job.Relations) - failed))
}

func observeSummary(campaign string, s score.Summary) {
	if v, ok := s.Score.Value(); ok {
		MutationScore.WithLabelValues(campaign).Set(v)
	}
	Classifications.WithLabelValues(campaign, "true_positive").Set(float64(s.TruePositives))
	Classifications.WithLabelValues(campaign, "false_positive").Set(float64(s.FalsePositives))
	Classifications.WithLabelValues(campaign, "true_negative").Set(float64(s.TrueNegatives))
	Classifications.WithLabelValues(campaign, "false_negative").Set(float64(s.FalseNegatives))
}

// WriteMetrics writes the default registry to path in the Prometheus text
// format, for the node exporter textfile collector.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
