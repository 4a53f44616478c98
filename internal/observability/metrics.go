package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds the seeder metrics. It is separate from the default registry
// so a push only ships what this job produced.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// SeedUsersTotal counts processed users by outcome (created, failed, rolled_back).
	SeedUsersTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "matcha_seed_users_total",
		Help: "Total number of seeded users by outcome",
	}, []string{"outcome"})

	// SeedFailuresTotal counts per-user failures by reason.
	SeedFailuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "matcha_seed_failures_total",
		Help: "Total number of per-user seeding failures by reason",
	}, []string{"reason"})

	// SeedUserInsertSeconds records how long one user's inserts take.
	SeedUserInsertSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "matcha_seed_user_insert_seconds",
		Help:    "Time spent inserting one user with its location and tags",
		Buckets: prometheus.DefBuckets,
	})

	// SeedBatchCommitsTotal counts committed user batches.
	SeedBatchCommitsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "matcha_seed_batch_commits_total",
		Help: "Total number of committed user batches",
	})

	// SeedLastRunTimestamp is the unix time at which the last run finished.
	SeedLastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Name: "matcha_seed_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last completed seeding run",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "matcha_seed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})
)

// TrackInsert returns a function that records the insert latency when called (e.g. defer).
func TrackInsert() func() {
	start := time.Now()
	return func() {
		SeedUserInsertSeconds.Observe(time.Since(start).Seconds())
	}
}

// PushMetrics sends the seeder registry to a Prometheus Pushgateway under job.
// Batch jobs have no scrape endpoint, so this is how the run becomes visible.
func PushMetrics(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).Gatherer(Registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
