// Package observability provides logging, metrics, and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CascadeSteps counts executed delete-cascade steps by step name.
	CascadeSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_delete_cascade_steps_total",
		Help: "Total delete-cascade steps executed, by step",
	}, []string{"step"})

	// MediaPurgeFailures counts blob deletions that failed and were swallowed.
	// A cascade never aborts on purge failure; this is the only signal.
	MediaPurgeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_media_purge_failures_total",
		Help: "Total media blob purge failures (logged and swallowed)",
	})

	// SessionsRotated counts refresh-token rotations.
	SessionsRotated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_sessions_rotated_total",
		Help: "Total refresh token rotations",
	})

	// SessionsPurged counts expired session records removed by lazy purge.
	SessionsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_sessions_purged_total",
		Help: "Total expired session records purged on login/refresh",
	})
)
