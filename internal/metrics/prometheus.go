package metrics

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/llm"
	"github.com/review-agent/backend/pkg/circuitbreaker"
)

var (
	QuestionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewq_question_duration_seconds",
			Help:    "Time to answer one question, by terminal status",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	QuestionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewq_question_total",
			Help: "Total number of questions answered, by terminal status",
		},
		[]string{"status"},
	)

	AttemptsPerQuestion = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviewq_attempts_per_question",
			Help:    "Statements executed per question",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	CompletionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewq_completion_total",
			Help: "Completion calls by profile and result",
		},
		[]string{"profile", "result"},
	)

	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewq_completion_duration_seconds",
			Help:    "Completion call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"profile"},
	)

	ExecutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewq_execution_total",
			Help: "Statement executions by outcome",
		},
		[]string{"outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewq_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewq_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewq_audit_writes_total",
			Help: "Audit record writes by sink, kind and result",
		},
		[]string{"sink", "kind", "result"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reviewq_llm_breaker_state",
			Help: "Circuit breaker state per completion profile (0 closed, 1 half-open, 2 open)",
		},
		[]string{"profile"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			QuestionDuration,
			QuestionTotal,
			AttemptsPerQuestion,
			CompletionTotal,
			CompletionDuration,
			ExecutionTotal,
			CacheHits,
			CacheMisses,
			AuditWrites,
			BreakerState,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

func ObserveQuestion(status string, attempts int, elapsed time.Duration) {
	QuestionTotal.WithLabelValues(status).Inc()
	QuestionDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	if attempts > 0 {
		AttemptsPerQuestion.Observe(float64(attempts))
	}
}

func ObserveCompletion(profile llm.Profile, result string, elapsed time.Duration) {
	CompletionTotal.WithLabelValues(string(profile), result).Inc()
	CompletionDuration.WithLabelValues(string(profile)).Observe(elapsed.Seconds())
}

func ObserveExecution(_ int, out executor.Outcome) {
	switch {
	case out.Cached:
		ExecutionTotal.WithLabelValues("cached").Inc()
	case out.OK():
		ExecutionTotal.WithLabelValues("ok").Inc()
	default:
		ExecutionTotal.WithLabelValues(string(out.Failure.Kind)).Inc()
	}
}

func ObserveCacheLookup(hit bool) {
	if hit {
		CacheHits.WithLabelValues("result_set").Inc()
	} else {
		CacheMisses.WithLabelValues("result_set").Inc()
	}
}

func ObserveAuditWrite(sink, kind, result string) {
	AuditWrites.WithLabelValues(sink, kind, result).Inc()
}

func ObserveBreakerStates(states map[llm.Profile]circuitbreaker.State) {
	for profile, state := range states {
		BreakerState.WithLabelValues(string(profile)).Set(float64(state))
	}
}
