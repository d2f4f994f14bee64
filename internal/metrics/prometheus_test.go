package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/llm"
	"github.com/review-agent/backend/pkg/circuitbreaker"
)

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestObservers(t *testing.T) {
	before := testutil.ToFloat64(ExecutionTotal.WithLabelValues("SchemaError"))
	ObserveExecution(1, executor.Failed(executor.SchemaError, "no such column: x"))
	assert.Equal(t, before+1, testutil.ToFloat64(ExecutionTotal.WithLabelValues("SchemaError")))

	cached := testutil.ToFloat64(ExecutionTotal.WithLabelValues("cached"))
	ObserveExecution(1, executor.Outcome{Cached: true})
	assert.Equal(t, cached+1, testutil.ToFloat64(ExecutionTotal.WithLabelValues("cached")))

	hits := testutil.ToFloat64(CacheHits.WithLabelValues("result_set"))
	ObserveCacheLookup(true)
	assert.Equal(t, hits+1, testutil.ToFloat64(CacheHits.WithLabelValues("result_set")))

	calls := testutil.ToFloat64(CompletionTotal.WithLabelValues("repair", "timeout"))
	ObserveCompletion(llm.ProfileRepair, "timeout", time.Second)
	assert.Equal(t, calls+1, testutil.ToFloat64(CompletionTotal.WithLabelValues("repair", "timeout")))

	ObserveBreakerStates(map[llm.Profile]circuitbreaker.State{llm.ProfileGeneration: circuitbreaker.StateOpen})
	assert.Equal(t, 2.0, testutil.ToFloat64(BreakerState.WithLabelValues("generation")))

	questions := testutil.ToFloat64(QuestionTotal.WithLabelValues("EXHAUSTED"))
	ObserveQuestion("EXHAUSTED", 5, time.Second)
	assert.Equal(t, questions+1, testutil.ToFloat64(QuestionTotal.WithLabelValues("EXHAUSTED")))
}
