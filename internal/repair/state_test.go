package repair

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/storage/models"
)

var (
	schemaFailure = executor.Failed(executor.SchemaError, "no such column: happiness")
	success       = executor.Success(executor.ResultSet{Columns: []string{"n"}, Rows: [][]any{{int64(3)}}})
)

func TestTransitionSuccess(t *testing.T) {
	s := Start(Candidate{Statement: "SELECT 1;", Source: models.SourceGenerated}, MaxAttempts)
	assert.Equal(t, 1, s.Candidate.Attempt)

	s = Transition(s, success)
	assert.Equal(t, Done, s.Phase)
	assert.Equal(t, success.Result, s.Result)
	assert.Empty(t, s.Attempts)
}

func TestTransitionFailureThenRepair(t *testing.T) {
	s := Start(Candidate{Statement: "SELECT happiness FROM reviews;", Source: models.SourceGenerated}, MaxAttempts)

	s = Transition(s, schemaFailure)
	require.Equal(t, Repairing, s.Phase)
	require.Len(t, s.Attempts, 1)
	assert.Equal(t, models.Attempt{Statement: "SELECT happiness FROM reviews;", Error: "no such column: happiness"}, s.Attempts[0])
	assert.Equal(t, executor.SchemaError, s.LastFailure.Kind)

	s = Next(s, "SELECT sentiment FROM reviews;")
	assert.Equal(t, Executing, s.Phase)
	assert.Equal(t, Candidate{Statement: "SELECT sentiment FROM reviews;", Source: models.SourceRepaired, Attempt: 2}, s.Candidate)

	s = Transition(s, success)
	assert.Equal(t, Done, s.Phase)
	assert.Nil(t, s.LastFailure)
	assert.Len(t, s.Attempts, 1)
}

func TestTransitionExhaustsAtCeiling(t *testing.T) {
	s := Start(Candidate{Statement: "SELECT x;"}, MaxAttempts)
	for i := 1; i < MaxAttempts; i++ {
		s = Transition(s, schemaFailure)
		require.Equal(t, Repairing, s.Phase, "attempt %d", i)
		s = Next(s, "SELECT x;")
	}
	s = Transition(s, schemaFailure)

	assert.Equal(t, Exhausted, s.Phase)
	assert.Len(t, s.Attempts, MaxAttempts)
	assert.Equal(t, MaxAttempts, s.Candidate.Attempt)
}

func TestCeilingOfOneNeverRepairs(t *testing.T) {
	s := Start(Candidate{Statement: "SELECT x;", Source: models.SourceFallback}, 1)
	s = Transition(s, schemaFailure)
	assert.Equal(t, Exhausted, s.Phase)
	assert.Len(t, s.Attempts, 1)
}

func TestStartClampsCeiling(t *testing.T) {
	assert.Equal(t, MaxAttempts, Start(Candidate{}, 0).Ceiling)
	assert.Equal(t, MaxAttempts, Start(Candidate{}, 99).Ceiling)
	assert.Equal(t, 2, Start(Candidate{}, 2).Ceiling)
}

func TestTransitionsIgnoreWrongPhase(t *testing.T) {
	done := Transition(Start(Candidate{Statement: "SELECT 1;"}, MaxAttempts), success)
	assert.Equal(t, done, Transition(done, schemaFailure))
	assert.Equal(t, done, Next(done, "SELECT 2;"))
	assert.Equal(t, done, Abort(done, errors.New("late")))

	executing := Start(Candidate{Statement: "SELECT 1;"}, MaxAttempts)
	assert.Equal(t, executing, Next(executing, "SELECT 2;"))
}

func TestTransitionDoesNotAliasHistory(t *testing.T) {
	s := Start(Candidate{Statement: "a;"}, MaxAttempts)
	s = Transition(s, schemaFailure)
	branch := Transition(Next(s, "b;"), schemaFailure)
	other := Transition(Next(s, "c;"), schemaFailure)

	assert.Equal(t, "b;", branch.Attempts[1].Statement)
	assert.Equal(t, "c;", other.Attempts[1].Statement)
	assert.Len(t, s.Attempts, 1)
}

func TestAbort(t *testing.T) {
	err := errors.New("upstream gone")
	s := Transition(Start(Candidate{Statement: "a;"}, MaxAttempts), schemaFailure)
	s = Abort(s, err)
	assert.Equal(t, Aborted, s.Phase)
	assert.ErrorIs(t, s.Err, err)
	assert.True(t, s.Phase.Terminal())
}
