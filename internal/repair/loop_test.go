package repair

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/review-agent/backend/internal/catalog"
	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/llm"
	"github.com/review-agent/backend/internal/prompt"
	"github.com/review-agent/backend/internal/storage/models"
)

type scriptedCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, profile llm.Profile, p string) (string, error) {
	if profile != llm.ProfileRepair {
		return "", fmt.Errorf("unexpected profile %s", profile)
	}
	c.prompts = append(c.prompts, p)
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "SELECT still_wrong FROM reviews;", nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

type scriptedRunner struct {
	outcomes   map[string]executor.Outcome
	statements []string
}

func (r *scriptedRunner) Execute(_ context.Context, stmt string) executor.Outcome {
	r.statements = append(r.statements, stmt)
	if out, ok := r.outcomes[stmt]; ok {
		return out
	}
	return executor.Failed(executor.SchemaError, "no such column in "+stmt)
}

func newLoop(c Completer, r Runner) *Loop {
	return NewLoop(c, prompt.NewBuilder(catalog.Reviews()), r, nil)
}

func TestRunRepairsSchemaError(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"```sql\nSELECT COUNT(*) FROM reviews WHERE sentiment = 'Positive';\n```"}}
	runner := &scriptedRunner{outcomes: map[string]executor.Outcome{
		"SELECT COUNT(*) FROM reviews WHERE happy = 1;":              executor.Failed(executor.SchemaError, "no such column: happy"),
		"SELECT COUNT(*) FROM reviews WHERE sentiment = 'Positive';": success,
	}}

	var observed []int
	loop := newLoop(completer, runner)
	loop.OnAttempt(func(attempt int, _ executor.Outcome) { observed = append(observed, attempt) })

	s := loop.Run(context.Background(), "how many happy customers",
		Candidate{Statement: "SELECT COUNT(*) FROM reviews WHERE happy = 1;", Source: models.SourceGenerated}, MaxAttempts)

	require.Equal(t, Done, s.Phase)
	assert.Equal(t, 2, s.Candidate.Attempt)
	assert.Equal(t, models.SourceRepaired, s.Candidate.Source)
	assert.Equal(t, []int{1, 2}, observed)
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "no such column: happy")
	assert.Contains(t, completer.prompts[0], "SELECT COUNT(*) FROM reviews WHERE happy = 1;")
}

func TestRunStopsAtCeiling(t *testing.T) {
	completer := &scriptedCompleter{}
	runner := &scriptedRunner{}

	s := newLoop(completer, runner).Run(context.Background(), "q",
		Candidate{Statement: "SELECT nope FROM reviews;", Source: models.SourceGenerated}, MaxAttempts)

	assert.Equal(t, Exhausted, s.Phase)
	assert.Len(t, runner.statements, MaxAttempts)
	assert.Len(t, s.Attempts, MaxAttempts)
	assert.Len(t, completer.prompts, MaxAttempts-1)
	assert.Equal(t, "SELECT nope FROM reviews;", s.Attempts[0].Statement)
}

func TestRunExecutesRepeatedStatementAgain(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"SELECT nope FROM reviews;", "SELECT nope FROM reviews;"}}
	runner := &scriptedRunner{}

	s := newLoop(completer, runner).Run(context.Background(), "q",
		Candidate{Statement: "SELECT nope FROM reviews;"}, 3)

	assert.Equal(t, Exhausted, s.Phase)
	assert.Equal(t, []string{"SELECT nope FROM reviews;", "SELECT nope FROM reviews;", "SELECT nope FROM reviews;"}, runner.statements)
	assert.Len(t, s.Attempts, 3)
}

func TestRunRepairPromptShowsLatestErrorOnly(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"SELECT second FROM reviews;", "SELECT third FROM reviews;"}}
	runner := &scriptedRunner{}

	newLoop(completer, runner).Run(context.Background(), "q", Candidate{Statement: "SELECT first FROM reviews;"}, 3)

	require.Len(t, completer.prompts, 2)
	assert.Contains(t, completer.prompts[1], "no such column in SELECT second FROM reviews")
	assert.NotContains(t, completer.prompts[1], "SELECT first FROM reviews")
}

func TestRunAbortsOnUpstreamError(t *testing.T) {
	completer := &scriptedCompleter{err: fmt.Errorf("%w: connection refused", llm.ErrUpstreamUnavailable)}
	runner := &scriptedRunner{}

	s := newLoop(completer, runner).Run(context.Background(), "q", Candidate{Statement: "SELECT nope FROM reviews;"}, MaxAttempts)

	assert.Equal(t, Aborted, s.Phase)
	assert.ErrorIs(t, s.Err, llm.ErrUpstreamUnavailable)
	assert.Len(t, s.Attempts, 1)
	assert.Len(t, runner.statements, 1)
}

func TestRunAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &scriptedRunner{}

	s := newLoop(&scriptedCompleter{}, runner).Run(ctx, "q", Candidate{Statement: "SELECT 1;"}, MaxAttempts)

	assert.Equal(t, Aborted, s.Phase)
	assert.ErrorIs(t, s.Err, context.Canceled)
	assert.Empty(t, runner.statements)
}
