// Package query answers natural-language questions about the reviews table.
// Engine is the explicitly constructed context object that owns the cache
// and the audit log for every question it answers.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/audit"
	"github.com/review-agent/backend/internal/cache"
	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/fallback"
	"github.com/review-agent/backend/internal/format"
	"github.com/review-agent/backend/internal/llm"
	"github.com/review-agent/backend/internal/prompt"
	"github.com/review-agent/backend/internal/repair"
	"github.com/review-agent/backend/internal/sanitize"
	"github.com/review-agent/backend/internal/storage/models"
	"github.com/review-agent/backend/pkg/logger"
)

// Answer statuses beyond the failure statuses in models.
const (
	StatusAnswered  = "ANSWERED"
	StatusCancelled = "CANCELLED"
)

const (
	exhaustedMessage = "I could not fix the query after %d attempts. Please try rephrasing your question, for example by naming the column or value you are interested in."
	fallbackMessage  = "The query service is unavailable and the built-in query for your question failed. Please try again later or rephrase your question."
	upstreamMessage  = "The query service stopped responding while I was fixing your query. Please try again shortly or rephrase your question."
	internalMessage  = "Something went wrong while answering your question. Please try rephrasing it."
	cancelledMessage = "The request was cancelled before an answer was ready. Please try again or rephrase your question."
)

type Answer struct {
	ID        string             `json:"id"`
	Question  string             `json:"question"`
	Text      string             `json:"answer"`
	Statement string             `json:"statement,omitempty"`
	Status    string             `json:"status"`
	Attempts  int                `json:"attempts"`
	Source    string             `json:"source,omitempty"`
	Cached    bool               `json:"cached"`
	LatencyMS int64              `json:"latency_ms"`
	Result    executor.ResultSet `json:"-"`
}

// Answered reports whether the question produced a result.
func (a Answer) Answered() bool {
	return a.Status == StatusAnswered
}

// Deps are the collaborators an Engine needs. Runner should already be
// wrapped by a cache.Reader over Cache.
type Deps struct {
	Completer repair.Completer
	Builder   *prompt.Builder
	Runner    repair.Runner
	Cache     *cache.Cache
	Rules     *fallback.Rules
	Audit     audit.Log
	Logger    *zap.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithObserver installs a callback that sees every finished answer.
func WithObserver(o func(Answer)) Option {
	return func(e *Engine) { e.observer = o }
}

// WithAttemptObserver installs a callback that sees every execution.
func WithAttemptObserver(o repair.AttemptObserver) Option {
	return func(e *Engine) { e.loop.OnAttempt(o) }
}

type Engine struct {
	completer repair.Completer
	builder   *prompt.Builder
	loop      *repair.Loop
	cache     *cache.Cache
	rules     *fallback.Rules
	audit     audit.Log
	logger    *zap.Logger

	now      func() time.Time
	newID    func() string
	observer func(Answer)
}

func NewEngine(d Deps, opts ...Option) *Engine {
	log := d.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	e := &Engine{
		completer: d.Completer,
		builder:   d.Builder,
		loop:      repair.NewLoop(d.Completer, d.Builder, d.Runner, log),
		cache:     d.Cache,
		rules:     d.Rules,
		audit:     d.Audit,
		logger:    log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// trace is what the pipeline knows about a question if it has to give up
// unexpectedly.
type trace struct {
	original string
	state    *repair.State
}

// AnswerQuestion runs a question through generation, execution and repair.
// It never fails: every outcome is an Answer whose Text can be shown to the
// user. Each terminal outcome writes exactly one audit record, except when
// ctx is cancelled, in which case nothing is written.
func (e *Engine) AnswerQuestion(ctx context.Context, question string) (ans Answer) {
	start := e.now()
	ans = Answer{ID: e.newID(), Question: question}
	log := e.logger.With(zap.String("question_id", ans.ID))
	var tr trace

	defer func() {
		if r := recover(); r != nil {
			log.Error("Question pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			ans = e.internalFailure(ctx, ans, tr, fmt.Sprintf("internal error: %v", r))
		}
		if ans.Text == "" {
			ans.Status, ans.Text = models.StatusInternalError, internalMessage
		}
		ans.LatencyMS = e.now().Sub(start).Milliseconds()
		log.Info("Question finished",
			zap.String("status", ans.Status),
			zap.Int("attempts", ans.Attempts),
			zap.String("source", ans.Source),
			zap.Bool("cached", ans.Cached),
			zap.Int64("latency_ms", ans.LatencyMS),
		)
		if e.observer != nil {
			e.observer(ans)
		}
	}()

	log.Info("Answering question", zap.String("question", question))

	initial, ceiling, err := e.initialCandidate(ctx, question, log)
	if err != nil {
		return cancelled(ans)
	}
	tr.original = initial.Statement

	s := e.loop.Run(ctx, question, initial, ceiling)
	tr.state = &s
	return e.finish(ctx, ans, initial, s, start)
}

// initialCandidate asks the generation profile for a statement and falls
// back to the rule table when the service cannot answer. The error is
// non-nil only when ctx ended.
func (e *Engine) initialCandidate(ctx context.Context, question string, log *zap.Logger) (repair.Candidate, int, error) {
	raw, err := e.completer.Complete(ctx, llm.ProfileGeneration, e.builder.BuildInitial(question))
	if err == nil {
		stmt := sanitize.Statement(raw)
		log.Debug("Statement generated", zap.String("statement", stmt))
		return repair.Candidate{Statement: stmt, Source: models.SourceGenerated, Attempt: 1}, repair.MaxAttempts, nil
	}
	if ctx.Err() != nil {
		return repair.Candidate{}, 0, ctx.Err()
	}

	stmt, rule := e.rules.Statement(question)
	log.Warn("Generation unavailable, using fallback rule",
		zap.String("rule", rule),
		zap.String("statement", stmt),
		zap.Error(err),
	)
	return repair.Candidate{Statement: stmt, Source: models.SourceFallback, Attempt: 1}, 1, nil
}

func (e *Engine) finish(ctx context.Context, ans Answer, initial repair.Candidate, s repair.State, start time.Time) Answer {
	ans.Statement = s.Candidate.Statement
	ans.Source = s.Candidate.Source
	ans.Attempts = s.Candidate.Attempt

	switch s.Phase {
	case repair.Done:
		return e.succeed(ctx, ans, s, start)

	case repair.Exhausted:
		// The last execution may have failed only because the caller left.
		if ctx.Err() != nil {
			return cancelled(ans)
		}
		status, text := models.StatusExhausted, fmt.Sprintf(exhaustedMessage, len(s.Attempts))
		if initial.Source == models.SourceFallback {
			status, text = models.StatusFallbackFailed, fallbackMessage
		}
		return e.fail(ctx, ans, status, text, initial.Statement, s.Attempts)

	case repair.Aborted:
		// The executor already ran, so an abort means the repair call failed
		// or the caller went away.
		ans.Attempts = len(s.Attempts)
		if ctx.Err() != nil || errors.Is(s.Err, context.Canceled) {
			return cancelled(ans)
		}
		status := models.StatusUpstreamUnavailable
		if errors.Is(s.Err, llm.ErrUpstreamTimeout) {
			status = models.StatusUpstreamTimeout
		}
		return e.fail(ctx, ans, status, upstreamMessage, initial.Statement, s.Attempts)

	default:
		panic(fmt.Sprintf("repair loop returned non-terminal phase %s", s.Phase))
	}
}

func (e *Engine) succeed(ctx context.Context, ans Answer, s repair.State, start time.Time) Answer {
	ans.Status = StatusAnswered
	ans.Cached = s.Cached
	ans.Result = s.Result
	ans.Text = format.Format(ans.Question, s.Result)

	record := &models.SuccessRecord{
		ID:        ans.ID,
		Question:  ans.Question,
		Statement: ans.Statement,
		Answer:    ans.Text,
		LatencyMS: e.now().Sub(start).Milliseconds(),
		Attempts:  ans.Attempts,
		Source:    ans.Source,
		Cached:    ans.Cached,
		CreatedAt: e.now(),
	}
	if err := e.audit.RecordSuccess(context.WithoutCancel(ctx), record); err != nil {
		e.logger.Error("Failed to audit success", zap.String("question_id", ans.ID), zap.Error(err))
	}

	if !s.Cached {
		e.cache.Put(ans.Statement, s.Result)
	}
	return ans
}

func (e *Engine) fail(ctx context.Context, ans Answer, status, text, original string, attempts []models.Attempt) Answer {
	ans.Status = status
	ans.Text = text

	record := &models.FailureRecord{
		ID:                ans.ID,
		Question:          ans.Question,
		OriginalStatement: original,
		Attempts:          attempts,
		Status:            status,
		Fingerprint:       audit.Fingerprint(attempts),
		CreatedAt:         e.now(),
	}
	if err := e.audit.RecordFailure(context.WithoutCancel(ctx), record); err != nil {
		e.logger.Error("Failed to audit failure",
			zap.String("question_id", ans.ID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
	return ans
}

// internalFailure records a panic. A failure record needs at least one
// attempt, so the panic itself is recorded as the last one when the loop
// never got that far.
func (e *Engine) internalFailure(ctx context.Context, ans Answer, tr trace, reason string) (out Answer) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Failed to audit internal error", zap.String("question_id", ans.ID), zap.Any("panic", r))
			out = ans
			out.Status, out.Text = models.StatusInternalError, internalMessage
		}
	}()

	var attempts []models.Attempt
	if tr.state != nil {
		attempts = append(attempts, tr.state.Attempts...)
	}
	if len(attempts) < models.MaxAttempts {
		attempts = append(attempts, models.Attempt{Statement: tr.original, Error: reason})
	} else {
		attempts[len(attempts)-1].Error += "; " + reason
	}

	ans.Statement = tr.original
	ans.Attempts = len(attempts)
	ans.Cached = false
	ans.Result = executor.ResultSet{}
	return e.fail(ctx, ans, models.StatusInternalError, internalMessage, tr.original, attempts)
}

func cancelled(ans Answer) Answer {
	ans.Status = StatusCancelled
	ans.Text = cancelledMessage
	return ans
}
