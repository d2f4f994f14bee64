package repair

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/llm"
	"github.com/review-agent/backend/internal/prompt"
	"github.com/review-agent/backend/internal/sanitize"
)

type Completer interface {
	Complete(ctx context.Context, profile llm.Profile, prompt string) (string, error)
}

type Runner interface {
	Execute(ctx context.Context, statement string) executor.Outcome
}

// AttemptObserver sees every execution the loop performs.
type AttemptObserver func(attempt int, out executor.Outcome)

type Loop struct {
	completer Completer
	builder   *prompt.Builder
	runner    Runner
	logger    *zap.Logger
	observer  AttemptObserver
}

func NewLoop(completer Completer, builder *prompt.Builder, runner Runner, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{completer: completer, builder: builder, runner: runner, logger: logger}
}

func (l *Loop) OnAttempt(o AttemptObserver) {
	l.observer = o
}

// Run executes initial and repairs it until it succeeds, the ceiling is
// reached, the corrector fails or ctx ends. The returned state is terminal.
func (l *Loop) Run(ctx context.Context, question string, initial Candidate, ceiling int) State {
	s := Start(initial, ceiling)
	log := l.logger.With(zap.String("question", question))

	for !s.Phase.Terminal() {
		if err := ctx.Err(); err != nil {
			return Abort(s, err)
		}

		switch s.Phase {
		case Executing:
			start := time.Now()
			out := l.runner.Execute(ctx, s.Candidate.Statement)
			if l.observer != nil {
				l.observer(s.Candidate.Attempt, out)
			}
			s = Transition(s, out)

			if out.OK() {
				log.Info("Statement succeeded",
					zap.Int("attempt", s.Candidate.Attempt),
					zap.String("source", s.Candidate.Source),
					zap.Bool("cached", out.Cached),
					zap.Int("rows", out.Result.Len()),
					zap.Int64("latency_ms", time.Since(start).Milliseconds()),
				)
			} else {
				log.Warn("Statement failed",
					zap.Int("attempt", s.Candidate.Attempt),
					zap.String("source", s.Candidate.Source),
					zap.String("error_kind", string(out.Failure.Kind)),
					zap.String("error", out.Failure.Message),
				)
			}

		case Repairing:
			latest, _ := s.Latest()
			history := s.Attempts[:len(s.Attempts)-1]
			p := l.builder.BuildRepair(question, latest.Statement, latest.Error, history)

			raw, err := l.completer.Complete(ctx, llm.ProfileRepair, p)
			if err != nil {
				log.Warn("Repair completion failed",
					zap.Int("attempt", s.Candidate.Attempt),
					zap.Error(err),
				)
				return Abort(s, err)
			}

			stmt := sanitize.Statement(raw)
			if stmt == latest.Statement {
				log.Debug("Repair repeated the failing statement", zap.Int("attempt", s.Candidate.Attempt+1))
			}
			s = Next(s, stmt)
		}
	}

	if s.Phase == Exhausted {
		log.Warn("Attempts exhausted", zap.Int("attempts", len(s.Attempts)))
	}
	return s
}
