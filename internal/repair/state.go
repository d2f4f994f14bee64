// Package repair drives a question's statement from its first execution to
// a result or to exhaustion.
//
// The state machine is pure: Start, Transition, Next and Abort compute new
// states from old ones and never perform I/O. Loop wires it to a completion
// client and an executor.
package repair

import (
	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/storage/models"
)

// MaxAttempts is the attempt ceiling per question.
const MaxAttempts = 5

type Phase int

const (
	Executing Phase = iota
	Repairing
	Done
	Exhausted
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Executing:
		return "executing"
	case Repairing:
		return "repairing"
	case Done:
		return "done"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == Done || p == Exhausted || p == Aborted
}

// Candidate is one statement to execute. Attempt starts at 1.
type Candidate struct {
	Statement string
	Source    string
	Attempt   int
}

type State struct {
	Phase     Phase
	Candidate Candidate
	// Ceiling is the number of executions this question may spend.
	Ceiling int
	// Attempts records every failed execution, oldest first.
	Attempts []models.Attempt
	// LastFailure is the classified failure of the latest attempt.
	LastFailure *executor.Failure
	Result      executor.ResultSet
	Cached      bool
	Err         error
}

// Start puts the first candidate up for execution. ceiling is clamped to
// 1..MaxAttempts.
func Start(c Candidate, ceiling int) State {
	if ceiling < 1 || ceiling > MaxAttempts {
		ceiling = MaxAttempts
	}
	if c.Attempt < 1 {
		c.Attempt = 1
	}
	return State{Phase: Executing, Candidate: c, Ceiling: ceiling}
}

// Transition applies an execution outcome. States other than Executing are
// returned unchanged.
func Transition(s State, out executor.Outcome) State {
	if s.Phase != Executing {
		return s
	}

	if out.OK() {
		s.Phase = Done
		s.Result = out.Result
		s.Cached = out.Cached
		s.LastFailure = nil
		return s
	}

	attempts := make([]models.Attempt, len(s.Attempts), len(s.Attempts)+1)
	copy(attempts, s.Attempts)
	s.Attempts = append(attempts, models.Attempt{
		Statement: s.Candidate.Statement,
		Error:     out.Failure.Message,
	})
	failure := *out.Failure
	s.LastFailure = &failure

	if s.Candidate.Attempt >= s.Ceiling {
		s.Phase = Exhausted
	} else {
		s.Phase = Repairing
	}
	return s
}

// Next installs the repaired statement as a new candidate. States other
// than Repairing are returned unchanged.
func Next(s State, statement string) State {
	if s.Phase != Repairing {
		return s
	}
	s.Candidate = Candidate{
		Statement: statement,
		Source:    models.SourceRepaired,
		Attempt:   s.Candidate.Attempt + 1,
	}
	s.Phase = Executing
	return s
}

// Abort ends a non-terminal state because the corrector or the caller gave
// up.
func Abort(s State, err error) State {
	if s.Phase.Terminal() {
		return s
	}
	s.Phase = Aborted
	s.Err = err
	return s
}

// Latest returns the most recent failed attempt.
func (s State) Latest() (models.Attempt, bool) {
	if len(s.Attempts) == 0 {
		return models.Attempt{}, false
	}
	return s.Attempts[len(s.Attempts)-1], true
}
