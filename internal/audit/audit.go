// Package audit writes one append-only record per terminal outcome of a
// question. The pipeline only writes; reading back is left to reviewers.
package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/storage/models"
	"github.com/review-agent/backend/pkg/logger"
	"github.com/review-agent/backend/pkg/utils"
)

type Log interface {
	RecordFailure(ctx context.Context, record *models.FailureRecord) error
	RecordSuccess(ctx context.Context, record *models.SuccessRecord) error
}

// Store is the durable table pair, implemented by the SQLite client.
type Store interface {
	InsertFailure(ctx context.Context, record *models.FailureRecord) error
	InsertSuccess(ctx context.Context, record *models.SuccessRecord) error
}

type storeLog struct {
	store Store
}

func FromStore(store Store) Log {
	return storeLog{store: store}
}

func (l storeLog) RecordFailure(ctx context.Context, r *models.FailureRecord) error {
	return l.store.InsertFailure(ctx, r)
}

func (l storeLog) RecordSuccess(ctx context.Context, r *models.SuccessRecord) error {
	return l.store.InsertSuccess(ctx, r)
}

// Fingerprint hashes an attempt list so that identical failure histories
// can be grouped by reviewers.
func Fingerprint(attempts []models.Attempt) string {
	parts := make([]string, 0, 2*len(attempts))
	for _, a := range attempts {
		parts = append(parts, a.Statement, a.Error)
	}
	return utils.HashParts(parts...)
}

// WriteObserver sees every write: kind is "failure" or "success", result
// "ok" or "error".
type WriteObserver func(sink, kind, result string)

// Multi writes to a primary log and mirrors each record to secondary sinks.
// Only the primary decides whether the write succeeded; mirror errors are
// logged.
type Multi struct {
	primary  Log
	mirrors  map[string]Log
	observer WriteObserver
}

func NewMulti(primary Log, observer WriteObserver) *Multi {
	return &Multi{primary: primary, mirrors: map[string]Log{}, observer: observer}
}

func (m *Multi) AddMirror(name string, sink Log) {
	m.mirrors[name] = sink
}

func (m *Multi) RecordFailure(ctx context.Context, r *models.FailureRecord) error {
	if r.Fingerprint == "" {
		r.Fingerprint = Fingerprint(r.Attempts)
	}
	return m.write(ctx, "failure", r.ID, func(l Log) error { return l.RecordFailure(ctx, r) })
}

func (m *Multi) RecordSuccess(ctx context.Context, r *models.SuccessRecord) error {
	return m.write(ctx, "success", r.ID, func(l Log) error { return l.RecordSuccess(ctx, r) })
}

func (m *Multi) write(ctx context.Context, kind, id string, fn func(Log) error) error {
	if err := fn(m.primary); err != nil {
		m.observe("primary", kind, "error")
		return fmt.Errorf("failed to write %s record: %w", kind, err)
	}
	m.observe("primary", kind, "ok")

	for name, sink := range m.mirrors {
		if err := fn(sink); err != nil {
			m.observe(name, kind, "error")
			logger.Warn("Audit mirror write failed",
				zap.String("sink", name),
				zap.String("kind", kind),
				zap.String("question_id", id),
				zap.Error(err),
			)
			continue
		}
		m.observe(name, kind, "ok")
	}
	return nil
}

func (m *Multi) observe(sink, kind, result string) {
	if m.observer != nil {
		m.observer(sink, kind, result)
	}
}
