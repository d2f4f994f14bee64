// Package redis mirrors audit records onto a Redis stream so reviewers can
// follow failures as they happen.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/storage/models"
	"github.com/review-agent/backend/pkg/logger"
)

// streamClient is the slice of the redis client the sink uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type Stream struct {
	client streamClient
	stream string
	maxLen int64
}

func NewStream(host string, port int, password string, db int, stream string, maxLen int64) (*Stream, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis audit stream initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.String("stream", stream),
	)

	return &Stream{client: client, stream: stream, maxLen: maxLen}, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

func (s *Stream) RecordFailure(ctx context.Context, r *models.FailureRecord) error {
	return s.add(ctx, "failure", r.ID, r)
}

func (s *Stream) RecordSuccess(ctx context.Context, r *models.SuccessRecord) error {
	return s.add(ctx, "success", r.ID, r)
}

func (s *Stream) add(ctx context.Context, kind, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"kind":   kind,
			"id":     id,
			"record": string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	entryID, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to append %s record: %w", kind, err)
	}

	logger.Debug("Audit record streamed",
		zap.String("kind", kind),
		zap.String("question_id", id),
		zap.String("entry_id", entryID),
	)
	return nil
}
