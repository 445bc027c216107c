package events

import (
	"context"
	"fmt"

	"lending/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisSink appends event envelopes to a Redis list for downstream workers.
type RedisSink struct {
	client redis.Cmdable
	list   string
}

func NewRedisSink(client redis.Cmdable, list string) *RedisSink {
	return &RedisSink{client: client, list: list}
}

func (s *RedisSink) Handle(ctx context.Context, event domain.Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, s.list, string(data)).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", s.list, err)
	}
	return nil
}
