package analytics

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"liveclass/pkg/types"
)

const (
	DefaultStream    = "liveclass:analytics"
	defaultStreamCap = 100000
)

// streamAdder is the part of *redis.Client the sink uses
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends analytics events to a capped Redis stream for
// downstream consumers
type RedisStreamSink struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink writing to stream
func NewRedisStreamSink(client streamAdder, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{
		client: client,
		stream: stream,
		maxLen: defaultStreamCap,
	}
}

// StoreAnalyticsEvent implements interfaces.AnalyticsSink
func (s *RedisStreamSink) StoreAnalyticsEvent(ctx context.Context, event *types.AnalyticsEvent) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":         event.ID,
			"session_id": event.SessionID,
			"category":   string(event.Category),
			"user_id":    event.UserID,
			"action":     event.Action,
			"timestamp":  event.Timestamp.UnixMilli(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append analytics event to %s: %w", s.stream, err)
	}
	return nil
}
