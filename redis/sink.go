package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/stream"
	"github.com/kbukum/floq/validation"
)

// Fields renders a pipeline value as the field/value pairs of one entry.
type Fields[T any] func(v T) (map[string]any, error)

// JSONField stores the JSON encoding of each value under field.
func JSONField[T any](field string) Fields[T] {
	return func(v T) (map[string]any, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return map[string]any{field: string(b)}, nil
	}
}

// StreamSink appends every value to a Redis stream with XADD.
type StreamSink[T any] struct {
	client *Client
	key    string
	maxLen int64
	fields Fields[T]
}

var _ stream.Sink[string] = (*StreamSink[string])(nil)

// NewStreamSink appends to cfg.OutputKey. A nil fields stores JSON under "data".
func NewStreamSink[T any](client *Client, cfg StreamConfig, fields Fields[T]) (*StreamSink[T], error) {
	if err := validation.Required("redis.stream.output_key", cfg.OutputKey); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = JSONField[T]("data")
	}
	return &StreamSink[T]{client: client, key: cfg.OutputKey, maxLen: cfg.MaxLen, fields: fields}, nil
}

// Name implements stream.Namer.
func (s *StreamSink[T]) Name() string { return "redis:" + s.key }

// Consume implements stream.Sink.
func (s *StreamSink[T]) Consume(ctx context.Context, v T) error {
	values, err := s.fields(v)
	if err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	args := &goredis.XAddArgs{Stream: s.key, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.rdb.XAdd(ctx, args).Err(); err != nil {
		return errors.SinkFailed(s.Name(), fmt.Errorf("xadd %s: %w", s.key, err))
	}
	return nil
}
