package redis

import (
	"context"
	stderrors "errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
	"github.com/kbukum/floq/validation"
)

// Entry is one stream entry.
type Entry struct {
	ID     string
	Values map[string]string
}

// StreamSource reads a Redis stream with XREAD, in ID order.
type StreamSource struct {
	client *Client
	cfg    StreamConfig
	log    *logger.Logger
}

var _ stream.Source[Entry] = (*StreamSource)(nil)

// NewStreamSource reads the stream named by cfg.Key.
func NewStreamSource(client *Client, cfg StreamConfig) (*StreamSource, error) {
	cfg.applyDefaults()
	if err := validation.Required("redis.stream.key", cfg.Key); err != nil {
		return nil, err
	}
	return &StreamSource{
		client: client,
		cfg:    cfg,
		log:    logger.Get("redis").WithComponent("redis.source"),
	}, nil
}

// Name implements stream.Namer.
func (s *StreamSource) Name() string { return "redis:" + s.cfg.Key }

// Open implements stream.Source. Each run starts again at StartID.
func (s *StreamSource) Open(context.Context) (stream.Producer[Entry], error) {
	s.log.Info("redis stream source opened", logger.Fields(
		"stream", s.cfg.Key,
		"start_id", s.cfg.StartID,
		"follow", s.cfg.Follow,
	))
	return &streamProducer{src: s, lastID: s.cfg.StartID}, nil
}

type streamProducer struct {
	src     *StreamSource
	lastID  string
	pending []goredis.XMessage
}

func (p *streamProducer) Next(ctx context.Context) (Entry, stream.Outcome, error) {
	if len(p.pending) == 0 {
		outcome, err := p.fetch(ctx)
		if err != nil || outcome != stream.Produced {
			return Entry{}, outcome, err
		}
	}
	msg := p.pending[0]
	p.pending = p.pending[1:]
	p.lastID = msg.ID
	return toEntry(msg), stream.Produced, nil
}

func (p *streamProducer) fetch(ctx context.Context) (stream.Outcome, error) {
	args := &goredis.XReadArgs{
		Streams: []string{p.src.cfg.Key, p.lastID},
		Count:   p.src.cfg.Count,
		Block:   -1,
	}
	if p.src.cfg.Follow {
		args.Block = p.src.cfg.Block
	}
	res, err := p.src.client.rdb.XRead(ctx, args).Result()
	switch {
	case stderrors.Is(err, goredis.Nil):
		if p.src.cfg.Follow {
			return stream.Pending, nil
		}
		return stream.Exhausted, nil
	case err != nil:
		if ctx.Err() != nil {
			return stream.Pending, ctx.Err()
		}
		return stream.Pending, errors.SourceFailed(p.src.Name(), fmt.Errorf("xread %s: %w", p.src.cfg.Key, err))
	}
	for _, st := range res {
		p.pending = append(p.pending, st.Messages...)
	}
	if len(p.pending) == 0 {
		if p.src.cfg.Follow {
			return stream.Pending, nil
		}
		return stream.Exhausted, nil
	}
	return stream.Produced, nil
}

func (p *streamProducer) Close() error { return nil }

func toEntry(msg goredis.XMessage) Entry {
	values := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		values[k] = fmt.Sprint(v)
	}
	return Entry{ID: msg.ID, Values: values}
}

// Texts maps entries to the value of field, dropping entries without it.
func Texts(field string) stream.Operator[Entry, string] {
	return stream.Named("redis-text", stream.MapOne(func(_ context.Context, in stream.Batch[Entry]) (stream.Batch[string], error) {
		out := make(stream.Batch[string], 0, len(in))
		for _, e := range in {
			if v, ok := e.Values[field]; ok {
				out = append(out, v)
			}
		}
		return out, nil
	}))
}
