package bluesky

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/sources/websocket"
	"github.com/kbukum/floq/stream"
)

// Source streams the posts created on the network, in firehose order.
// Undecodable frames are logged and skipped.
type Source struct {
	frames *websocket.Source
	log    *logger.Logger
}

var _ stream.Source[Post] = (*Source)(nil)

// NewSource creates a firehose source.
func NewSource(cfg Config, opts ...websocket.Option) (*Source, error) {
	cfg.ApplyDefaults()
	wsCfg := cfg.Config
	wsCfg.URL = cfg.streamURL()
	log := logger.Get("bluesky").WithComponent("bluesky.firehose")

	opts = append([]websocket.Option{websocket.WithName("bluesky"), websocket.WithLogger(log)}, opts...)
	frames, err := websocket.NewSource(wsCfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Source{frames: frames, log: log}, nil
}

// Name implements stream.Namer.
func (s *Source) Name() string { return s.frames.Name() }

// Open implements stream.Source.
func (s *Source) Open(ctx context.Context) (stream.Producer[Post], error) {
	up, err := s.frames.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &producer{up: up, log: s.log}, nil
}

type producer struct {
	up      stream.Producer[websocket.Frame]
	log     *logger.Logger
	pending []Post
	skipped int64
}

func (p *producer) Next(ctx context.Context) (Post, stream.Outcome, error) {
	if len(p.pending) > 0 {
		post := p.pending[0]
		p.pending = p.pending[1:]
		return post, stream.Produced, nil
	}

	f, outcome, err := p.up.Next(ctx)
	if err != nil || outcome != stream.Produced {
		return Post{}, outcome, err
	}
	if f.Type != websocket.BinaryFrame {
		return Post{}, stream.Pending, nil
	}

	posts, err := decodeFrame(f.Data)
	if err != nil {
		p.skipped++
		var fe *FrameError
		if stderrors.As(err, &fe) {
			p.log.Warn("relay sent an error frame", logger.Fields("name", fe.Name, "message", fe.Message))
		} else {
			p.log.Debug("skipping undecodable frame", logger.Fields(logger.FieldError, err.Error(), "skipped", p.skipped))
		}
		return Post{}, stream.Pending, nil
	}
	if len(posts) == 0 {
		return Post{}, stream.Pending, nil
	}
	p.pending = posts[1:]
	return posts[0], stream.Produced, nil
}

func (p *producer) Close() error { return p.up.Close() }

// Texts maps posts to their text, dropping posts without any.
func Texts() stream.Operator[Post, string] {
	return stream.Lift[Post, string]("bluesky-text", stream.KindMap, stream.StageFunc[Post, string](
		func(_ context.Context, p Post) (string, stream.Outcome, error) {
			if p.Text == "" {
				return "", stream.Pending, nil
			}
			return p.Text, stream.Produced, nil
		}))
}
