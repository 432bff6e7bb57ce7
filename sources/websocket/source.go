package websocket

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"

	xws "golang.org/x/net/websocket"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/resilience"
	"github.com/kbukum/floq/stream"
)

// Source reads data frames from a websocket server. Without Reconnect the
// stream is exhausted when the server closes the connection.
type Source struct {
	cfg     Config
	name    string
	log     *logger.Logger
	backoff resilience.RetryConfig
}

var _ stream.Source[Frame] = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithBackoff sets the delays between reconnect attempts.
func WithBackoff(cfg resilience.RetryConfig) Option {
	return func(s *Source) { s.backoff = cfg }
}

// WithName overrides the source name reported in logs and errors.
func WithName(name string) Option {
	return func(s *Source) { s.name = name }
}

// WithLogger replaces the source logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Source) { s.log = l }
}

// NewSource creates a frame source.
func NewSource(cfg Config, opts ...Option) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Source{
		cfg:     cfg,
		name:    "ws:" + cfg.URL,
		log:     logger.Get("websocket").WithComponent("websocket.source"),
		backoff: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements stream.Namer.
func (s *Source) Name() string { return s.name }

// Open dials the server and starts reading frames in the background.
func (s *Source) Open(ctx context.Context) (stream.Producer[Frame], error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, errors.SourceFailed(s.name, err)
	}
	s.log.Info("websocket connected", logger.Fields("url", s.cfg.URL))

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &producer{
		src:    s,
		frames: make(chan result, s.cfg.Buffer),
		cancel: cancel,
		done:   make(chan struct{}),
		conn:   conn,
	}
	go p.read(readCtx)
	return p, nil
}

func (s *Source) dial(ctx context.Context) (*xws.Conn, error) {
	wsCfg, err := xws.NewConfig(s.cfg.URL, s.cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	for k, v := range s.cfg.Headers {
		wsCfg.Header.Set(k, v)
	}
	wsCfg.Dialer = &net.Dialer{Timeout: s.cfg.DialTimeout}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()
	conn, err := wsCfg.DialContext(dctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

type result struct {
	frame Frame
	err   error
}

type producer struct {
	src    *Source
	frames chan result
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn *xws.Conn
}

func (p *producer) Next(ctx context.Context) (Frame, stream.Outcome, error) {
	select {
	case <-ctx.Done():
		return Frame{}, stream.Pending, ctx.Err()
	case r, ok := <-p.frames:
		if !ok {
			return Frame{}, stream.Exhausted, nil
		}
		if r.err != nil {
			return Frame{}, stream.Pending, r.err
		}
		return r.frame, stream.Produced, nil
	}
}

// read receives frames until the connection ends for good or the producer
// is closed. The channel is closed on return.
func (p *producer) read(ctx context.Context) {
	defer close(p.done)
	defer close(p.frames)
	backoff := resilience.NewBackoff(p.src.backoff)
	log := p.src.log

	for {
		conn := p.current()
		if conn == nil {
			return
		}
		var f Frame
		err := frameCodec.Receive(conn, &f)
		if err == nil {
			backoff.Reset()
			select {
			case p.frames <- result{frame: f}:
				continue
			case <-ctx.Done():
				return
			}
		}

		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		if !p.src.cfg.Reconnect {
			if !stderrors.Is(err, io.EOF) {
				p.fail(ctx, errors.SourceFailed(p.src.name, err))
			}
			log.Info("websocket closed", logger.Fields("url", p.src.cfg.URL))
			return
		}

		log.Warn("websocket dropped, reconnecting", logger.Fields("url", p.src.cfg.URL, logger.FieldError, err.Error()))
		if !p.redial(ctx, backoff) {
			return
		}
	}
}

// redial dials until it succeeds, ctx ends or the reconnect budget is spent.
func (p *producer) redial(ctx context.Context, backoff *resilience.Backoff) bool {
	for {
		if backoff.Attempts() >= p.src.cfg.MaxReconnects {
			p.fail(ctx, errors.SourceFailed(p.src.name, fmt.Errorf("gave up after %d reconnect attempts", backoff.Attempts())))
			return false
		}
		if err := backoff.Wait(ctx); err != nil {
			return false
		}
		conn, err := p.src.dial(ctx)
		if err != nil {
			p.src.log.Warn("websocket reconnect failed", logger.Fields(
				"url", p.src.cfg.URL,
				"attempt", backoff.Attempts(),
				logger.FieldError, err.Error(),
			))
			continue
		}
		if !p.swap(conn) {
			_ = conn.Close()
			return false
		}
		p.src.log.Info("websocket reconnected", logger.Fields("url", p.src.cfg.URL, "attempt", backoff.Attempts()))
		return true
	}
}

func (p *producer) fail(ctx context.Context, err error) {
	select {
	case p.frames <- result{err: err}:
	case <-ctx.Done():
	}
}

func (p *producer) current() *xws.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

// swap installs a redialed connection unless the producer was closed.
func (p *producer) swap(conn *xws.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return false
	}
	p.conn = conn
	return true
}

// Close stops the reader and closes the connection.
func (p *producer) Close() error {
	p.cancel()
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	<-p.done
	return err
}

// Texts keeps text frames and maps them to their payload.
func Texts() stream.Operator[Frame, string] {
	return stream.Lift[Frame, string]("websocket-text", stream.KindMap, stream.StageFunc[Frame, string](
		func(_ context.Context, f Frame) (string, stream.Outcome, error) {
			if f.Type != TextFrame {
				return "", stream.Pending, nil
			}
			return f.Text(), stream.Produced, nil
		}))
}

// NewTextSource is a Source of the text messages sent by the server.
func NewTextSource(cfg Config, opts ...Option) (stream.Source[string], error) {
	src, err := NewSource(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return stream.NamedSource(src.Name(), stream.Via(stream.From[Frame](src), Texts())), nil
}
