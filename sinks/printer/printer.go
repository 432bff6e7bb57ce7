package printer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

// Sink prints every value on its own line, after a prefix. With a logger it
// emits one structured log entry per value instead.
type Sink[T any] struct {
	prefix string

	mu  sync.Mutex
	out io.Writer
	log *logger.Logger
}

var _ stream.Sink[string] = (*Sink[string])(nil)

// Option configures a Sink.
type Option func(*options)

type options struct {
	out io.Writer
	log *logger.Logger
}

// WithWriter prints to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithLogger logs each value at info level under the "value" field.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates a printer sink.
func New[T any](prefix string, opts ...Option) *Sink[T] {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Sink[T]{prefix: prefix, out: o.out, log: o.log}
}

// Name implements stream.Namer.
func (s *Sink[T]) Name() string { return "printer" }

// Consume implements stream.Sink.
func (s *Sink[T]) Consume(ctx context.Context, v T) error {
	text, err := render(v)
	if err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	if s.log != nil {
		s.log.WithContext(ctx).Info(s.prefix, logger.Fields("value", text))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "%s%s\n", s.prefix, text); err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	return nil
}

// render prints strings and fmt.Stringers as they are and everything else
// as JSON, so maps print with sorted keys.
func render(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
