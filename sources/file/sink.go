package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/stream"
)

// Format renders one value as a single output line.
type Format[T any] func(v T) (string, error)

// Text renders strings as they are, fmt.Stringers through String, and
// everything else as compact JSON.
func Text[T any](v T) (string, error) {
	switch x := any(v).(type) {
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

// Sink writes one line per value to a file. Each line is flushed as it is
// written so the file can be followed while the pipeline runs.
type Sink[T any] struct {
	path   string
	format Format[T]

	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	closed bool
}

var _ stream.Sink[string] = (*Sink[string])(nil)

// NewSink creates or truncates path, or appends to it when appendMode is
// set. A nil format uses Text.
func NewSink[T any](path string, appendMode bool, format Format[T]) (*Sink[T], error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, errors.SinkFailed("file:"+path, err)
	}
	if format == nil {
		format = Text[T]
	}
	return &Sink[T]{path: path, format: format, f: f, w: bufio.NewWriter(f)}, nil
}

// Name implements stream.Namer.
func (s *Sink[T]) Name() string { return "file:" + s.path }

// Consume implements stream.Sink.
func (s *Sink[T]) Consume(_ context.Context, v T) error {
	line, err := s.format(v)
	if err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.SinkFailed(s.Name(), fmt.Errorf("sink closed"))
	}
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	if err := s.w.Flush(); err != nil {
		return errors.SinkFailed(s.Name(), err)
	}
	return nil
}

// Close flushes and closes the file. Safe to call more than once.
func (s *Sink[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
