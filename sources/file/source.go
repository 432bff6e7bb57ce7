package file

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

// defaultMaxLine is the longest line the source accepts by default.
const defaultMaxLine = 1 << 20

// Source emits the lines of a file in order, without line terminators,
// then reports exhaustion.
type Source struct {
	path    string
	maxLine int
	skip    bool
	log     *logger.Logger
}

var _ stream.Source[string] = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithMaxLineSize sets the longest accepted line. A longer line fails the source.
func WithMaxLineSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxLine = n
		}
	}
}

// WithSkipEmpty drops blank lines.
func WithSkipEmpty() Option {
	return func(s *Source) { s.skip = true }
}

// NewSource creates a line source reading path.
func NewSource(path string, opts ...Option) *Source {
	s := &Source{path: path, maxLine: defaultMaxLine, log: logger.Get("file").WithComponent("file.source")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements stream.Namer.
func (s *Source) Name() string { return "file:" + s.path }

// Open implements stream.Source. Every run reads the file from the start.
func (s *Source) Open(context.Context) (stream.Producer[string], error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.SourceFailed(s.Name(), err).WithDetail("path", s.path)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, min(64*1024, s.maxLine)), s.maxLine)
	s.log.Debug("file opened", logger.Fields("path", s.path))
	return &lineProducer{src: s, f: f, sc: sc}, nil
}

type lineProducer struct {
	src   *Source
	f     *os.File
	sc    *bufio.Scanner
	lines int64
}

func (p *lineProducer) Next(ctx context.Context) (string, stream.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", stream.Pending, err
	}
	for p.sc.Scan() {
		p.lines++
		line := p.sc.Text()
		if p.src.skip && line == "" {
			continue
		}
		return line, stream.Produced, nil
	}
	if err := p.sc.Err(); err != nil {
		return "", stream.Pending, errors.SourceFailed(p.src.Name(), fmt.Errorf("line %d: %w", p.lines+1, err))
	}
	p.src.log.Debug("file exhausted", logger.Fields("path", p.src.path, "lines", p.lines))
	return "", stream.Exhausted, nil
}

func (p *lineProducer) Close() error { return p.f.Close() }
