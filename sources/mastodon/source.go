package mastodon

import (
	"context"
	"encoding/json"

	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/sources/websocket"
	"github.com/kbukum/floq/stream"
)

// Source streams the statuses published on a timeline. Events other than
// updates are ignored.
type Source struct {
	frames *websocket.Source
	log    *logger.Logger
}

var _ stream.Source[Status] = (*Source)(nil)

// NewSource creates a streaming source. The access token is sent as a
// bearer token, never in the URL.
func NewSource(cfg Config, opts ...websocket.Option) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	streamURL, err := cfg.StreamingURL()
	if err != nil {
		return nil, err
	}

	wsCfg := cfg.Config
	wsCfg.URL = streamURL
	if cfg.AccessToken != "" {
		headers := make(map[string]string, len(wsCfg.Headers)+1)
		for k, v := range wsCfg.Headers {
			headers[k] = v
		}
		headers["Authorization"] = "Bearer " + cfg.AccessToken
		wsCfg.Headers = headers
	}

	log := logger.Get("mastodon").WithComponent("mastodon.stream")
	opts = append([]websocket.Option{websocket.WithName("mastodon:" + cfg.Stream), websocket.WithLogger(log)}, opts...)
	frames, err := websocket.NewSource(wsCfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Source{frames: frames, log: log}, nil
}

// Name implements stream.Namer.
func (s *Source) Name() string { return s.frames.Name() }

// Open implements stream.Source.
func (s *Source) Open(ctx context.Context) (stream.Producer[Status], error) {
	up, err := s.frames.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &producer{up: up, log: s.log}, nil
}

type producer struct {
	up  stream.Producer[websocket.Frame]
	log *logger.Logger
}

func (p *producer) Next(ctx context.Context) (Status, stream.Outcome, error) {
	f, outcome, err := p.up.Next(ctx)
	if err != nil || outcome != stream.Produced {
		return Status{}, outcome, err
	}
	if f.Type != websocket.TextFrame {
		return Status{}, stream.Pending, nil
	}

	var ev event
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		p.log.Debug("skipping malformed event", logger.Fields(logger.FieldError, err.Error()))
		return Status{}, stream.Pending, nil
	}
	if ev.Event != "update" {
		return Status{}, stream.Pending, nil
	}
	var st Status
	if err := json.Unmarshal([]byte(ev.Payload), &st); err != nil {
		p.log.Debug("skipping malformed status", logger.Fields(logger.FieldError, err.Error()))
		return Status{}, stream.Pending, nil
	}
	return st, stream.Produced, nil
}

func (p *producer) Close() error { return p.up.Close() }

// Texts maps statuses to their plain text, dropping empty ones.
func Texts() stream.Operator[Status, string] {
	return stream.Lift[Status, string]("mastodon-text", stream.KindMap, stream.StageFunc[Status, string](
		func(_ context.Context, s Status) (string, stream.Outcome, error) {
			text := s.Text()
			if text == "" {
				return "", stream.Pending, nil
			}
			return text, stream.Produced, nil
		}))
}
