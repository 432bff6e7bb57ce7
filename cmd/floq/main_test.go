package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/floq/bootstrap"
	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fileConfig(path string) *AppConfig {
	cfg := &AppConfig{}
	cfg.Source.Kind = SourceFile
	cfg.Source.File.Path = path
	cfg.Window.Kind = WindowCounting
	cfg.Window.Size = 2
	cfg.Telemetry.MonitorInterval = -1
	return cfg
}

func newApp(t *testing.T, cfg *AppConfig) *bootstrap.App[*AppConfig] {
	t.Helper()
	app, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(logger.Nop()), bootstrap.WithoutSummary())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestConfigDefaults(t *testing.T) {
	var cfg AppConfig
	cfg.ApplyDefaults()

	if cfg.Name != "floq" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Source.Kind != SourceBluesky || cfg.Sink.Kind != SinkPrinter {
		t.Errorf("source/sink = %q/%q", cfg.Source.Kind, cfg.Sink.Kind)
	}
	if cfg.Window.Kind != WindowTumbling || cfg.Window.Period != 5*time.Second {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Pipeline.ErrorPolicy != "abort" || cfg.Pipeline.CancelPolicy != "discard" {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Kafka.Enabled || cfg.Redis.Enabled || cfg.Server.Enabled {
		t.Error("connectors should stay disabled unless selected")
	}
	if cfg.Telemetry.Tracing.ServiceName != "floq" || cfg.Telemetry.Metrics.Endpoint == "" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfigEnablesSelectedConnectors(t *testing.T) {
	var cfg AppConfig
	cfg.Source.Kind = SourceKafka
	cfg.Sink.Kind = SinkSSE
	cfg.ApplyDefaults()
	if !cfg.Kafka.Enabled || !cfg.Server.Enabled || cfg.Redis.Enabled {
		t.Errorf("kafka=%v server=%v redis=%v", cfg.Kafka.Enabled, cfg.Server.Enabled, cfg.Redis.Enabled)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"unknown source", func(c *AppConfig) { c.Source.Kind = "carrier-pigeon" }, "source.kind"},
		{"file without path", func(c *AppConfig) { c.Source.File.Path = "" }, "source.file.path"},
		{"bad pattern", func(c *AppConfig) { c.Filter.Pattern = "(" }, "filter.pattern"},
		{"unknown window", func(c *AppConfig) { c.Window.Kind = "hopping" }, "window.kind"},
		{"slide longer than period", func(c *AppConfig) {
			c.Window.Kind = WindowSliding
			c.Window.Period = time.Second
			c.Window.Slide = 2 * time.Second
		}, "window.slide"},
		{"unknown reduce mode", func(c *AppConfig) { c.Reduce.Mode = "median" }, "reduce.mode"},
		{"negative top", func(c *AppConfig) { c.Reduce.Top = -1 }, "reduce.top"},
		{"file sink without path", func(c *AppConfig) { c.Sink.Kind = SinkFile }, "sink.path"},
		{"unknown error policy", func(c *AppConfig) { c.Pipeline.ErrorPolicy = "ignore" }, "pipeline.error_policy"},
		{"bad line size", func(c *AppConfig) { c.Source.File.MaxLineSize = "huge" }, "source.file.max_line_size"},
		{"redis source without key", func(c *AppConfig) { c.Source.Kind = SourceRedis }, "redis.stream.key"},
		{"redis-key sink without key", func(c *AppConfig) { c.Sink.Kind = SinkRedisKey; c.Sink.Key = "" }, "sink.key"},
		{"negative ttl", func(c *AppConfig) { c.Sink.Kind = SinkRedisKey; c.Sink.TTL = -time.Second }, "sink.ttl"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := fileConfig("/tmp/in.txt")
			cfg.ApplyDefaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if errors.CodeOf(err) != errors.ErrCodeInvalidConfig {
				t.Errorf("code = %v", errors.CodeOf(err))
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not name %q", err, tc.field)
			}
		})
	}
}

func TestConfigValidateMastodon(t *testing.T) {
	var cfg AppConfig
	cfg.Source.Kind = SourceMastodon
	cfg.Source.Mastodon.Stream = "hashtag"
	cfg.ApplyDefaults()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "mastodon.tag") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := `
name: floq-test
environment: staging
source:
  kind: file
  file:
    path: /var/data/posts.txt
window:
  kind: tumbling
  period: 10s
sink:
  kind: printer
  prefix: "> "
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOQ_FILTER_PATTERN", "Musk")
	t.Setenv("FLOQ_WINDOW_PERIOD", "2s")

	cfg, err := loadConfig(path, "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Name != "floq-test" || cfg.Environment != "staging" {
		t.Errorf("service = %q/%q", cfg.Name, cfg.Environment)
	}
	if cfg.Source.File.Path != "/var/data/posts.txt" || cfg.Sink.Prefix != "> " {
		t.Errorf("source/sink = %+v / %+v", cfg.Source.File, cfg.Sink)
	}
	if cfg.Filter.Pattern != "Musk" {
		t.Errorf("filter = %q, want env override", cfg.Filter.Pattern)
	}
	if cfg.Window.Period != 2*time.Second {
		t.Errorf("period = %v, want env override", cfg.Window.Period)
	}
}

func TestWordCountSingleWindow(t *testing.T) {
	f := stream.Via(stream.Via(stream.From(stream.FromSlice([]string{"a b", "c", "d e f"})), stream.Counting[string](3)),
		wordCount(ReduceConfig{Mode: ReducePerWindow}))

	got, report, err := stream.Gather(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != stream.StatusCompleted || len(got) != 1 {
		t.Fatalf("status=%s results=%v", report.Status, got)
	}
	r := got[0]
	if r.Window != 1 || r.Messages != 3 || r.Words != 6 || len(r.Top) != 6 {
		t.Fatalf("result = %+v", r)
	}
	for i, w := range []string{"a", "b", "c", "d", "e", "f"} {
		if r.Top[i] != (WordCount{Word: w, Count: 1}) {
			t.Errorf("top[%d] = %+v, want %s=1", i, r.Top[i], w)
		}
	}
}

func TestWordCountModes(t *testing.T) {
	in := []string{"go go", "rust", "go", "zig"}
	tests := []struct {
		mode string
		want []string
	}{
		{ReducePerWindow, []string{"window 1: 2 messages, 3 words: go=2 rust=1", "window 2: 2 messages, 2 words: go=1 zig=1"}},
		{ReduceRunning, []string{"window 1: 2 messages, 3 words: go=2 rust=1", "window 2: 4 messages, 5 words: go=3 rust=1 zig=1"}},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			f := stream.Via(stream.Via(stream.From(stream.FromSlice(in)), stream.Counting[string](2)),
				wordCount(ReduceConfig{Mode: tc.mode}))
			got, _, err := stream.Gather(context.Background(), f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d results", len(got))
			}
			for i := range got {
				if got[i].String() != tc.want[i] {
					t.Errorf("result %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestWordCountEmptyWindow(t *testing.T) {
	r, err := toResult(3)(context.Background(), tally{window: 4})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.String(); got != "window 4: 0 messages, 0 words" {
		t.Errorf("got %q", got)
	}
}

func TestSplitWords(t *testing.T) {
	cfg := ReduceConfig{MinLength: 3, Lowercase: true}
	got := splitWords("Elon's #Tesla, @spacex: to the MOON!", cfg)
	want := []string{"elon's", "#tesla", "@spacex", "the", "moon"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunFilePipeline(t *testing.T) {
	path := writeLines(t, "Elon Musk tweets", "weather today", "Musk news")
	cfg := fileConfig(path)
	cfg.Filter.Pattern = "Musk"

	var out bytes.Buffer
	if err := runApp(context.Background(), newApp(t, cfg), &out); err != nil {
		t.Fatalf("runApp: %v", err)
	}
	want := "window 1: 2 messages, 5 words: Musk=2 Elon=1 news=1 tweets=1\n"
	if out.String() != want {
		t.Errorf("output = %q\nwant     %q", out.String(), want)
	}
}

func TestRunFileToFile(t *testing.T) {
	path := writeLines(t, "one two", "two", "three")
	cfg := fileConfig(path)
	cfg.Sink.Kind = SinkFile
	cfg.Sink.Path = filepath.Join(t.TempDir(), "out.txt")
	cfg.Reduce.Top = 1

	if err := runApp(context.Background(), newApp(t, cfg), nil); err != nil {
		t.Fatalf("runApp: %v", err)
	}
	b, err := os.ReadFile(cfg.Sink.Path)
	if err != nil {
		t.Fatal(err)
	}
	want := "window 1: 2 messages, 3 words: two=2\nwindow 2: 1 messages, 1 words: three=1\n"
	if string(b) != want {
		t.Errorf("file = %q\nwant   %q", b, want)
	}
}

func TestRunFileToRedisKey(t *testing.T) {
	mr := miniredis.RunT(t)
	path := writeLines(t, "one two", "two", "three")
	cfg := fileConfig(path)
	cfg.Sink.Kind = SinkRedisKey
	cfg.Sink.TTL = time.Minute
	cfg.Reduce.Top = 1
	cfg.Redis.Addr = mr.Addr()

	if err := runApp(context.Background(), newApp(t, cfg), nil); err != nil {
		t.Fatalf("runApp: %v", err)
	}
	raw, err := mr.Get("floq:latest")
	if err != nil {
		t.Fatalf("latest result missing: %v", err)
	}
	var got Result
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatal(err)
	}
	if got.Window != 2 || len(got.Top) != 1 || got.Top[0].Word != "three" {
		t.Errorf("latest = %+v", got)
	}
	if ttl := mr.TTL("floq:latest"); ttl != time.Minute {
		t.Errorf("ttl = %v", ttl)
	}
}

func TestRunFailsOnMissingInput(t *testing.T) {
	cfg := fileConfig(filepath.Join(t.TempDir(), "missing.txt"))
	err := runApp(context.Background(), newApp(t, cfg), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected failure")
	}
	if errors.CodeOf(err) != errors.ErrCodeSourceFailed {
		t.Errorf("code = %v, err = %v", errors.CodeOf(err), err)
	}
}

func TestRunCancelledIsClean(t *testing.T) {
	path := writeLines(t, "a", "b", "c")
	cfg := fileConfig(path)
	cfg.Window.Kind = WindowTumbling
	cfg.Window.Period = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	if err := runApp(ctx, newApp(t, cfg), &out); err != nil {
		t.Fatalf("cancelled run should succeed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("partial window must not be delivered, got %q", out.String())
	}
}

func TestRunTracksTaskInSummary(t *testing.T) {
	path := writeLines(t, "x")
	cfg := fileConfig(path)
	app := newApp(t, cfg)
	if err := runApp(context.Background(), app, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	tasks := app.Summary.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].Name != "file:"+path {
		t.Errorf("task name = %q", tasks[0].Name)
	}
	if last := tasks[0].Stages[len(tasks[0].Stages)-1]; last != "printer" {
		t.Errorf("last stage = %q", last)
	}
}

func TestLogFieldsMaskSecrets(t *testing.T) {
	var cfg AppConfig
	cfg.Source.Kind = SourceMastodon
	cfg.Source.Mastodon.AccessToken = "tok-1234567890"
	cfg.Sink.Kind = SinkRedis
	cfg.Redis.Password = "hunter2"
	cfg.ApplyDefaults()

	fields := cfg.logFields()
	if fields["mastodon_token"] != "tok-***" {
		t.Errorf("mastodon_token = %v", fields["mastodon_token"])
	}
	if fields["redis_password"] != "***" {
		t.Errorf("redis_password = %v", fields["redis_password"])
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && (strings.Contains(s, "1234567890") || strings.Contains(s, "hunter2")) {
			t.Errorf("field %s leaks a secret: %q", k, s)
		}
	}
}

func TestFileSourceMaxLineSize(t *testing.T) {
	path := writeLines(t, strings.Repeat("x", 100))
	cfg := fileConfig(path)
	cfg.Source.File.MaxLineSize = "64B"
	err := runApp(context.Background(), newApp(t, cfg), &bytes.Buffer{})
	if errors.CodeOf(err) != errors.ErrCodeSourceFailed {
		t.Fatalf("expected a source failure for an oversized line, got %v", err)
	}
}
