// Command floq counts the words of a message stream in time windows.
//
//	source → [shed] → [filter] → window → word count → sink
//
// Sources: file, websocket, bluesky, mastodon, kafka, redis.
// Sinks: printer, file, sse, redis, kafka.
//
// Configuration comes from cmd/floq/config.yml (see LoadConfig for the
// search path), a .env file and FLOQ_ prefixed environment variables:
//
//	FLOQ_SOURCE_KIND=file FLOQ_SOURCE_FILE_PATH=posts.txt FLOQ_FILTER_PATTERN=Musk floq
//
// SIGINT or SIGTERM stops the run cleanly. The exit status is non-zero
// only when the pipeline fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/floq/bootstrap"
	"github.com/kbukum/floq/config"
	"github.com/kbukum/floq/kafka"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/observability"
	"github.com/kbukum/floq/redis"
	"github.com/kbukum/floq/server"
	"github.com/kbukum/floq/sse"
	"github.com/kbukum/floq/stream"
	"github.com/kbukum/floq/version"
)

func main() {
	configFile := flag.String("config", "", "path to a config.yml")
	envFile := flag.String("env", "", "path to a .env file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().Short())
		return
	}

	if err := run(context.Background(), *configFile, *envFile, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "floq: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configFile, envFile string) (*AppConfig, error) {
	opts := []config.LoaderOption{config.WithEnvPrefix("FLOQ")}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	var cfg AppConfig
	if err := config.LoadConfig("floq", &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func run(ctx context.Context, configFile, envFile string, out io.Writer) error {
	cfg, err := loadConfig(configFile, envFile)
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	return runApp(ctx, app, out)
}

// runApp registers the components, builds the task once they are up and
// runs it to completion.
func runApp(ctx context.Context, app *bootstrap.App[*AppConfig], out io.Writer) error {
	cfg := app.Cfg
	log := app.Logger.WithComponent("floq")

	tel := &telemetry{cfg: cfg.Telemetry}
	monitor := observability.NewMonitor(cfg.Telemetry.MonitorInterval)
	if err := app.RegisterComponent(tel.component()); err != nil {
		return err
	}
	if err := app.RegisterComponent(monitor); err != nil {
		return err
	}

	var redisComp *redis.Component
	if cfg.Redis.Enabled {
		redisComp = redis.NewComponent(cfg.Redis)
		if err := app.RegisterComponent(redisComp); err != nil {
			return err
		}
	}
	if cfg.Kafka.Enabled {
		if err := app.RegisterComponent(kafka.NewComponent(cfg.Kafka)); err != nil {
			return err
		}
	}

	var hub *sse.Hub
	if cfg.Server.Enabled {
		events := sse.NewComponent(cfg.Server.EventsPath)
		hub = events.Hub()

		srv := server.New(cfg.Server, log)
		srv.ApplyMiddleware()
		srv.RegisterRoutes(server.Routes{
			Service: app.Name,
			Version: app.Version,
			Health:  app.Components.HealthAll,
			Stats:   monitor.Snapshot,
			Hub:     hub,
		})
		// The hub stops first so open event streams end before the server
		// shuts down.
		if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
			return err
		}
		if err := app.RegisterComponent(events); err != nil {
			return err
		}
	}

	var task *stream.Task
	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*AppConfig]) error {
		d := deps{monitor: monitor, out: out, log: logger.Get("stream")}
		if hub != nil {
			d.hub = hub
		}
		if redisComp != nil {
			d.redis = redisComp.Client()
		}
		if cfg.Telemetry.Metrics.Enabled {
			m, err := observability.NewStageMetrics(observability.Meter("github.com/kbukum/floq"))
			if err != nil {
				return err
			}
			d.metrics = m
		}
		if cfg.Telemetry.Tracing.Enabled {
			d.tracer = observability.Tracer("github.com/kbukum/floq")
		}

		t, err := buildTask(ctx, a.Cfg, d)
		if err != nil {
			return err
		}
		task = t
		a.Summary.TrackTask(t.Name(), t.Stages())
		log.Info("pipeline configured", a.Cfg.logFields())
		return nil
	})

	return app.RunTask(ctx, func(ctx context.Context) error {
		report, err := task.Run(ctx)
		fields := logger.Fields(
			logger.FieldTask, report.Task,
			logger.FieldRunID, report.RunID,
			logger.FieldStatus, string(report.Status),
			"delivered", report.Delivered,
			"skipped", report.Skipped,
			logger.FieldDuration, report.Duration.Milliseconds(),
		)
		if err != nil {
			log.Error("pipeline failed", logger.MergeWithError(fields, err))
			return err
		}
		log.Info("pipeline finished", fields)
		return nil
	})
}
