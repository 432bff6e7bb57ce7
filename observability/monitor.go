package observability

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/floq/component"
	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

// StageStats counts the steps of one stage.
type StageStats struct {
	Stage    string      `json:"stage"`
	Kind     stream.Kind `json:"kind"`
	Produced int64       `json:"produced"`
	Pending  int64       `json:"pending"`
	Errors   int64       `json:"errors"`
}

// TaskStats is a point-in-time view of a task.
type TaskStats struct {
	Task      string        `json:"task"`
	RunID     string        `json:"run_id,omitempty"`
	Status    stream.Status `json:"status"`
	Started   time.Time     `json:"started"`
	Delivered int64         `json:"delivered"`
	Skipped   int64         `json:"skipped"`
	Error     string        `json:"error,omitempty"`
	Stages    []StageStats  `json:"stages"`
}

// Monitor keeps in-memory counters for every observed task and logs them
// periodically while it runs. It is a component so the application registry
// can start and stop the logging loop.
type Monitor struct {
	interval time.Duration
	log      *logger.Logger

	mu    sync.RWMutex
	tasks map[string]*taskStats
	order []string

	cancel context.CancelFunc
	done   chan struct{}
}

type taskStats struct {
	mu     sync.Mutex
	stats  TaskStats
	stages map[string]int
}

// NewMonitor creates a monitor that logs every interval once started.
// A non-positive interval disables logging; Snapshot still works.
func NewMonitor(interval time.Duration) *Monitor {
	return &Monitor{
		interval: interval,
		log:      logger.Get("monitor"),
		tasks:    make(map[string]*taskStats),
	}
}

// Observer returns a stream.Observer feeding the monitor under the task name.
// Observing the same name again restarts its counters.
func (m *Monitor) Observer(task string) stream.Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := &taskStats{
		stats:  TaskStats{Task: task, Status: stream.StatusRunning},
		stages: make(map[string]int),
	}
	if _, exists := m.tasks[task]; !exists {
		m.order = append(m.order, task)
	}
	m.tasks[task] = ts
	return &monitorObserver{ts: ts}
}

// Snapshot returns a copy of every task's stats, in the order tasks were added.
func (m *Monitor) Snapshot() []TaskStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TaskStats, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.tasks[name].snapshot())
	}
	return out
}

// Task returns the stats of one task.
func (m *Monitor) Task(name string) (TaskStats, bool) {
	m.mu.RLock()
	ts, ok := m.tasks[name]
	m.mu.RUnlock()
	if !ok {
		return TaskStats{}, false
	}
	return ts.snapshot(), true
}

func (m *Monitor) Name() string { return "monitor" }

// Start launches the logging loop.
func (m *Monitor) Start(ctx context.Context) error {
	if m.interval <= 0 || m.cancel != nil {
		return nil
	}
	ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.done = make(chan struct{})
	go m.loop(ctx)
	return nil
}

// Stop ends the logging loop and writes the final stats once.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.cancel = nil
	m.logStats()
	return nil
}

// Health is degraded while any observed task has failed.
func (m *Monitor) Health(context.Context) component.Health {
	for _, ts := range m.Snapshot() {
		if ts.Status == stream.StatusFailed {
			return component.Health{Name: m.Name(), Status: component.StatusDegraded, Message: "task " + ts.Task + " failed: " + ts.Error}
		}
	}
	return component.Health{Name: m.Name(), Status: component.StatusHealthy}
}

func (m *Monitor) Describe() component.Description {
	return component.Description{Name: "Pipeline Monitor", Type: "monitor", Details: "interval=" + m.interval.String()}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.logStats()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) logStats() {
	for _, ts := range m.Snapshot() {
		stages := make(map[string]interface{}, len(ts.Stages))
		for _, s := range ts.Stages {
			stages[s.Stage] = s.Produced
		}
		m.log.Info("pipeline stats", logger.Fields(
			logger.FieldTask, ts.Task,
			logger.FieldRunID, ts.RunID,
			logger.FieldStatus, string(ts.Status),
			"delivered", ts.Delivered,
			"skipped", ts.Skipped,
			"stages", stages,
		))
	}
}

func (ts *taskStats) snapshot() TaskStats {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	s := ts.stats
	s.Stages = append([]StageStats(nil), ts.stats.Stages...)
	if s.Status == stream.StatusRunning {
		for _, st := range s.Stages {
			if st.Kind == stream.KindSink {
				s.Delivered = st.Produced
			}
		}
	}
	return s
}

// stage returns the counters for name, adding them on first use. Callers hold ts.mu.
func (ts *taskStats) stage(name string, kind stream.Kind) *StageStats {
	i, ok := ts.stages[name]
	if !ok {
		i = len(ts.stats.Stages)
		ts.stages[name] = i
		ts.stats.Stages = append(ts.stats.Stages, StageStats{Stage: name, Kind: kind})
	}
	return &ts.stats.Stages[i]
}

type monitorObserver struct {
	ts *taskStats
}

func (o *monitorObserver) OnStart(_, runID string) {
	o.ts.mu.Lock()
	o.ts.stats.RunID = runID
	o.ts.stats.Status = stream.StatusRunning
	o.ts.stats.Started = time.Now()
	o.ts.mu.Unlock()
}

func (o *monitorObserver) OnItem(stage string, kind stream.Kind, outcome stream.Outcome) {
	o.ts.mu.Lock()
	defer o.ts.mu.Unlock()
	s := o.ts.stage(stage, kind)
	switch outcome {
	case stream.Produced:
		s.Produced++
	case stream.Pending:
		s.Pending++
	}
}

func (o *monitorObserver) OnError(stage string, kind stream.Kind, _ error) {
	o.ts.mu.Lock()
	o.ts.stage(stage, kind).Errors++
	o.ts.mu.Unlock()
}

func (o *monitorObserver) OnFinish(r stream.Report) {
	o.ts.mu.Lock()
	defer o.ts.mu.Unlock()
	o.ts.stats.Status = r.Status
	o.ts.stats.Delivered = r.Delivered
	o.ts.stats.Skipped = r.Skipped
	o.ts.stats.Error = r.Error
}
