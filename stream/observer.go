package stream

import "time"

// Observer receives lifecycle and per-stage events from a running task.
// Implementations must be safe for concurrent use: window and buffer
// goroutines report from outside the run loop.
type Observer interface {
	OnStart(task, runID string)
	// OnItem reports one step of a stage. Windows report Pending for every
	// buffered message and Produced for every flush.
	OnItem(stage string, kind Kind, outcome Outcome)
	OnError(stage string, kind Kind, err error)
	OnFinish(report Report)
}

// BaseObserver implements Observer with no-ops; embed it to override a subset.
type BaseObserver struct{}

func (BaseObserver) OnStart(string, string)       {}
func (BaseObserver) OnItem(string, Kind, Outcome) {}
func (BaseObserver) OnError(string, Kind, error)  {}
func (BaseObserver) OnFinish(Report)              {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) OnStart(task, runID string) {
	for _, o := range m {
		o.OnStart(task, runID)
	}
}

func (m multiObserver) OnItem(stage string, kind Kind, outcome Outcome) {
	for _, o := range m {
		o.OnItem(stage, kind, outcome)
	}
}

func (m multiObserver) OnError(stage string, kind Kind, err error) {
	for _, o := range m {
		o.OnError(stage, kind, err)
	}
}

func (m multiObserver) OnFinish(r Report) {
	for _, o := range m {
		o.OnFinish(r)
	}
}

// idle backs off between consecutive Pending polls of a producer that
// does not block on its own.
type idle struct {
	d time.Duration
}

const (
	idleMin = time.Millisecond
	idleMax = 50 * time.Millisecond
)

func (i *idle) next() time.Duration {
	if i.d == 0 {
		i.d = idleMin
	} else if i.d < idleMax {
		i.d *= 2
	}
	return i.d
}

func (i *idle) reset() { i.d = 0 }
