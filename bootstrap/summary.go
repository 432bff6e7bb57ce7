package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/floq/component"
)

// TaskInfo is a pipeline shown in the startup summary.
type TaskInfo struct {
	Name   string
	Stages []string
}

// Summary collects what the startup summary shows beyond the components.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	tasks           []TaskInfo
}

// NewSummary creates a summary for the given service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackTask records a task and its stages, source first and sink last.
func (s *Summary) TrackTask(name string, stages []string) {
	s.tasks = append(s.tasks, TaskInfo{Name: name, Stages: stages})
}

// Tasks returns the tracked tasks.
func (s *Summary) Tasks() []TaskInfo {
	return append([]TaskInfo(nil), s.tasks...)
}

// Write renders the summary to w. Components that implement
// component.Describable are listed with their details; the health section
// reflects registry.HealthAll at the time of the call.
func (s *Summary) Write(ctx context.Context, w io.Writer, registry *component.Registry) {
	version := s.version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "\n🚀 %s %s started in %.2fs\n", s.serviceName, version, s.startupDuration.Seconds())

	var health []component.Health
	var described []describedComponent
	if registry != nil {
		health = registry.HealthAll(ctx)
		for _, c := range registry.All() {
			d, ok := c.(component.Describable)
			if !ok {
				continue
			}
			described = append(described, describedComponent{name: c.Name(), desc: d.Describe()})
		}
	}
	status := make(map[string]component.HealthStatus, len(health))
	for _, h := range health {
		status[h.Name] = h.Status
	}

	if len(described) > 0 {
		fmt.Fprintf(w, "\n📊 Infrastructure\n")
		for i, c := range described {
			d := c.desc
			if d.Name == "" {
				d.Name = c.name
			}
			details := d.Details
			if d.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s %s %s [%s]: %s\n", branch(i, len(described)), healthIcon(status[c.name]), d.Name, d.Type, details)
		}
	}

	if len(s.tasks) > 0 {
		fmt.Fprintf(w, "\n🔀 Pipelines\n")
		for i, t := range s.tasks {
			fmt.Fprintf(w, "   %s %s: %s\n", branch(i, len(s.tasks)), t.Name, strings.Join(t.Stages, " → "))
		}
	}

	if len(health) == 0 {
		fmt.Fprintf(w, "\n   └── No components registered\n\n")
		return
	}
	fmt.Fprintf(w, "\n🏥 Health Check\n")
	healthy := 0
	for i, h := range health {
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(health)), healthIcon(h.Status), h.Name, h.Status, msg)
		if h.Status == component.StatusHealthy {
			healthy++
		}
	}
	if healthy == len(health) {
		fmt.Fprintf(w, "\n✅ All components healthy (%d/%d)\n\n", healthy, len(health))
	} else {
		fmt.Fprintf(w, "\n⚠️  Some components have issues (%d/%d healthy)\n\n", healthy, len(health))
	}
}

type describedComponent struct {
	name string
	desc component.Description
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
