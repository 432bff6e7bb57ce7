package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/floq/logger"
)

// DefaultStopTimeout bounds each component's Stop in StopAll.
const DefaultStopTimeout = 10 * time.Second

type slot struct {
	c       Component
	started bool
}

// Registry starts components in registration order and stops them in
// reverse, so a pipeline's connectors come up before the task and go down
// after it.
type Registry struct {
	mu    sync.RWMutex
	slots []*slot
	index map[string]int
	log   *logger.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
		log:   logger.Get("component"),
	}
}

// Register appends c. Names must be unique; register dependencies first.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("component %s already registered", name)
	}
	r.index[name] = len(r.slots)
	r.slots = append(r.slots, &slot{c: c})
	r.log.Debug("component registered", logger.Fields(logger.FieldComponent, name))
	return nil
}

// StartAll starts every component in order. When one fails, those already
// started are stopped again, newest first, and the start error is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("starting components", logger.Fields(logger.FieldCount, len(r.slots)))
	for _, s := range r.slots {
		name := s.c.Name()
		if err := s.c.Start(ctx); err != nil {
			r.log.Error("component start failed", logger.MergeWithError(logger.Fields(logger.FieldComponent, name), err))
			_ = r.stopStarted(ctx)
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		s.started = true
		r.log.Info("component started", startedFields(s.c))
	}
	return nil
}

func startedFields(c Component) map[string]interface{} {
	fields := logger.Fields(logger.FieldComponent, c.Name())
	if d, ok := c.(Describable); ok {
		desc := d.Describe()
		fields["type"] = desc.Type
		fields["details"] = desc.Details
	}
	return fields
}

// StopAll stops started components in reverse order and joins their errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("stopping components")
	return r.stopStarted(ctx)
}

// stopStarted requires r.mu.
func (r *Registry) stopStarted(ctx context.Context) error {
	var errs []error
	for i := len(r.slots) - 1; i >= 0; i-- {
		s := r.slots[i]
		if !s.started {
			continue
		}
		s.started = false
		if err := stopWithin(ctx, s.c); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", s.c.Name(), err))
			r.log.Error("component stop failed", logger.MergeWithError(logger.Fields(logger.FieldComponent, s.c.Name()), err))
			continue
		}
		r.log.Debug("component stopped", logger.Fields(logger.FieldComponent, s.c.Name()))
	}
	return stderrors.Join(errs...)
}

func stopWithin(ctx context.Context, c Component) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultStopTimeout)
	defer cancel()
	return c.Stop(ctx)
}

// HealthAll probes every component in registration order.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]Health, len(r.slots))
	for i, s := range r.slots {
		results[i] = s.c.Health(ctx)
	}
	return results
}

// Get returns the component registered as name, or nil.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.index[name]; ok {
		return r.slots[i].c
	}
	return nil
}

// All returns the components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Component, len(r.slots))
	for i, s := range r.slots {
		all[i] = s.c
	}
	return all
}
