package stream

import (
	"context"
	"time"

	"github.com/kbukum/floq/logger"
)

type runInfoKey struct{}

// runInfo is what a running task shares with its stages through ctx.
type runInfo struct {
	task     string
	runID    string
	observer Observer
	log      *logger.Logger
	cancel   CancelPolicy
	draining bool
}

func withRunInfo(ctx context.Context, info *runInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

func runInfoFrom(ctx context.Context) *runInfo {
	if info, ok := ctx.Value(runInfoKey{}).(*runInfo); ok {
		return info
	}
	return nil
}

// RunID returns the id of the run executing under ctx, or "".
func RunID(ctx context.Context) string {
	if info := runInfoFrom(ctx); info != nil {
		return info.runID
	}
	return ""
}

func observe(ctx context.Context, stage string, kind Kind, outcome Outcome) {
	if info := runInfoFrom(ctx); info != nil && info.observer != nil {
		info.observer.OnItem(stage, kind, outcome)
	}
}

func cancelPolicyFrom(ctx context.Context) CancelPolicy {
	if info := runInfoFrom(ctx); info != nil {
		return info.cancel
	}
	return DiscardOnCancel
}

// isDraining reports whether ctx belongs to the final drain after cancellation.
// Sources end immediately while draining.
func isDraining(ctx context.Context) bool {
	info := runInfoFrom(ctx)
	return info != nil && info.draining
}

// drainContext detaches from the cancelled run context so the open window
// batch can travel to the sink, bounded by timeout.
func drainContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	info := *runInfoFrom(ctx)
	info.draining = true
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	return withRunInfo(dctx, &info), cancel
}

func logFrom(ctx context.Context) *logger.Logger {
	if info := runInfoFrom(ctx); info != nil && info.log != nil {
		return info.log
	}
	return logger.Get("stream")
}
