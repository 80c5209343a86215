// Package events defines the instrumentation records the pipeline emits
// around its phases. The core only produces events; rendering, tracing and
// aggregation belong to whatever Emitter the caller plugs in.
package events

import (
	"context"
	"time"

	"github.com/specialistvlad/monogrid/internal/ctxlog"
)

// Phase names one stage of the pipeline.
type Phase string

const (
	PhaseGraphBuild Phase = "graph-build"
	PhaseHashPlan   Phase = "hash-plan"
	PhaseExecution  Phase = "execution"
)

// Emitter consumes phase boundaries.
type Emitter interface {
	PhaseStarted(ctx context.Context, phase Phase)
	PhaseCompleted(ctx context.Context, phase Phase, took time.Duration, err error)
}

// LogEmitter writes phase boundaries to the context logger.
type LogEmitter struct{}

func (LogEmitter) PhaseStarted(ctx context.Context, phase Phase) {
	ctxlog.FromContext(ctx).Debug("Phase started.", "phase", string(phase))
}

func (LogEmitter) PhaseCompleted(ctx context.Context, phase Phase, took time.Duration, err error) {
	logger := ctxlog.FromContext(ctx)
	if err != nil {
		logger.Warn("Phase completed with error.", "phase", string(phase), "took", took, "error", err)
		return
	}
	logger.Debug("Phase completed.", "phase", string(phase), "took", took)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) PhaseStarted(ctx context.Context, phase Phase) {}

func (NopEmitter) PhaseCompleted(ctx context.Context, phase Phase, took time.Duration, err error) {}

// Measure wraps a phase: it emits the start event, runs fn and emits the
// completion event with the elapsed wall-clock time.
func Measure(ctx context.Context, emitter Emitter, phase Phase, fn func() error) error {
	emitter.PhaseStarted(ctx, phase)
	start := time.Now()
	err := fn()
	emitter.PhaseCompleted(ctx, phase, time.Since(start), err)
	return err
}
