package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/N9work/CrewAi-Project/internal/agent/core"
)

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeTimeout   = "timeout"
)

// Telemetry records pipeline metrics and exposes them as executor hooks.
type Telemetry struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	toolRetries   *prometheus.CounterVec
}

// NewTelemetry creates the collectors and registers them on a fresh
// registry.
func NewTelemetry() (*Telemetry, error) {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripcrew_pipeline_runs_total",
				Help: "Trip planning runs by outcome",
			},
			[]string{"outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripcrew_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"stage"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripcrew_tool_invocations_total",
				Help: "Tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripcrew_tool_retries_total",
				Help: "Retried tool requests",
			},
			[]string{"tool"},
		),
	}
	for _, c := range []prometheus.Collector{t.runs, t.stageDuration, t.toolCalls, t.toolRetries} {
		if err := t.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return t, nil
}

// Registry returns the registry holding every collector, for /metrics.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// RecordRun counts a finished run.
func (t *Telemetry) RecordRun(outcome string) {
	t.runs.WithLabelValues(outcome).Inc()
}

// OutcomeOf classifies a run error.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeFailed
	}
}

// RetryHook returns a callback counting retries for tool.
func (t *Telemetry) RetryHook(tool string) func(attempt int, err error) {
	return func(int, error) {
		t.toolRetries.WithLabelValues(tool).Inc()
	}
}

// Hooks returns executor hooks that record metrics and log lifecycle events
// on logger.
func (t *Telemetry) Hooks(logger *zap.Logger) core.Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return core.Hooks{
		OnTransition: func(ctx context.Context, from, to core.State) {
			logger.Debug("pipeline transition", zap.Stringer("from", from), zap.Stringer("to", to))
		},
		OnStageStart: func(ctx context.Context, ev core.StageEvent) {
			logger.Info("stage started",
				zap.Int("stage", ev.Index),
				zap.String("task", ev.Task.Name),
				zap.String("role", ev.Task.Agent.Role))
		},
		OnStageEnd: func(ctx context.Context, ev core.StageEvent) {
			t.stageDuration.WithLabelValues(ev.Task.Name).Observe(ev.Duration.Seconds())
			if ev.Err != nil {
				logger.Warn("stage failed", zap.Int("stage", ev.Index), zap.String("task", ev.Task.Name), zap.Error(ev.Err))
				return
			}
			logger.Info("stage finished",
				zap.Int("stage", ev.Index),
				zap.String("task", ev.Task.Name),
				zap.Int("output_chars", len(ev.Output)),
				zap.Duration("duration", ev.Duration))
		},
		OnToolCall: func(ctx context.Context, ev core.ToolEvent) {
			logger.Info("tool call",
				zap.Int("stage", ev.Stage),
				zap.String("tool", ev.Tool),
				zap.String("query", ev.Query),
				zap.Bool("prefetch", ev.Prefetch))
		},
		OnToolReturn: func(ctx context.Context, ev core.ToolEvent) {
			outcome := "ok"
			if ev.Err != nil {
				outcome = "error"
			}
			t.toolCalls.WithLabelValues(ev.Tool, outcome).Inc()
			logger.Info("tool return",
				zap.Int("stage", ev.Stage),
				zap.String("tool", ev.Tool),
				zap.String("outcome", outcome),
				zap.Duration("duration", ev.Duration),
				zap.Error(ev.Err))
		},
	}
}
