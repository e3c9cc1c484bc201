package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/N9work/CrewAi-Project/internal/agent/core"
)

func TestHooksRecordMetricsAndLogs(t *testing.T) {
	tel, err := NewTelemetry()
	require.NoError(t, err)
	zc, logs := observer.New(zap.InfoLevel)
	hooks := tel.Hooks(zap.New(zc))
	ctx := context.Background()
	task := core.NewTask("research", "d", "e", core.NewAgent("Researcher", "g", "b"))

	hooks.OnStageStart(ctx, core.StageEvent{Index: 0, Task: task})
	hooks.OnToolCall(ctx, core.ToolEvent{Stage: 0, Tool: "search_internet", Query: "q", Prefetch: true})
	hooks.OnToolReturn(ctx, core.ToolEvent{Stage: 0, Tool: "search_internet", Duration: time.Millisecond})
	hooks.OnToolReturn(ctx, core.ToolEvent{Stage: 0, Tool: "search_internet", Err: errors.New("boom")})
	hooks.OnStageEnd(ctx, core.StageEvent{Index: 0, Task: task, Output: "notes", Duration: 2 * time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(tel.toolCalls.WithLabelValues("search_internet", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.toolCalls.WithLabelValues("search_internet", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(tel.stageDuration))

	assert.Equal(t, 1, logs.FilterMessage("stage started").Len())
	assert.Equal(t, 2, logs.FilterMessage("tool return").Len())
	finished := logs.FilterMessage("stage finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(5), finished[0].ContextMap()["output_chars"])
}

func TestRecordRunAndRetries(t *testing.T) {
	tel, err := NewTelemetry()
	require.NoError(t, err)

	tel.RecordRun(OutcomeOf(nil))
	tel.RecordRun(OutcomeOf(fmt.Errorf("stage 1: %w", context.DeadlineExceeded)))
	tel.RecordRun(OutcomeOf(errors.New("x")))
	retry := tel.RetryHook("search_internet")
	retry(1, nil)
	retry(2, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(tel.runs.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.runs.WithLabelValues(OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.runs.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(tel.toolRetries.WithLabelValues("search_internet")))

	families, err := tel.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
