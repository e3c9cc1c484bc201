package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxToolRounds bounds how many tool-call rounds a stage may request
// before the worker is asked for its final answer with tool calls disabled.
const DefaultMaxToolRounds = 4

var (
	// ErrEmptyOutput is returned when a worker finishes a stage with no text.
	ErrEmptyOutput = errors.New("stage produced empty output")
	// ErrUnknownTool is returned when a worker calls a tool its agent does not carry.
	ErrUnknownTool = errors.New("unknown tool")
)

// Status of a pipeline run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// State is a snapshot of a run. Stage is meaningful for running and failed.
type State struct {
	Status Status
	Stage  int
	Err    error
}

func (s State) String() string {
	switch s.Status {
	case StatusRunning:
		return fmt.Sprintf("running(%d)", s.Stage)
	case StatusFailed:
		return fmt.Sprintf("failed(%d)", s.Stage)
	default:
		return string(s.Status)
	}
}

// StageExecutionError reports the stage a run failed at and why.
type StageExecutionError struct {
	Index int
	Stage string
	Cause error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Index, e.Stage, e.Cause)
}

func (e *StageExecutionError) Unwrap() error { return e.Cause }

// StageEvent is passed to stage lifecycle hooks. Output, Err and Duration
// are set on stage end only.
type StageEvent struct {
	Index    int
	Task     Task
	Output   string
	Err      error
	Duration time.Duration
}

// ToolEvent is passed to tool lifecycle hooks. Result, Err and Duration are
// set on return only.
type ToolEvent struct {
	Stage    int
	Tool     string
	Query    string
	Prefetch bool
	Result   Context
	Err      error
	Duration time.Duration
}

// Hooks are optional lifecycle callbacks. They run synchronously on the
// executing goroutine.
type Hooks struct {
	OnTransition func(ctx context.Context, from, to State)
	OnStageStart func(ctx context.Context, ev StageEvent)
	OnStageEnd   func(ctx context.Context, ev StageEvent)
	OnToolCall   func(ctx context.Context, ev ToolEvent)
	OnToolReturn func(ctx context.Context, ev ToolEvent)
}

// StageResult is the record of one completed stage.
type StageResult struct {
	Index         int           `json:"index"`
	Name          string        `json:"name"`
	Role          string        `json:"role"`
	Output        string        `json:"output"`
	ContextLabels []string      `json:"context_labels,omitempty"`
	ToolCalls     int           `json:"tool_calls"`
	Duration      time.Duration `json:"duration"`
}

// Result of a completed run. Output is the last stage's raw text.
type Result struct {
	Output string        `json:"output"`
	Stages []StageResult `json:"stages"`
}

// Executor runs pipelines stage by stage against a worker backend.
type Executor struct {
	backend       Backend
	logger        *zap.Logger
	hooks         []Hooks
	maxToolRounds int
}

// Option configures executor behaviour.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *zap.Logger) Option {
	return func(ex *Executor) {
		if l != nil {
			ex.logger = l
		}
	}
}

// WithHooks adds a set of lifecycle hooks. Hook sets run in the order added.
func WithHooks(h Hooks) Option {
	return func(ex *Executor) {
		ex.hooks = append(ex.hooks, h)
	}
}

// WithMaxToolRounds sets the tool-call round limit per stage.
func WithMaxToolRounds(n int) Option {
	return func(ex *Executor) {
		if n >= 0 {
			ex.maxToolRounds = n
		}
	}
}

// NewExecutor creates an executor bound to backend.
func NewExecutor(backend Backend, opts ...Option) *Executor {
	ex := &Executor{
		backend:       backend,
		logger:        zap.NewNop(),
		maxToolRounds: DefaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// Execute runs every stage of p in order. Stage i starts only after stage
// i-1 completed, and a failure stops the run with no partial result.
func (e *Executor) Execute(ctx context.Context, p *Pipeline) (Result, error) {
	if p.Len() == 0 {
		return Result{}, fmt.Errorf("%w: no stages", ErrInvalidPipeline)
	}
	if e.backend == nil {
		return Result{}, errors.New("executor has no backend")
	}

	state := State{Status: StatusPending}
	moveTo := func(next State) {
		prev := state
		state = next
		for _, h := range e.hooks {
			if h.OnTransition != nil {
				h.OnTransition(ctx, prev, next)
			}
		}
	}
	fail := func(i int, t Task, cause error) (Result, error) {
		err := &StageExecutionError{Index: i, Stage: t.Name, Cause: cause}
		moveTo(State{Status: StatusFailed, Stage: i, Err: err})
		e.logger.Warn("pipeline failed", zap.Int("stage", i), zap.String("task", t.Name), zap.Error(cause))
		return Result{}, err
	}

	tasks := p.Tasks()
	outputs := make([]Context, 0, len(tasks))
	res := Result{Stages: make([]StageResult, 0, len(tasks))}

	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			return fail(i, t, err)
		}
		moveTo(State{Status: StatusRunning, Stage: i})
		e.stageStart(ctx, StageEvent{Index: i, Task: t})
		start := time.Now()

		sr, err := e.runStage(ctx, i, t, outputs)
		sr.Duration = time.Since(start)
		e.stageEnd(ctx, StageEvent{Index: i, Task: t, Output: sr.Output, Err: err, Duration: sr.Duration})
		if err != nil {
			return fail(i, t, err)
		}
		e.logger.Info("stage completed",
			zap.Int("stage", i),
			zap.String("task", t.Name),
			zap.Int("tool_calls", sr.ToolCalls),
			zap.Duration("duration", sr.Duration))

		outputs = append(outputs, Context{Label: t.Name + " output", Body: sr.Output})
		res.Stages = append(res.Stages, sr)
		res.Output = sr.Output
	}

	moveTo(State{Status: StatusCompleted, Stage: len(tasks) - 1})
	return res, nil
}

func (e *Executor) runStage(ctx context.Context, i int, t Task, outputs []Context) (StageResult, error) {
	sr := StageResult{Index: i, Name: t.Name, Role: t.Agent.Role}

	contexts := make([]Context, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		switch d.Kind {
		case DependencyOutput:
			if d.Stage < 0 || d.Stage >= len(outputs) {
				return sr, fmt.Errorf("%w: stage %d output not available", ErrInvalidPipeline, d.Stage)
			}
			contexts = append(contexts, outputs[d.Stage])
		case DependencyPrefetch:
			c, err := e.invokeTool(ctx, i, d.Tool, d.Query, true)
			if err != nil {
				return sr, fmt.Errorf("prefetch %s: %w", d.Tool.Name(), err)
			}
			contexts = append(contexts, c)
		}
	}
	for _, c := range contexts {
		sr.ContextLabels = append(sr.ContextLabels, c.Label)
	}

	tools := make(map[string]Tool, len(t.Agent.Tools))
	specs := make([]ToolSpec, 0, len(t.Agent.Tools))
	for _, tool := range t.Agent.Tools {
		tools[tool.Name()] = tool
		specs = append(specs, ToolSpec{Name: tool.Name(), Description: tool.Description()})
	}

	messages := StageMessages(t, contexts)
	for round := 0; ; round++ {
		req := Completion{Messages: messages, Tools: specs, ToolChoiceNone: round >= e.maxToolRounds}
		reply, err := e.backend.Complete(ctx, req)
		if err != nil {
			return sr, err
		}
		if len(reply.ToolCalls) == 0 || len(req.Tools) == 0 || req.ToolChoiceNone {
			text := strings.TrimSpace(reply.Text)
			if text == "" {
				return sr, ErrEmptyOutput
			}
			sr.Output = text
			return sr, nil
		}

		messages = append(messages, Message{Role: RoleAssistant, Content: reply.Text, ToolCalls: reply.ToolCalls})
		for _, call := range reply.ToolCalls {
			tool, ok := tools[call.Name]
			if !ok {
				return sr, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
			}
			sr.ToolCalls++
			c, err := e.invokeTool(ctx, i, tool, call.Query, false)
			if err != nil {
				return sr, fmt.Errorf("tool %s: %w", call.Name, err)
			}
			messages = append(messages, Message{Role: RoleTool, Content: c.String(), ToolCallID: call.ID, Name: call.Name})
		}
	}
}

func (e *Executor) invokeTool(ctx context.Context, stage int, tool Tool, query string, prefetch bool) (Context, error) {
	ev := ToolEvent{Stage: stage, Tool: tool.Name(), Query: query, Prefetch: prefetch}
	for _, h := range e.hooks {
		if h.OnToolCall != nil {
			h.OnToolCall(ctx, ev)
		}
	}
	start := time.Now()
	c, err := tool.Invoke(ctx, query)
	ev.Result, ev.Err, ev.Duration = c, err, time.Since(start)
	for _, h := range e.hooks {
		if h.OnToolReturn != nil {
			h.OnToolReturn(ctx, ev)
		}
	}
	return c, err
}

func (e *Executor) stageStart(ctx context.Context, ev StageEvent) {
	for _, h := range e.hooks {
		if h.OnStageStart != nil {
			h.OnStageStart(ctx, ev)
		}
	}
}

func (e *Executor) stageEnd(ctx context.Context, ev StageEvent) {
	for _, h := range e.hooks {
		if h.OnStageEnd != nil {
			h.OnStageEnd(ctx, ev)
		}
	}
}
