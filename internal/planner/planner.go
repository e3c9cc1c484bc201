// Package planner runs one trip planning request end to end: validation,
// prompt compilation, the research and writing stages, and rendering.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/N9work/CrewAi-Project/internal/agent/core"
	"github.com/N9work/CrewAi-Project/internal/agent/telemetry"
	"github.com/N9work/CrewAi-Project/internal/catalog"
	"github.com/N9work/CrewAi-Project/internal/prompt"
	"github.com/N9work/CrewAi-Project/internal/render"
)

// CompletedMessage is returned with every successful report.
const CompletedMessage = "Task completed!"

// Stage names. The writer sees the research output labelled
// "research output".
const (
	StageResearch = "research"
	StageWrite    = "write"
)

// DefaultTimeout bounds one request when no timeout option is given.
const DefaultTimeout = 5 * time.Minute

// Report is the outcome of a successful run.
type Report struct {
	Message string             `json:"message"`
	Result  string             `json:"result"`
	RunID   string             `json:"run_id"`
	Stages  []core.StageResult `json:"stages,omitempty"`
}

// Planner is safe for concurrent use. Per-request state lives in the
// agents, tasks and executor built by Plan.
type Planner struct {
	reg           *catalog.Registry
	compiler      *prompt.Compiler
	backend       core.Backend
	search        core.Tool
	tools         []core.Tool
	telemetry     *telemetry.Telemetry
	logger        *zap.Logger
	timeout       time.Duration
	maxToolRounds int
}

// Option configures the planner.
type Option func(*Planner)

// WithLogger sets the planner logger. Every run logs with a run_id field.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTelemetry records run, stage and tool metrics.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(p *Planner) { p.telemetry = t }
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxToolRounds bounds tool-call rounds per stage.
func WithMaxToolRounds(n int) Option {
	return func(p *Planner) { p.maxToolRounds = n }
}

// WithTools attaches extra tools to the researcher next to search.
func WithTools(tools ...core.Tool) Option {
	return func(p *Planner) {
		for _, t := range tools {
			if t != nil {
				p.tools = append(p.tools, t)
			}
		}
	}
}

// New creates a planner. search is prefetched for every run and attached to
// the researcher; it may be nil to run without web search.
func New(reg *catalog.Registry, backend core.Backend, search core.Tool, opts ...Option) *Planner {
	p := &Planner{
		reg:           reg,
		compiler:      prompt.NewCompiler(reg),
		backend:       backend,
		search:        search,
		logger:        zap.NewNop(),
		timeout:       DefaultTimeout,
		maxToolRounds: core.DefaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan validates req and runs the research and writing stages. Validation
// failures return *catalog.InvalidParameterError before any agent is built.
func (p *Planner) Plan(ctx context.Context, req catalog.Request) (Report, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	start := time.Now()

	req = req.Normalize()
	if err := p.reg.Validate(req); err != nil {
		logger.Info("request rejected", zap.Error(err))
		p.recordRun(telemetry.OutcomeRejected)
		return Report{RunID: runID}, err
	}
	compiled, err := p.compiler.Compile(req)
	if err != nil {
		p.recordRun(telemetry.OutcomeFailed)
		return Report{RunID: runID}, fmt.Errorf("compile prompts: %w", err)
	}
	pipeline, err := p.Build(compiled)
	if err != nil {
		p.recordRun(telemetry.OutcomeFailed)
		return Report{RunID: runID}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := []core.Option{core.WithLogger(logger), core.WithMaxToolRounds(p.maxToolRounds)}
	if p.telemetry != nil {
		opts = append(opts, core.WithHooks(p.telemetry.Hooks(logger)))
	}
	logger.Info("run started",
		zap.String("category", req.Category),
		zap.String("style", req.Style),
		zap.String("cost", req.Cost),
		zap.String("duration", req.Duration))

	res, err := core.NewExecutor(p.backend, opts...).Execute(ctx, pipeline)
	p.recordRun(telemetry.OutcomeOf(err))
	if err != nil {
		logger.Error("run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return Report{RunID: runID}, err
	}

	logger.Info("run completed", zap.Duration("elapsed", time.Since(start)))
	return Report{
		Message: CompletedMessage,
		Result:  render.Markdown(res.Output),
		RunID:   runID,
		Stages:  res.Stages,
	}, nil
}

// Build assembles the two-stage pipeline for compiled prompts: a researcher
// with search prefetched as context, then a writer reading the research.
func (p *Planner) Build(c prompt.Compiled) (*core.Pipeline, error) {
	prompts := p.reg.Prompts()

	var tools []core.Tool
	var deps []core.Dependency
	if p.search != nil {
		tools = append(tools, p.search)
		deps = append(deps, core.Prefetch(p.search, c.SearchQuery))
	}
	tools = append(tools, p.tools...)

	researcher := core.NewAgent(prompts.Researcher.Role, c.ResearchGoal, prompts.Researcher.Backstory, tools...)
	writer := core.NewAgent(prompts.Writer.Role, c.WriterGoal, prompts.Writer.Backstory)

	pipeline, err := core.NewPipeline(
		core.NewTask(StageResearch, c.ResearchDescription, c.ResearchExpectedOutput, researcher, deps...),
		core.NewTask(StageWrite, c.WriterDescription, c.WriterExpectedOutput, writer, core.OutputOf(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return pipeline, nil
}

func (p *Planner) recordRun(outcome string) {
	if p.telemetry != nil {
		p.telemetry.RecordRun(outcome)
	}
}

// IsTimeout reports whether err came from the request deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
