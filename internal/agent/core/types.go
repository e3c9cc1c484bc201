package core

import (
	"context"
	"strings"
)

// Context is the single hand-off record between pipeline participants:
// a completed stage's output or a tool result made visible to a later stage.
type Context struct {
	Label string `json:"label"`
	Body  string `json:"body"`
}

// String renders the record the way workers see it.
func (c Context) String() string {
	if c.Label == "" {
		return c.Body
	}
	return c.Label + "\n" + c.Body
}

// Tool is an external capability an agent may use while executing a task,
// or that a task may prefetch as side context.
type Tool interface {
	// Name is the identifier workers use to call the tool.
	Name() string
	// Description tells the worker what the tool is for.
	Description() string
	// Invoke runs the tool for a free-text query.
	Invoke(ctx context.Context, query string) (Context, error)
}

// Agent describes a stage worker. It is built per request and owned by the
// single task that uses it.
type Agent struct {
	Role      string `json:"role"`
	Goal      string `json:"goal"`
	Backstory string `json:"backstory"`
	Tools     []Tool `json:"-"`
}

// DependencyKind tags what a task dependency refers to.
type DependencyKind int

const (
	// DependencyOutput refers to the output of an earlier stage.
	DependencyOutput DependencyKind = iota
	// DependencyPrefetch is side context produced by invoking a tool
	// when the stage starts.
	DependencyPrefetch
)

// Dependency is one context input of a task.
type Dependency struct {
	Kind  DependencyKind
	Stage int
	Tool  Tool
	Query string
}

// Task is the unit of work bound to exactly one agent. It yields exactly one
// textual output.
type Task struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	ExpectedOutput string       `json:"expected_output"`
	Agent          Agent        `json:"agent"`
	Dependencies   []Dependency `json:"-"`
}

// Pipeline is an ordered, validated sequence of tasks. Build it with
// NewPipeline.
type Pipeline struct {
	tasks []Task
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.tasks)
}

// Tasks returns a copy of the stage list.
func (p *Pipeline) Tasks() []Task {
	if p == nil {
		return nil
	}
	return append([]Task(nil), p.tasks...)
}

// Role of a message in a worker conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a worker conversation.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a worker's request to run an attached tool. Every tool takes
// a single free-text query.
type ToolCall struct {
	ID    string
	Name  string
	Query string
}

// ToolSpec advertises an attached tool to the worker backend.
type ToolSpec struct {
	Name        string
	Description string
}

// Completion is one request to a worker backend. ToolChoiceNone keeps the
// tool descriptors in the request but forbids new tool calls, so a history
// with tool turns stays valid on the final round.
type Completion struct {
	Messages       []Message
	Tools          []ToolSpec
	ToolChoiceNone bool
}

// Reply is the backend's answer: final text, or tool calls to satisfy first.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Backend is the language model service that executes stage work.
type Backend interface {
	Complete(ctx context.Context, req Completion) (Reply, error)
}

// SystemText joins the non-empty parts of a system prompt.
func SystemText(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n")
}
