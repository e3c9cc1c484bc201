package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPipeline is returned by NewPipeline for a malformed stage list.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// NewAgent creates a stage worker description.
func NewAgent(role, goal, backstory string, tools ...Tool) Agent {
	return Agent{
		Role:      role,
		Goal:      goal,
		Backstory: backstory,
		Tools:     append([]Tool(nil), tools...),
	}
}

// NewTask binds a task to its agent and context inputs.
func NewTask(name, description, expectedOutput string, agent Agent, deps ...Dependency) Task {
	return Task{
		Name:           name,
		Description:    description,
		ExpectedOutput: expectedOutput,
		Agent:          agent,
		Dependencies:   append([]Dependency(nil), deps...),
	}
}

// OutputOf makes the output of stage i visible to the task.
func OutputOf(i int) Dependency {
	return Dependency{Kind: DependencyOutput, Stage: i}
}

// Prefetch invokes tool with query when the stage starts and passes the
// result in as context.
func Prefetch(tool Tool, query string) Dependency {
	return Dependency{Kind: DependencyPrefetch, Tool: tool, Query: query}
}

// NewPipeline validates the stage list. A stage may only read outputs of
// stages strictly before it.
func NewPipeline(tasks ...Task) (*Pipeline, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: no stages", ErrInvalidPipeline)
	}
	for i, t := range tasks {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("%w: stage %d has no name", ErrInvalidPipeline, i)
		}
		for _, tool := range t.Agent.Tools {
			if tool == nil {
				return nil, fmt.Errorf("%w: stage %d (%s) has a nil tool", ErrInvalidPipeline, i, t.Name)
			}
		}
		for _, d := range t.Dependencies {
			switch d.Kind {
			case DependencyOutput:
				if d.Stage < 0 || d.Stage >= i {
					return nil, fmt.Errorf("%w: stage %d (%s) depends on stage %d", ErrInvalidPipeline, i, t.Name, d.Stage)
				}
			case DependencyPrefetch:
				if d.Tool == nil {
					return nil, fmt.Errorf("%w: stage %d (%s) prefetches from a nil tool", ErrInvalidPipeline, i, t.Name)
				}
			default:
				return nil, fmt.Errorf("%w: stage %d (%s) has unknown dependency kind %d", ErrInvalidPipeline, i, t.Name, d.Kind)
			}
		}
	}
	return &Pipeline{tasks: append([]Task(nil), tasks...)}, nil
}
