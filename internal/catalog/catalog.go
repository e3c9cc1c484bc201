// Package catalog holds the read-only trip planning catalogue: per-category
// prompt templates, the style/cost/duration modifiers, and the stage prompts
// shared by every request. A Registry is built once at startup and is safe
// for concurrent use because nothing mutates it afterwards.
package catalog

import (
	"sort"
)

// Template is the prompt material for one destination category.
// Text fields keep their {placeholder} slots; substitution happens in the
// prompt compiler.
type Template struct {
	ID             string
	Place          string
	Destination    string
	Goal           string
	Description    string
	ExpectedOutput string
	Travelers      string
	Requirement    string
	// SkipModifiers marks the variant whose compiled goal omits the
	// style, cost and duration fragments.
	SkipModifiers bool
}

// Modifier is a descriptive fragment keyed by a style, cost or duration id.
type Modifier struct {
	ID          string
	Description string
}

// RolePrompt describes one worker role.
type RolePrompt struct {
	Role      string
	Backstory string
	Goal      string
}

// TaskPrompt is the description/expected-output pair of a stage task.
type TaskPrompt struct {
	Description    string
	ExpectedOutput string
}

// Prompts are the stage-level templates shared by all categories.
type Prompts struct {
	Researcher   RolePrompt
	Writer       RolePrompt
	ResearchTask TaskPrompt
	SearchQuery  string
}

// Registry is an immutable lookup over templates and modifiers.
type Registry struct {
	templates map[string]Template
	styles    map[string]Modifier
	costs     map[string]Modifier
	durations map[string]Modifier
	prompts   Prompts
}

// Template returns the category template for id.
func (r *Registry) Template(id string) (Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// Style returns the travel style modifier for id.
func (r *Registry) Style(id string) (Modifier, bool) {
	m, ok := r.styles[id]
	return m, ok
}

// Cost returns the budget tier modifier for id.
func (r *Registry) Cost(id string) (Modifier, bool) {
	m, ok := r.costs[id]
	return m, ok
}

// Duration returns the trip duration modifier for id.
func (r *Registry) Duration(id string) (Modifier, bool) {
	m, ok := r.durations[id]
	return m, ok
}

// Prompts returns the shared stage prompts.
func (r *Registry) Prompts() Prompts { return r.prompts }

// Options lists every accepted id per request field, sorted.
type Options struct {
	Categories []string `json:"categories"`
	Styles     []string `json:"styles"`
	Costs      []string `json:"costs"`
	Durations  []string `json:"durations"`
}

// Options returns fresh copies of the id listings.
func (r *Registry) Options() Options {
	return Options{
		Categories: sortedKeys(r.templates),
		Styles:     sortedKeys(r.styles),
		Costs:      sortedKeys(r.costs),
		Durations:  sortedKeys(r.durations),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
