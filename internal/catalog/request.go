package catalog

import (
	"fmt"
	"strings"
)

// Request is the categorical input of one trip planning run.
// JSON keys follow the web client's form fields.
type Request struct {
	Category    string `json:"task_type" form:"task_type"`
	Style       string `json:"style" form:"style"`
	Cost        string `json:"cost" form:"cost"`
	Duration    string `json:"day" form:"day"`
	Travelers   string `json:"adults" form:"adults"`
	Requirement string `json:"Rq" form:"Rq"`
}

// Request field names reported by InvalidParameterError.
const (
	FieldCategory = "category"
	FieldStyle    = "style"
	FieldCost     = "cost"
	FieldDuration = "duration"
)

// InvalidParameterError reports the first request field whose id is not in
// the catalogue.
type InvalidParameterError struct {
	Field string
	Value string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s option: %q", e.Field, e.Value)
}

// Normalize trims surrounding whitespace from every field.
func (r Request) Normalize() Request {
	r.Category = strings.TrimSpace(r.Category)
	r.Style = strings.TrimSpace(r.Style)
	r.Cost = strings.TrimSpace(r.Cost)
	r.Duration = strings.TrimSpace(r.Duration)
	r.Travelers = strings.TrimSpace(r.Travelers)
	r.Requirement = strings.TrimSpace(r.Requirement)
	return r
}

// Validate checks category, style, cost and duration in that order and
// stops at the first unknown id.
func (r *Registry) Validate(req Request) error {
	checks := []struct {
		field  string
		value  string
		exists func(string) bool
	}{
		{FieldCategory, req.Category, func(id string) bool { _, ok := r.templates[id]; return ok }},
		{FieldStyle, req.Style, func(id string) bool { _, ok := r.styles[id]; return ok }},
		{FieldCost, req.Cost, func(id string) bool { _, ok := r.costs[id]; return ok }},
		{FieldDuration, req.Duration, func(id string) bool { _, ok := r.durations[id]; return ok }},
	}
	for _, c := range checks {
		if !c.exists(c.value) {
			return &InvalidParameterError{Field: c.field, Value: c.value}
		}
	}
	return nil
}
