// Package prompt turns catalogue templates and a validated request into the
// concrete instructions handed to each pipeline stage.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/N9work/CrewAi-Project/internal/catalog"
)

// Variable names available to every template.
const (
	VarPlace       = "place"
	VarDestination = "destination"
	VarTravelers   = "travelers"
	VarRequirement = "requirement"
	VarStyle       = "style"
	VarCost        = "cost"
	VarDuration    = "duration"
)

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// FormatError reports a placeholder with no value in the variable set.
type FormatError struct {
	Key      string
	Template string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("template references unknown placeholder {%s}", e.Key)
}

// Format substitutes {key} slots in tpl. Values are inserted verbatim and
// never rescanned, so user text containing braces is left untouched.
func Format(tpl string, vars map[string]string) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(tpl, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := vars[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		return v
	})
	if missing != "" {
		return "", &FormatError{Key: missing, Template: tpl}
	}
	return out, nil
}

// Compiled is the text for both stages of one request. Downstream code
// treats every field as an opaque string.
type Compiled struct {
	ResearchGoal           string
	ResearchDescription    string
	ResearchExpectedOutput string
	WriterGoal             string
	WriterDescription      string
	WriterExpectedOutput   string
	SearchQuery            string
	Destination            string
}

// Compiler resolves templates against a registry passed in at construction.
type Compiler struct {
	reg *catalog.Registry
}

// NewCompiler returns a compiler bound to reg.
func NewCompiler(reg *catalog.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile builds the stage instructions for req. The request is expected to
// have passed Registry.Validate; an unknown category still fails cleanly.
func (c *Compiler) Compile(req catalog.Request) (Compiled, error) {
	tpl, ok := c.reg.Template(req.Category)
	if !ok {
		return Compiled{}, &catalog.InvalidParameterError{Field: catalog.FieldCategory, Value: req.Category}
	}
	vars := map[string]string{
		VarPlace:       tpl.Place,
		VarTravelers:   req.Travelers,
		VarRequirement: req.Requirement,
		VarStyle:       req.Style,
		VarCost:        req.Cost,
		VarDuration:    req.Duration,
	}
	destination, err := Format(tpl.Destination, vars)
	if err != nil {
		return Compiled{}, err
	}
	vars[VarDestination] = destination

	f := formatter{vars: vars}
	goal := f.format(tpl.Goal) + f.format(tpl.Travelers) + f.format(tpl.Requirement)
	if !tpl.SkipModifiers {
		goal += c.modifierText(req)
	}

	p := c.reg.Prompts()
	out := Compiled{
		ResearchGoal:           goal,
		ResearchDescription:    f.format(p.ResearchTask.Description),
		ResearchExpectedOutput: f.format(p.ResearchTask.ExpectedOutput),
		WriterGoal:             f.format(p.Writer.Goal),
		WriterDescription:      f.format(tpl.Description),
		WriterExpectedOutput:   f.format(tpl.ExpectedOutput),
		SearchQuery:            strings.TrimSpace(f.format(p.SearchQuery)),
		Destination:            destination,
	}
	if f.err != nil {
		return Compiled{}, f.err
	}
	return out, nil
}

func (c *Compiler) modifierText(req catalog.Request) string {
	var parts []string
	if m, ok := c.reg.Style(req.Style); ok {
		parts = append(parts, m.Description)
	}
	if m, ok := c.reg.Cost(req.Cost); ok {
		parts = append(parts, m.Description)
	}
	if m, ok := c.reg.Duration(req.Duration); ok {
		parts = append(parts, m.Description)
	}
	return strings.Join(parts, " ")
}

// formatter keeps the first substitution error so Compile reads linearly.
type formatter struct {
	vars map[string]string
	err  error
}

func (f *formatter) format(tpl string) string {
	if f.err != nil {
		return ""
	}
	out, err := Format(tpl, f.vars)
	if err != nil {
		f.err = err
		return ""
	}
	return out
}
