package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type document struct {
	Prompts struct {
		Researcher   rolePromptDoc `yaml:"researcher"`
		Writer       rolePromptDoc `yaml:"writer"`
		ResearchTask struct {
			Description    string `yaml:"description"`
			ExpectedOutput string `yaml:"expected_output"`
		} `yaml:"research_task"`
		SearchQuery string `yaml:"search_query"`
	} `yaml:"prompts"`
	Defaults   templateDoc            `yaml:"defaults"`
	Categories map[string]templateDoc `yaml:"categories"`
	Styles     map[string]string      `yaml:"styles"`
	Costs      map[string]string      `yaml:"costs"`
	Durations  map[string]string      `yaml:"durations"`
}

type rolePromptDoc struct {
	Role      string `yaml:"role"`
	Backstory string `yaml:"backstory"`
	Goal      string `yaml:"goal"`
}

type templateDoc struct {
	Place          string `yaml:"place"`
	Destination    string `yaml:"destination"`
	Goal           string `yaml:"goal"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
	Travelers      string `yaml:"travelers"`
	Requirement    string `yaml:"requirement"`
	SkipModifiers  bool   `yaml:"skip_modifiers"`
}

// Default returns the registry built from the embedded catalogue.
func Default() (*Registry, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalogue file. An empty path selects the embedded default.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a Registry from YAML. Category entries inherit every empty
// field from the defaults block.
func Parse(data []byte) (*Registry, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("catalog defines no categories")
	}

	reg := &Registry{
		templates: make(map[string]Template, len(doc.Categories)),
		styles:    modifiers(doc.Styles),
		costs:     modifiers(doc.Costs),
		durations: modifiers(doc.Durations),
		prompts: Prompts{
			Researcher: RolePrompt(doc.Prompts.Researcher),
			Writer:     RolePrompt(doc.Prompts.Writer),
			ResearchTask: TaskPrompt{
				Description:    doc.Prompts.ResearchTask.Description,
				ExpectedOutput: doc.Prompts.ResearchTask.ExpectedOutput,
			},
			SearchQuery: doc.Prompts.SearchQuery,
		},
	}
	for id, raw := range doc.Categories {
		tpl := Template{
			ID:             id,
			Place:          firstNonEmpty(raw.Place, id),
			Destination:    firstNonEmpty(raw.Destination, doc.Defaults.Destination),
			Goal:           firstNonEmpty(raw.Goal, doc.Defaults.Goal),
			Description:    firstNonEmpty(raw.Description, doc.Defaults.Description),
			ExpectedOutput: firstNonEmpty(raw.ExpectedOutput, doc.Defaults.ExpectedOutput),
			Travelers:      firstNonEmpty(raw.Travelers, doc.Defaults.Travelers, "Number of travelers: {travelers}\n"),
			Requirement:    firstNonEmpty(raw.Requirement, doc.Defaults.Requirement, "Additional requirements: {requirement}\n"),
			SkipModifiers:  raw.SkipModifiers || doc.Defaults.SkipModifiers,
		}
		if err := tpl.validate(); err != nil {
			return nil, err
		}
		reg.templates[id] = tpl
	}
	if err := reg.prompts.validate(); err != nil {
		return nil, err
	}
	for field, m := range map[string]map[string]Modifier{"styles": reg.styles, "costs": reg.costs, "durations": reg.durations} {
		if len(m) == 0 {
			return nil, fmt.Errorf("catalog defines no %s", field)
		}
	}
	return reg, nil
}

func (t Template) validate() error {
	switch {
	case strings.TrimSpace(t.Goal) == "":
		return fmt.Errorf("category %s: goal is required", t.ID)
	case strings.TrimSpace(t.Description) == "":
		return fmt.Errorf("category %s: description is required", t.ID)
	case strings.TrimSpace(t.ExpectedOutput) == "":
		return fmt.Errorf("category %s: expected_output is required", t.ID)
	case strings.TrimSpace(t.Destination) == "":
		return fmt.Errorf("category %s: destination is required", t.ID)
	}
	return nil
}

func (p Prompts) validate() error {
	if p.Researcher.Role == "" || p.Writer.Role == "" {
		return fmt.Errorf("prompts: researcher and writer roles are required")
	}
	if p.ResearchTask.Description == "" || p.ResearchTask.ExpectedOutput == "" {
		return fmt.Errorf("prompts: research_task needs description and expected_output")
	}
	if p.SearchQuery == "" {
		return fmt.Errorf("prompts: search_query is required")
	}
	return nil
}

func modifiers(in map[string]string) map[string]Modifier {
	out := make(map[string]Modifier, len(in))
	for id, desc := range in {
		out[id] = Modifier{ID: id, Description: strings.TrimSpace(desc)}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
