package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog_schema.json
var catalogSchemaJSON string

var (
	compileOnce   sync.Once
	catalogSchema *jsonschema.Schema
	compileErr    error
)

// Schema returns the compiled JSON Schema for catalogue documents.
func Schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("catalog_schema.json", strings.NewReader(catalogSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("catalog_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile catalog schema: %w", err)
			return
		}
		catalogSchema = schema
	})
	return catalogSchema, compileErr
}

// validateDocument checks the YAML structure against the catalogue schema
// before it is decoded into typed records.
func validateDocument(data []byte) error {
	schema, err := Schema()
	if err != nil {
		return err
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	// Round-trip through JSON so the validator sees JSON value types.
	b, err := json.Marshal(jsonCompatible(raw))
	if err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("catalog does not match schema: %w", err)
	}
	return nil
}

// jsonCompatible rewrites YAML maps with non-string keys (such as an
// unquoted duration id 3) into string-keyed maps.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonCompatible(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonCompatible(val)
		}
		return out
	default:
		return v
	}
}
