package envctx

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// initialContextSchema constrains the shape of a caller-supplied initial
// context document (spec §6's "Programmatic entry ... an optional initial
// context"): a flat object whose values are scalars or arrays of scalars.
// Arrays seed a key's whole stack (oldest to newest); scalars seed a
// single binding.
const initialContextSchema = `{
	"type": "object",
	"additionalProperties": {
		"anyOf": [
			{"type": "string"},
			{"type": "number"},
			{"type": "boolean"},
			{"type": "array", "items": {
				"anyOf": [
					{"type": "string"},
					{"type": "number"},
					{"type": "boolean"}
				]
			}}
		]
	}
}`

var compiledInitialContextSchema *jsonschema.Schema

func initialContextSchemaCompiled() (*jsonschema.Schema, error) {
	if compiledInitialContextSchema != nil {
		return compiledInitialContextSchema, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("initial-context.json", strings.NewReader(initialContextSchema)); err != nil {
		return nil, fmt.Errorf("arcana: compiling initial context schema: %w", err)
	}
	schema, err := c.Compile("initial-context.json")
	if err != nil {
		return nil, fmt.Errorf("arcana: compiling initial context schema: %w", err)
	}
	compiledInitialContextSchema = schema
	return schema, nil
}

// FromJSON validates data against the initial-context schema and seeds a
// fresh Context from it. owningPath anchors any of the bound values that
// are later used as paths (spec §4.2's Variable.owning_path). Validation
// failures are returned distinct from (and before) any template parse
// error, so a malformed embedder input never masquerades as a template
// bug.
func FromJSON(data []byte, owningPath string) (*Context, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("arcana: invalid initial context JSON: %w", err)
	}

	schema, err := initialContextSchemaCompiled()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("arcana: initial context failed validation: %w", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arcana: initial context must be a JSON object")
	}

	ctx := New()
	for key, value := range obj {
		if items, isArray := value.([]any); isArray {
			for _, item := range items {
				ctx.AddVariable(key, owningPath, scalarToText(item))
			}
			continue
		}
		ctx.AddVariable(key, owningPath, scalarToText(value))
	}
	return ctx, nil
}

func scalarToText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
