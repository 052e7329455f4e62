package reconcile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/template"
)

// ValidateJSONSchema checks doc against the JSON Schema generated for
// schema. It complements Validate for tools that consume the JSON Schema;
// each leaf failure becomes an error diagnostic.
func ValidateJSONSchema(schema *core.Schema, doc *content.Document) ([]core.Diagnostic, error) {
	encoded, err := template.JSONSchema(schema, "")
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(encoded)); err != nil {
		return nil, fmt.Errorf("load json schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile json schema: %w", err)
	}

	err = compiled.Validate(doc.Value().Interface())
	if err == nil {
		return nil, nil
	}
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, err
	}

	var diags []core.Diagnostic
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			kind := core.TypeMismatch
			if strings.HasPrefix(node.Message, "missing properties") {
				kind = core.MissingField
			}
			diags = append(diags, core.Diagnostic{
				Kind:     kind,
				Path:     instancePath(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
				Severity: core.SeverityError,
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(validationErr)
	return diags, nil
}

// instancePath turns a JSON pointer ("/blocks/intro") into a dotted path.
func instancePath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, core.PathSeparator)
}
