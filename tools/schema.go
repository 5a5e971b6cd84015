package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateParameters compiles a standalone JSON Schema document, the shape
// every tool declaration's `parameters` field must be. It is used both to
// vet the registry's own built-in schemas at process start and, by the
// request translator, to vet a client-declared function tool's schema
// before it is forwarded upstream.
func ValidateParameters(name string, schema []byte) error {
	if len(schema) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return fmt.Errorf("tools: %s: invalid schema JSON: %w", name, err)
	}
	url := "mem://tools/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return fmt.Errorf("tools: %s: invalid schema: %w", name, err)
	}
	if _, err := c.Compile(url); err != nil {
		return fmt.Errorf("tools: %s: schema does not compile: %w", name, err)
	}
	return nil
}
