package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/grovetools/studio/errors"
	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[Kind]*validator.Schema
)

// compileSchemas reflects a JSON Schema from every registered payload
// struct and compiles it once. Payloads reject unknown properties, so a
// typo'd field fails validation instead of being silently dropped.
func compileSchemas() {
	reflector := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}

	compiler := validator.NewCompiler()
	urls := make(map[Kind]string, len(payloadFactories))

	for kind, factory := range payloadFactories {
		schema := reflector.Reflect(factory())
		data, err := json.Marshal(schema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema for %s: %w", kind, err)
			return
		}
		url := fmt.Sprintf("studio://actions/%s.json", strings.ToLower(string(kind)))
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			schemaErr = fmt.Errorf("add schema resource for %s: %w", kind, err)
			return
		}
		urls[kind] = url
	}

	schemas = make(map[Kind]*validator.Schema, len(urls))
	for kind, url := range urls {
		compiled, err := compiler.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("compile schema for %s: %w", kind, err)
			return
		}
		schemas[kind] = compiled
	}
}

// validatePayload checks a raw payload map against the schema for its kind.
func validatePayload(kind Kind, payload map[string]interface{}) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return errors.Wrap(schemaErr, errors.ErrCodeInternal, "action schemas failed to compile")
	}

	schema, ok := schemas[kind]
	if !ok {
		return errors.InvalidAction(string(kind), "no schema registered")
	}

	// Round-trip through JSON so numbers and nested values take the plain
	// shapes the validator expects.
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.InvalidAction(string(kind), err.Error())
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return errors.InvalidAction(string(kind), err.Error())
	}

	if err := schema.Validate(generic); err != nil {
		if ve, ok := err.(*validator.ValidationError); ok {
			var msgs []string
			collectValidationErrors(ve, &msgs)
			return errors.InvalidAction(string(kind), strings.Join(msgs, "; "))
		}
		return errors.InvalidAction(string(kind), err.Error())
	}
	return nil
}

func collectValidationErrors(err *validator.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("%s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectValidationErrors(cause, messages)
	}
	if len(*messages) == 0 {
		*messages = append(*messages, err.Message)
	}
}
