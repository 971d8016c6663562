package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	validatorOnce sync.Once
	validatorErr  error
	configSchema  *validator.Schema
)

// compileSchema reflects the JSON Schema from the Config struct and
// compiles it once per process.
func compileSchema() {
	reflector := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}

	schema := reflector.Reflect(&Config{})
	// Extensions carry tool-specific sections the core cannot know about.
	schema.AdditionalProperties = nil

	data, err := json.Marshal(schema)
	if err != nil {
		validatorErr = fmt.Errorf("marshal config schema: %w", err)
		return
	}

	compiler := validator.NewCompiler()
	if err := compiler.AddResource("studio://config.json", bytes.NewReader(data)); err != nil {
		validatorErr = fmt.Errorf("add config schema resource: %w", err)
		return
	}
	configSchema, err = compiler.Compile("studio://config.json")
	if err != nil {
		validatorErr = fmt.Errorf("compile config schema: %w", err)
	}
}

// Validate checks a loaded configuration against the reflected JSON
// Schema. It reports every violation, not just the first.
func Validate(cfg *Config) error {
	validatorOnce.Do(compileSchema)
	if validatorErr != nil {
		return validatorErr
	}

	jsonData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(jsonData, &generic); err != nil {
		return fmt.Errorf("failed to unmarshal config for validation: %w", err)
	}

	if err := configSchema.Validate(generic); err != nil {
		if ve, ok := err.(*validator.ValidationError); ok {
			var msgs []string
			collectSchemaErrors(ve, &msgs)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(msgs, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func collectSchemaErrors(err *validator.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, messages)
	}
	if len(*messages) == 0 {
		*messages = append(*messages, "- "+err.Message)
	}
}
