package payload

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// compiledSchema compiles the embedded payload schema once.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(schemaJSON, &doc); err != nil {
			schemaErr = fmt.Errorf("payload: unmarshal schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("rqcbridge://schema/delivery-payload", doc); err != nil {
			schemaErr = fmt.Errorf("payload: add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile("rqcbridge://schema/delivery-payload")
	})
	return schema, schemaErr
}

// ValidateSchema checks a built payload against the wire schema. A failure
// indicates a protocol mismatch between this adapter and the grading
// service; callers surface it as a diagnostic rather than aborting delivery.
func ValidateSchema(p *DeliveryPayload) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("payload: marshal for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("payload: unmarshal for validation: %w", err)
	}

	return sch.Validate(doc)
}
