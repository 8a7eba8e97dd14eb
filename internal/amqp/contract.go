package amqp

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemasFS embed.FS

const backfillRequestedSchema = "schemas/backfill_requested.v1.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func backfillSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := schemasFS.ReadFile(backfillRequestedSchema)
		if err != nil {
			schemaErr = fmt.Errorf("read schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(backfillRequestedSchema, bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(backfillRequestedSchema)
	})
	return compiledSchema, schemaErr
}

// ValidateBackfillRequested checks a raw message body against the contract.
func ValidateBackfillRequested(body []byte) error {
	schema, err := backfillSchema()
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("message body is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
