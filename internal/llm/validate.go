package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema. Document is the source map, which is also
// shown to the model in the prompt.
type Schema struct {
	Document map[string]any
	compiled *jsonschema.Schema
}

// CompileSchema compiles doc for repeated validation.
func CompileSchema(name string, doc map[string]any) (*Schema, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{Document: doc, compiled: compiled}, nil
}

// Validate checks the JSON document in data against the schema.
func (s *Schema) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var (
	receiptOnce   sync.Once
	receiptSchema *Schema
	receiptErr    error
)

// ReceiptSchema returns the receipt schema, compiled on first use.
func ReceiptSchema() (*Schema, error) {
	receiptOnce.Do(func() {
		receiptSchema, receiptErr = CompileSchema("receipt.json", BuildReceiptJSONSchema())
	})
	return receiptSchema, receiptErr
}
