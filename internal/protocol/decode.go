package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "schema://" + SchemaName + ".json"

// compiledSchema compiles SchemaDefinition once per process.
var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	// The compiler wants plain decoded JSON, not Go maps with typed slices.
	def, err := json.Marshal(SchemaDefinition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(schemaURL)
})

// Decode parses a raw backend reply and checks it against SchemaDefinition,
// which carries every rule of the contract including the status invariants.
func Decode(raw []byte) (*StructuredResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty payload")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode structured result: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", SchemaName, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("structured result violates schema: %w", err)
	}

	var r StructuredResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode structured result: %w", err)
	}
	return &r, nil
}
