package persistence

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "stations.schema.json"

// stationsSchema describes the current file shape. Extra keys are allowed so
// files written by newer versions still validate.
const stationsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["Stations"],
  "properties": {
    "Stations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["Location"],
        "properties": {
          "Name": {"type": "string", "minLength": 1},
          "Location": {
            "type": "object",
            "required": ["World", "Dimension", "X", "Y", "Z"],
            "properties": {
              "World": {"type": "string", "minLength": 1},
              "Dimension": {"type": "string"},
              "X": {"type": "number"},
              "Y": {"type": "number"},
              "Z": {"type": "number"}
            }
          },
          "Discoverers": {
            "type": "array",
            "items": {"type": "string", "minLength": 1},
            "uniqueItems": true
          }
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, stationsSchema)
	})
	return schema, schemaErr
}

// Validate checks a station document against the file schema.
func Validate(r io.Reader) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("invalid station file: %w", err)
	}
	return nil
}
