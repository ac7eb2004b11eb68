// Package proofschema validates proof envelopes against the published
// JSON Schema before they are decoded, so structurally broken envelopes
// are rejected with a precise reason instead of a hash mismatch.
package proofschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is the proof envelope schema, version 1.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "mmrd/proof-v1.schema.json",
  "title": "Inclusion proof envelope",
  "type": "object",
  "required": ["position", "local_path", "left_peaks", "right_peaks", "root", "mmr_size", "algorithm"],
  "additionalProperties": false,
  "properties": {
    "position": {"type": "integer", "minimum": 1},
    "local_path": {"$ref": "#/$defs/digestList"},
    "left_peaks": {"$ref": "#/$defs/digestList"},
    "right_peaks": {"$ref": "#/$defs/digestList"},
    "root": {"$ref": "#/$defs/digest"},
    "mmr_size": {"type": "integer", "minimum": 1},
    "algorithm": {"type": "string", "enum": ["blake2b-256", "sha3-256", "blake3"]}
  },
  "$defs": {
    "digest": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "digestList": {"type": "array", "items": {"$ref": "#/$defs/digest"}}
  }
}`

var compiled = jsonschema.MustCompileString("mmrd/proof-v1.schema.json", Schema)

// Validate checks an envelope against the schema.
func Validate(envelope []byte) error {
	var instance any
	decoder := json.NewDecoder(bytes.NewReader(envelope))
	decoder.UseNumber()
	if err := decoder.Decode(&instance); err != nil {
		return fmt.Errorf("proofschema: not valid JSON: %w", err)
	}

	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("proofschema: %w", err)
	}
	return nil
}
