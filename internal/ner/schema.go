package ner

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema constrains the inference response before we trust it: an
// array of tokens, or an array of token arrays, each token carrying a word
// and some spelling of its entity label.
const responseSchema = `{
	"type": "array",
	"items": {
		"anyOf": [
			{"$ref": "#/$defs/token"},
			{"type": "array", "items": {"$ref": "#/$defs/token"}}
		]
	},
	"$defs": {
		"token": {
			"type": "object",
			"required": ["word"],
			"properties": {
				"word":         {"type": "string"},
				"entity_group": {"type": "string"},
				"entity":       {"type": "string"},
				"score":        {"type": "number"}
			}
		}
	}
}`

var compiledResponseSchema = mustCompile(responseSchema)

func mustCompile(src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", bytes.NewReader([]byte(src))); err != nil {
		panic(err)
	}
	return compiler.MustCompile("response.json")
}

func validateResponse(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := compiledResponseSchema.Validate(v); err != nil {
		return fmt.Errorf("does not match schema: %w", err)
	}
	return nil
}
