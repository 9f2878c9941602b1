package config

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// definitionSchemaSource is the structural schema for component definition
// documents. Semantic rules (known kinds, argument coercion) are enforced by
// the engine; the schema catches shape errors before any tree is built.
const definitionSchemaSource = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://k8deployer.dev/schemas/component-definition",
  "$ref": "#/$defs/component",
  "$defs": {
    "component": {
      "type": "object",
      "required": ["name", "kind"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "kind": {"type": "string", "minLength": 1},
        "labels": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        },
        "args": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        },
        "defaultArgs": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        },
        "depends": {
          "type": "array",
          "items": {"type": "string", "minLength": 1}
        },
        "parentRelation": {
          "type": "string",
          "enum": ["before", "after", "independent"]
        },
        "children": {
          "type": "array",
          "items": {"$ref": "#/$defs/component"}
        }
      },
      "additionalProperties": false
    }
  }
}`

// definitionSchema is compiled once at package load; the schema source is a
// constant, so a compile failure is a programming error.
var definitionSchema = jsonschema.MustCompileString(
	"component-definition.schema.json", definitionSchemaSource)
