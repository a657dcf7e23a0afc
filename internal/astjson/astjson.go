// Package astjson serializes the merged Document and validates the result
// against the embedded AST schema, so every emitted or stored document is
// guaranteed to match the shape consumers were promised.
package astjson

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"mdml/internal/ast"
)

const schemaURL = "mdml://document.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Marshal renders the document as indented JSON. Optional fields are omitted
// entirely (never null), keeping output byte-comparable across runs.
func Marshal(doc *ast.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal parses serialized document JSON back into the model.
func Unmarshal(data []byte) (*ast.Document, error) {
	var doc ast.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks serialized document JSON against the embedded schema.
func Validate(data []byte) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("document violates AST schema %s: %w", ast.SchemaVersion, err)
	}
	return nil
}

// MarshalValidated marshals and schema-checks in one step.
func MarshalValidated(doc *ast.Document) ([]byte, error) {
	data, err := Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(documentSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// documentSchema is the AST schema, version ast.SchemaVersion. It pins the
// enumerated string tokens and the required members of every node shape;
// unknown extra members are allowed so older consumers keep working against
// newer documents.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["parser_version", "schema_version"],
  "properties": {
    "parser_version": {"type": "string"},
    "schema_version": {"type": "string"},
    "project": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string"},
        "version": {"type": "string"}
      }
    },
    "sources": {"type": "array", "items": {"type": "string"}},
    "models": {"type": "array", "items": {"$ref": "#/$defs/model"}},
    "interfaces": {"type": "array", "items": {"$ref": "#/$defs/model"}},
    "views": {"type": "array", "items": {"$ref": "#/$defs/model"}},
    "enums": {"type": "array", "items": {"$ref": "#/$defs/enum"}},
    "registry": {"type": "array", "items": {"$ref": "#/$defs/registryEntry"}},
    "errors": {"type": "array", "items": {"$ref": "#/$defs/diagnostic"}},
    "warnings": {"type": "array", "items": {"$ref": "#/$defs/diagnostic"}}
  },
  "$defs": {
    "location": {
      "type": "object",
      "required": ["file", "line"],
      "properties": {
        "file": {"type": "string"},
        "line": {"type": "integer", "minimum": 1},
        "column": {"type": "integer"}
      }
    },
    "attribute": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string"},
        "args": {"type": "array", "items": {"type": "string"}},
        "is_standard": {"type": "boolean"},
        "is_registered": {"type": "boolean"}
      }
    },
    "field": {
      "type": "object",
      "required": ["name", "kind", "loc"],
      "properties": {
        "name": {"type": "string"},
        "label": {"type": "string"},
        "type": {"type": "string"},
        "type_params": {"type": "array", "items": {"type": "string"}},
        "nullable": {"type": "boolean"},
        "array": {"type": "boolean"},
        "array_item_nullable": {"type": "boolean"},
        "kind": {"enum": ["stored", "computed", "lookup", "rollup"]},
        "default": {"type": "string"},
        "attributes": {"type": "array", "items": {"$ref": "#/$defs/attribute"}},
        "description": {"type": "string"},
        "comment": {"type": "string"},
        "lookup": {
          "type": "object",
          "required": ["path"],
          "properties": {"path": {"type": "string"}}
        },
        "rollup": {
          "type": "object",
          "required": ["target", "fk", "aggregate"],
          "properties": {
            "target": {"type": "string"},
            "fk": {"type": "string"},
            "aggregate": {"type": "string"},
            "field": {"type": "string"},
            "where": {"type": "string"}
          }
        },
        "computed": {
          "type": "object",
          "required": ["expression"],
          "properties": {"expression": {"type": "string"}}
        },
        "fields": {"type": "array", "items": {"$ref": "#/$defs/field"}},
        "loc": {"$ref": "#/$defs/location"}
      }
    },
    "model": {
      "type": "object",
      "required": ["name", "node_type", "loc"],
      "properties": {
        "name": {"type": "string"},
        "node_type": {"enum": ["model", "interface", "view"]},
        "inherits": {"type": "array", "items": {"type": "string"}},
        "attributes": {"type": "array", "items": {"$ref": "#/$defs/attribute"}},
        "fields": {"type": "array", "items": {"$ref": "#/$defs/field"}},
        "loc": {"$ref": "#/$defs/location"}
      }
    },
    "enum": {
      "type": "object",
      "required": ["name", "loc"],
      "properties": {
        "name": {"type": "string"},
        "inherits": {"type": "string"},
        "entries": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name"],
            "properties": {
              "name": {"type": "string"},
              "description": {"type": "string"},
              "type": {"type": "string"},
              "value": {"type": "string"}
            }
          }
        }
      }
    },
    "registryEntry": {
      "type": "object",
      "required": ["name", "loc"],
      "properties": {
        "name": {"type": "string"},
        "targets": {"type": "array", "items": {"type": "string"}},
        "value_type": {"type": "string"},
        "required": {"type": "boolean"}
      }
    },
    "diagnostic": {
      "type": "object",
      "required": ["code", "severity", "message"],
      "properties": {
        "code": {"type": "string", "pattern": "^[EW][0-9]{3}$"},
        "severity": {"enum": ["error", "warning"]},
        "file": {"type": "string"},
        "line": {"type": "integer"},
        "column": {"type": "integer"},
        "message": {"type": "string"}
      }
    }
  }
}`
