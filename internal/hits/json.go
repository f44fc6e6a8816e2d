package hits

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const documentSchemaURL = "schema://taxassign/hits.json"

// scalar accepts the numeric fields either as JSON numbers or as the text
// printed by the search tool.
var scalar = map[string]any{"type": []any{"string", "number"}}

// documentSchema describes a JSON hit document:
//
//	{"queries": [{"id": "q1", "hits": [{"sseqid": "gi|123|", "pident": 98.5, ...}]}]}
var documentSchema = map[string]any{
	"type":     "object",
	"required": []any{"queries"},
	"properties": map[string]any{
		"queries": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "hits"},
				"properties": map[string]any{
					"id": map[string]any{"type": "string", "minLength": 1},
					"hits": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"sseqid", "evalue"},
							"anyOf": []any{
								map[string]any{"required": []any{"pident"}},
								map[string]any{"required": []any{"nident", "length"}},
							},
							"properties": map[string]any{
								"sseqid":  map[string]any{"type": []any{"string", "integer"}},
								"pident":  scalar,
								"nident":  scalar,
								"length":  scalar,
								"qstart":  scalar,
								"qend":    scalar,
								"qlen":    scalar,
								"qcovs":   scalar,
								"qcovhsp": scalar,
								"evalue":  scalar,
							},
						},
					},
				},
			},
		},
	},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// compiledSchema compiles documentSchema once per process.
func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler expects a parsed JSON value, so round-trip the Go
		// literal through its JSON encoding.
		b, err := json.Marshal(documentSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		def, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
		if err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(documentSchemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(documentSchemaURL)
	})
	return compiled, compileErr
}

// ReadJSON reads a JSON hit document, validates it against the document
// schema and returns its queries in document order.
func ReadJSON(r io.Reader) ([]Query, error) {
	doc, err := jsonschema.UnmarshalJSON(r)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile hit document schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("hit document validation failed: %w", err)
	}

	// The schema guarantees the shapes asserted below.
	root := doc.(map[string]any)
	var queries []Query
	for _, q := range root["queries"].([]any) {
		qm := q.(map[string]any)
		query := Query{ID: qm["id"].(string)}
		for _, h := range qm["hits"].([]any) {
			hm := h.(map[string]any)
			raw := RawHit{QueryID: query.ID}
			for col, v := range hm {
				if set, ok := columnSetters[col]; ok && col != "qseqid" {
					set(&raw, fmt.Sprint(v))
				}
			}
			query.Hits = append(query.Hits, raw)
		}
		queries = append(queries, query)
	}
	return queries, nil
}
