package gateway

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const querySchemaJSON = `{
	"type": "object",
	"properties": {
		"question": {"type": "string"},
		"include_sources": {"type": "boolean"}
	},
	"required": ["question"]
}`

var querySchema = mustSchema(querySchemaJSON)

func mustSchema(def string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(def))
	if err != nil {
		panic(fmt.Sprintf("gateway: invalid schema: %v", err))
	}
	return schema
}

// validateQuery checks raw against the query body schema.
func validateQuery(raw []byte) error {
	result, err := querySchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
