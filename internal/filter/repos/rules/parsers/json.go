package parsers

import (
	"encoding/json"
	"fmt"
	"io"

	logpkg "github.com/haukened/rr-block/internal/filter/common/log"
)

// ParseJSONList reads a document shaped {"<field>": ["a", "b", ...]} and
// returns the string entries of field.
//
// A document that is not a JSON object is an error. A missing field, a field
// that is not an array, and non-string elements all degrade to fewer (or zero)
// entries without error.
func ParseJSONList(r io.Reader, field, source string, logger logpkg.Logger) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_json_list_error")
		return nil, fmt.Errorf("decode %s list: %w", field, err)
	}

	raw, ok := doc[field]
	if !ok {
		logger.Debug(map[string]any{"source": source, "field": field}, "json_field_missing")
		return []string{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Debug(map[string]any{"source": source, "field": field}, "json_field_not_array")
		return []string{}, nil
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			logger.Debug(map[string]any{"source": source, "field": field, "index": i}, "json_skip_non_string")
			continue
		}
		out = append(out, s)
	}
	logger.Debug(map[string]any{"source": source, "field": field, "count": len(out)}, "parse_json_list_done")
	return out, nil
}
