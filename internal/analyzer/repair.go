package analyzer

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// parseStructured extracts the JSON object from an analyzer reply and
// validates it against the question schema. Models occasionally wrap the
// object in markdown fences or append trailing commentary; repairResponse
// strips both before the parse is retried.
func parseStructured(text string, schema map[string]string) (map[string]any, error) {
	fields, err := tryParse(text)
	if err != nil {
		repaired := repairResponse(text)
		fields, err = tryParse(repaired)
		if err != nil {
			return nil, eris.Wrap(err, "analyzer: malformed reply")
		}
	}
	if err := validateSchema(fields, schema); err != nil {
		return nil, err
	}
	return fields, nil
}

func tryParse(text string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// repairResponse strips markdown fences and any prose before the first '{'
// or after the matching last '}'.
func repairResponse(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func validateSchema(fields map[string]any, schema map[string]string) error {
	for name, kind := range schema {
		v, ok := fields[name]
		if !ok {
			return eris.Errorf("analyzer: reply missing field %q", name)
		}
		switch kind {
		case "string":
			if _, ok := v.(string); !ok {
				return eris.Errorf("analyzer: field %q is not a string", name)
			}
		case "number":
			if _, ok := v.(float64); !ok {
				return eris.Errorf("analyzer: field %q is not a number", name)
			}
		case "bool":
			switch v.(type) {
			case bool, string:
			default:
				return eris.Errorf("analyzer: field %q is not a bool", name)
			}
		case "string_list":
			if _, ok := v.([]any); !ok {
				return eris.Errorf("analyzer: field %q is not a list", name)
			}
		}
	}
	return nil
}

// extractConfidence reads the conventional "confidence" field, accepting
// either a 0-1 fraction or a 0-100 percentage, clamped to [0, 100]. Replies
// without the field default to 50: uncertain, below any filter threshold.
func extractConfidence(fields map[string]any) int {
	raw, ok := fields["confidence"].(float64)
	if !ok {
		return 50
	}
	if raw <= 1.0 {
		raw *= 100
	}
	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}
	return int(raw)
}
