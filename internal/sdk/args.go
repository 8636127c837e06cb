package sdk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value builds a JSON-Cadence value of the given type.
func Value(typ string, value any) json.RawMessage {
	raw, _ := json.Marshal(struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	}{typ, value})
	return raw
}

// ParseArgs converts "Type:value" strings into JSON-Cadence values, for
// example "UFix64:1.0" or "Address:0x01". Values are passed as strings,
// which JSON-Cadence accepts for every simple type except Bool.
func ParseArgs(specs []string) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(specs))
	for _, spec := range specs {
		typ, value, ok := strings.Cut(spec, ":")
		if !ok || typ == "" {
			return nil, fmt.Errorf("argument %q must be Type:value", spec)
		}
		if typ == "Bool" {
			switch value {
			case "true":
				out = append(out, Value(typ, true))
			case "false":
				out = append(out, Value(typ, false))
			default:
				return nil, fmt.Errorf("argument %q: Bool must be true or false", spec)
			}
			continue
		}
		out = append(out, Value(typ, value))
	}
	return out, nil
}
