package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject returns the outermost {...} span of raw model output,
// dropping code fences or chatter around it.
func ExtractJSONObject(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no json object in model output")
	}
	return clean[start : end+1], nil
}

// DecodeJSONObject extracts the JSON object from raw and decodes it into a generic map.
func DecodeJSONObject(raw string) (map[string]any, error) {
	clean, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return out, nil
}
