// Package utils holds small helpers for taming LLM output: lenient JSON
// parsing and markdown cleanup.
package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON fixes common JSON defects in model output: single quotes,
// unquoted keys, trailing commas, unclosed brackets, stray code fences.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON repair failed: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Hjson (comments, unquoted keys/strings, optional commas)
// and returns standard JSON. The most lenient strategy SmartParse tries.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("hjson parse error: %v", err)
	}
	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("json marshal error: %v", err)
	}
	return string(jsonBytes), nil
}

// SmartParse extracts structured data from model output, trying strict JSON
// first, then repair, then Hjson. Returns the normalized JSON that parsed.
func SmartParse(input string, schema interface{}) (string, error) {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return input, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	if normalized, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(normalized), schema); err == nil {
			return normalized, nil
		}
	}

	return "", fmt.Errorf("all parsing strategies failed for model output")
}
