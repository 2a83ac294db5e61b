package model

import "strings"

const (
	LLMTokenCountTotal      = "llm.token_count.total"
	LLMTokenCountPrompt     = "llm.token_count.prompt"
	LLMTokenCountCompletion = "llm.token_count.completion"
	RetrievalDocuments      = "retrieval.documents"
)

// Attributes is the open key/value map attached to a span. Values are one of string, bool,
// int64, float64, []interface{} or a nested map[string]interface{}. Keys may be flat dotted
// keys ("llm.token_count.total") or nested maps ({"llm": {"token_count": {"total": 3}}}).
type Attributes map[string]interface{}

// Lookup resolves key as a flat key first and then as a dotted path through nested maps.
func (a Attributes) Lookup(key string) (interface{}, bool) {
	if a == nil {
		return nil, false
	}
	if value, ok := a[key]; ok {
		return value, true
	}
	var current interface{} = map[string]interface{}(a)
	for _, part := range strings.Split(key, ".") {
		nested, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = nested[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Number returns the attribute at key as a float64 when it holds a numeric value.
func (a Attributes) Number(key string) (float64, bool) {
	value, ok := a.Lookup(key)
	if !ok {
		return 0, false
	}
	return toFloat(value)
}

// Length returns the number of elements of a list-valued attribute, 0 otherwise.
func (a Attributes) Length(key string) int {
	value, ok := a.Lookup(key)
	if !ok {
		return 0
	}
	switch typed := value.(type) {
	case []interface{}:
		return len(typed)
	case []map[string]interface{}:
		return len(typed)
	case []string:
		return len(typed)
	default:
		return 0
	}
}

func asMap(value interface{}) (map[string]interface{}, bool) {
	switch typed := value.(type) {
	case map[string]interface{}:
		return typed, true
	case Attributes:
		return typed, true
	default:
		return nil, false
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	default:
		return 0, false
	}
}
