package model

import (
	"fmt"
	"sync"
)

// ComputedAttribute names a value derived by the index rather than supplied at ingestion.
type ComputedAttribute int

const (
	LatencyMs ComputedAttribute = iota
	ErrorCount
	CumulativeErrorCount
	CumulativeLLMTokenCountTotal
	CumulativeLLMTokenCountPrompt
	CumulativeLLMTokenCountCompletion
	numComputedAttributes
)

var computedAttributeNames = [numComputedAttributes]string{
	LatencyMs:                         "latency_ms",
	ErrorCount:                        "error_count",
	CumulativeErrorCount:              "cumulative_error_count",
	CumulativeLLMTokenCountTotal:      "cumulative_token_count.total",
	CumulativeLLMTokenCountPrompt:     "cumulative_token_count.prompt",
	CumulativeLLMTokenCountCompletion: "cumulative_token_count.completion",
}

var computedAttributesByName = func() map[string]ComputedAttribute {
	byName := make(map[string]ComputedAttribute, numComputedAttributes)
	for attr, name := range computedAttributeNames {
		byName[name] = ComputedAttribute(attr)
	}
	return byName
}()

func (c ComputedAttribute) String() string {
	if !c.valid() {
		return fmt.Sprintf("ComputedAttribute(%d)", int(c))
	}
	return computedAttributeNames[c]
}

func (c ComputedAttribute) valid() bool {
	return c >= 0 && c < numComputedAttributes
}

// ParseComputedAttribute reports whether name is one of the reserved computed keys.
func ParseComputedAttribute(name string) (ComputedAttribute, bool) {
	attr, ok := computedAttributesByName[name]
	return attr, ok
}

// SpanRecord is the index's handle on an ingested span. Two records are the same node only
// if they are the same pointer.
type SpanRecord struct {
	Span Span

	mu       sync.RWMutex
	computed [numComputedAttributes]float64
	present  [numComputedAttributes]bool
}

func NewSpanRecord(span Span) *SpanRecord {
	return &SpanRecord{Span: span}
}

// Get returns the computed attribute named key if there is one, otherwise the span's own
// attribute.
func (r *SpanRecord) Get(key string) (interface{}, bool) {
	if attr, ok := ParseComputedAttribute(key); ok {
		value, present := r.Computed(attr)
		if !present {
			return nil, false
		}
		return value, true
	}
	return r.Span.Attributes.Lookup(key)
}

func (r *SpanRecord) Computed(attr ComputedAttribute) (float64, bool) {
	if !attr.valid() {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.computed[attr], r.present[attr]
}

// Set writes a computed attribute. Passing anything outside the ComputedAttribute constants
// is a programming error and panics.
func (r *SpanRecord) Set(attr ComputedAttribute, value float64) {
	if !attr.valid() {
		panic(fmt.Sprintf("span record: %s is not a computed attribute", attr))
	}
	r.mu.Lock()
	r.computed[attr] = value
	r.present[attr] = true
	r.mu.Unlock()
}

// AddComputed increments a computed attribute, treating an unset value as zero.
func (r *SpanRecord) AddComputed(attr ComputedAttribute, delta float64) {
	if !attr.valid() {
		panic(fmt.Sprintf("span record: %s is not a computed attribute", attr))
	}
	r.mu.Lock()
	r.computed[attr] += delta
	r.present[attr] = true
	r.mu.Unlock()
}

// ComputedValues returns every computed attribute that has been set, keyed by name.
func (r *SpanRecord) ComputedValues() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make(map[string]float64, numComputedAttributes)
	for attr, present := range r.present {
		if present {
			values[computedAttributeNames[attr]] = r.computed[attr]
		}
	}
	return values
}

func (r *SpanRecord) IsRoot() bool {
	return r.Span.IsRoot()
}
