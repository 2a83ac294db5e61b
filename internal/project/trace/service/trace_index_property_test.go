package service

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/Avi18971911/Beacon/internal/project/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type generatedTree struct {
	spans   []model.Span
	parents []int // -1 for the root
}

func drawTree(rt *rapid.T) generatedTree {
	n := rapid.IntRange(1, 40).Draw(rt, "numSpans")
	tree := generatedTree{
		spans:   make([]model.Span, n),
		parents: make([]int, n),
	}
	for i := 0; i < n; i++ {
		parent := -1
		parentID := ""
		if i > 0 {
			parent = rapid.IntRange(0, i-1).Draw(rt, fmt.Sprintf("parent%d", i))
			parentID = fmt.Sprintf("span-%d", parent)
		}
		tree.parents[i] = parent
		offset := time.Duration(rapid.IntRange(0, 600).Draw(rt, fmt.Sprintf("offset%d", i))) * time.Second
		span := makeSpan(fmt.Sprintf("span-%d", i), "trace", parentID, offset, time.Millisecond)
		if rapid.Bool().Draw(rt, fmt.Sprintf("error%d", i)) {
			span.Status.Code = model.ERROR
		}
		span.Attributes = model.Attributes{
			model.LLMTokenCountTotal: int64(rapid.IntRange(0, 100).Draw(rt, fmt.Sprintf("tokens%d", i))),
		}
		tree.spans[i] = span
	}
	return tree
}

func subtreeSum(tree generatedTree, node int, value func(model.Span) float64) float64 {
	total := value(tree.spans[node])
	for i, parent := range tree.parents {
		if parent == node {
			total += subtreeSum(tree, i, value)
		}
	}
	return total
}

func TestProperty_TraceIndex_CumulativeMatchesSubtree(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tree := drawTree(rt)
		order := rapid.Permutation(indexes(len(tree.spans))).Draw(rt, "order")

		ti := newTestIndex()
		for _, i := range order {
			ti.Add(tree.spans[i])
		}

		errors := func(s model.Span) float64 {
			if s.Status.Code == model.ERROR {
				return 1
			}
			return 0
		}
		tokens := func(s model.Span) float64 {
			value, _ := s.Attributes.Number(model.LLMTokenCountTotal)
			return value
		}
		for i := range tree.spans {
			record, ok := ti.Get(tree.spans[i].SpanID)
			require.True(rt, ok)
			cumulativeErrors, _ := record.Computed(model.CumulativeErrorCount)
			cumulativeTokens, _ := record.Computed(model.CumulativeLLMTokenCountTotal)
			assert.Equal(rt, subtreeSum(tree, i, errors), cumulativeErrors, "span %d", i)
			assert.Equal(rt, subtreeSum(tree, i, tokens), cumulativeTokens, "span %d", i)
		}
	})
}

func TestProperty_TraceIndex_DuplicateAddIsIgnored(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tree := drawTree(rt)
		once := newTestIndex()
		twice := newTestIndex()
		for _, span := range tree.spans {
			once.Add(span)
			twice.Add(span)
			twice.Add(span)
		}

		assert.Equal(rt, once.Len(), twice.Len())
		assert.Equal(rt, once.SpanCount(nil, nil), twice.SpanCount(nil, nil))
		assert.Equal(rt, once.TokenCountTotal(), twice.TokenCountTotal())
		assert.Equal(rt, spanIDs(once.GetSpans(SpanQuery{})), spanIDs(twice.GetSpans(SpanQuery{})))
		for _, span := range tree.spans {
			a, _ := once.Get(span.SpanID)
			b, _ := twice.Get(span.SpanID)
			for attr := model.LatencyMs; attr <= model.CumulativeLLMTokenCountCompletion; attr++ {
				va, _ := a.Computed(attr)
				vb, _ := b.Computed(attr)
				assert.Equal(rt, va, vb)
			}
		}
	})
}

func TestProperty_TraceIndex_TimeRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tree := drawTree(rt)
		ti := newTestIndex()
		for _, span := range tree.spans {
			ti.Add(span)
		}
		start := baseTime.Add(time.Duration(rapid.IntRange(0, 600).Draw(rt, "start")) * time.Second)
		stop := start.Add(time.Duration(rapid.IntRange(0, 600).Draw(rt, "width")) * time.Second)
		rootOnly := rapid.Bool().Draw(rt, "rootOnly")

		records := ti.GetSpans(SpanQuery{StartTime: &start, StopTime: &stop, RootSpansOnly: rootOnly})

		var expected []string
		for _, span := range tree.spans {
			inRange := !span.StartTime.Before(start) && span.StartTime.Before(stop)
			if inRange && (!rootOnly || span.IsRoot()) {
				expected = append(expected, span.SpanID)
			}
		}
		actual := spanIDs(records)
		sort.Strings(expected)
		sorted := append([]string(nil), actual...)
		sort.Strings(sorted)
		if len(expected) == 0 {
			assert.Empty(rt, sorted)
		} else {
			assert.Equal(rt, expected, sorted)
		}
		for i := 1; i < len(records); i++ {
			assert.False(rt, records[i].Span.StartTime.After(records[i-1].Span.StartTime))
		}
		assert.Equal(rt, len(records), func() int {
			if rootOnly {
				return ti.TraceCount(&start, &stop)
			}
			return ti.SpanCount(&start, &stop)
		}())
	})
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
