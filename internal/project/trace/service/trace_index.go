package service

import (
	"sync"
	"time"

	"github.com/Avi18971911/Beacon/internal/project/trace/model"
	"github.com/DataDog/sketches-go/ddsketch"
	"go.uber.org/zap"
)

const DefaultSketchRelativeAccuracy = 0.01

type SpanQuery struct {
	StartTime     *time.Time
	StopTime      *time.Time
	RootSpansOnly bool
	SpanIDs       []string // when set, only these spans are considered and no index is scanned
}

type cumulativeMetric struct {
	base       func(record *model.SpanRecord) float64
	cumulative model.ComputedAttribute
}

var cumulativeMetrics = []cumulativeMetric{
	{base: attributeBase(model.LLMTokenCountTotal), cumulative: model.CumulativeLLMTokenCountTotal},
	{base: attributeBase(model.LLMTokenCountPrompt), cumulative: model.CumulativeLLMTokenCountPrompt},
	{base: attributeBase(model.LLMTokenCountCompletion), cumulative: model.CumulativeLLMTokenCountCompletion},
	{base: computedBase(model.ErrorCount), cumulative: model.CumulativeErrorCount},
}

func attributeBase(key string) func(record *model.SpanRecord) float64 {
	return func(record *model.SpanRecord) float64 {
		value, _ := record.Span.Attributes.Number(key)
		return value
	}
}

func computedBase(attr model.ComputedAttribute) func(record *model.SpanRecord) float64 {
	return func(record *model.SpanRecord) float64 {
		value, _ := record.Computed(attr)
		return value
	}
}

// TraceIndex owns every ingested span of a project and the relations between them.
type TraceIndex struct {
	mu sync.RWMutex

	spans        map[string]*model.SpanRecord
	parentOf     map[string]string
	childrenOf   map[string][]*model.SpanRecord
	spansOfTrace map[string][]*model.SpanRecord
	numDocuments map[string]int

	startTimeSorted     *orderedIndex[int64]
	rootStartTimeSorted *orderedIndex[int64]
	rootLatencySorted   *orderedIndex[float64]
	rootLatencySketch   *ddsketch.DDSketch

	tokenCountTotal float64
	lastUpdatedAt   time.Time
	seq             uint64

	now    func() time.Time
	logger *zap.Logger
}

func NewTraceIndex(sketchRelativeAccuracy float64, logger *zap.Logger) *TraceIndex {
	sketch, err := ddsketch.NewDefaultDDSketch(sketchRelativeAccuracy)
	if err != nil {
		logger.Warn(
			"Invalid sketch relative accuracy, falling back to default",
			zap.Float64("relative_accuracy", sketchRelativeAccuracy),
			zap.Error(err),
		)
		sketch, _ = ddsketch.NewDefaultDDSketch(DefaultSketchRelativeAccuracy)
	}
	return &TraceIndex{
		spans:               make(map[string]*model.SpanRecord),
		parentOf:            make(map[string]string),
		childrenOf:          make(map[string][]*model.SpanRecord),
		spansOfTrace:        make(map[string][]*model.SpanRecord),
		numDocuments:        make(map[string]int),
		startTimeSorted:     newOrderedIndex[int64](),
		rootStartTimeSorted: newOrderedIndex[int64](),
		rootLatencySorted:   newOrderedIndex[float64](),
		rootLatencySketch:   sketch,
		now:                 time.Now,
		logger:              logger,
	}
}

// Add ingests a span. A span whose id is already present is ignored.
func (ti *TraceIndex) Add(span model.Span) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	spanID := span.SpanID
	if _, ok := ti.spans[spanID]; ok {
		return
	}
	if span.ParentSpanID == spanID {
		ti.logger.Warn("Span names itself as parent, indexing it as a root", zap.String("span_id", spanID))
		span.ParentSpanID = ""
	}
	record := model.NewSpanRecord(span)
	isRoot := span.IsRoot()
	if !isRoot {
		ti.childrenOf[span.ParentSpanID] = append(ti.childrenOf[span.ParentSpanID], record)
		ti.parentOf[spanID] = span.ParentSpanID
	}

	latencyKnown := !span.EndTime.IsZero()
	var latencyMs float64
	if latencyKnown {
		latencyMs = float64(span.EndTime.Sub(span.StartTime)) / float64(time.Millisecond)
		record.Set(model.LatencyMs, latencyMs)
	}
	errorCount := 0.0
	if span.Status.Code == model.ERROR {
		errorCount = 1
	}
	record.Set(model.ErrorCount, errorCount)

	ti.seq++
	startKey := span.StartTime.UnixNano()
	ti.startTimeSorted.insert(startKey, ti.seq, record)
	if isRoot {
		ti.rootStartTimeSorted.insert(startKey, ti.seq, record)
		if latencyKnown {
			ti.rootLatencySorted.insert(latencyMs, ti.seq, record)
			if err := ti.rootLatencySketch.Add(latencyMs); err != nil {
				ti.logger.Warn(
					"Failed to add root span latency to sketch",
					zap.String("span_id", spanID),
					zap.Float64("latency_ms", latencyMs),
					zap.Error(err),
				)
			}
		}
	}

	// children that arrived before this span stopped their upward walk here
	ancestors := ti.ingestedAncestors(spanID)
	for _, metric := range cumulativeMetrics {
		cumulative := metric.base(record)
		for _, child := range ti.childrenOf[spanID] {
			childValue, _ := child.Computed(metric.cumulative)
			cumulative += childValue
		}
		record.Set(metric.cumulative, cumulative)
		for _, ancestor := range ancestors {
			ancestor.AddComputed(metric.cumulative, cumulative)
		}
	}

	ti.spans[spanID] = record
	ti.spansOfTrace[span.TraceID] = append(ti.spansOfTrace[span.TraceID], record)
	if documents := span.Attributes.Length(model.RetrievalDocuments); documents > 0 {
		ti.numDocuments[spanID] += documents
	}
	tokens, _ := span.Attributes.Number(model.LLMTokenCountTotal)
	ti.tokenCountTotal += tokens
	ti.lastUpdatedAt = ti.now().UTC()
}

// ingestedAncestors walks up parentOf and stops at the first ancestor that has not been
// ingested yet. That ancestor folds in its children's totals when it arrives, but hops
// above it are not revisited. A parent chain that loops back on itself ends the walk at
// the first repeated id.
func (ti *TraceIndex) ingestedAncestors(spanID string) []*model.SpanRecord {
	var ancestors []*model.SpanRecord
	visited := map[string]struct{}{spanID: {}}
	for {
		parentID, ok := ti.parentOf[spanID]
		if !ok {
			return ancestors
		}
		if _, seen := visited[parentID]; seen {
			ti.logger.Warn("Parent span cycle detected", zap.String("span_id", parentID))
			return ancestors
		}
		parent, ok := ti.spans[parentID]
		if !ok {
			return ancestors
		}
		visited[parentID] = struct{}{}
		ancestors = append(ancestors, parent)
		spanID = parentID
	}
}

func (ti *TraceIndex) Get(spanID string) (*model.SpanRecord, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	record, ok := ti.spans[spanID]
	return record, ok
}

// GetSpans returns the spans starting in [StartTime, StopTime), most recent first. Missing
// bounds default to RightOpenTimeRange.
func (ti *TraceIndex) GetSpans(query SpanQuery) []*model.SpanRecord {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	start, stop, ok := ti.resolveBounds(query.StartTime, query.StopTime)
	if !ok {
		return nil
	}
	if query.SpanIDs != nil {
		var records []*model.SpanRecord
		for _, spanID := range query.SpanIDs {
			record, ok := ti.spans[spanID]
			if !ok {
				continue
			}
			startKey := record.Span.StartTime.UnixNano()
			if startKey < start || startKey >= stop {
				continue
			}
			if query.RootSpansOnly && !record.IsRoot() {
				continue
			}
			records = append(records, record)
		}
		return records
	}
	index := ti.startTimeSorted
	if query.RootSpansOnly {
		index = ti.rootStartTimeSorted
	}
	return index.descending(start, stop)
}

func (ti *TraceIndex) GetTrace(traceID string) []*model.SpanRecord {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	records := ti.spansOfTrace[traceID]
	if len(records) == 0 {
		return nil
	}
	return append([]*model.SpanRecord(nil), records...)
}

// GetDescendantSpans enumerates descendants depth first, each span before its own
// children. Children are snapshotted one level at a time, so spans added during the walk
// may or may not appear. Every span is returned at most once, even when parent ids loop.
func (ti *TraceIndex) GetDescendantSpans(spanID string) []*model.SpanRecord {
	var descendants []*model.SpanRecord
	visited := map[string]struct{}{spanID: {}}
	stack := ti.unvisitedChildren(spanID, visited)
	for len(stack) > 0 {
		record := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		descendants = append(descendants, record)
		stack = append(stack, ti.unvisitedChildren(record.Span.SpanID, visited)...)
	}
	return descendants
}

// unvisitedChildren returns spanID's children not yet in visited, last child first, and
// marks them visited.
func (ti *TraceIndex) unvisitedChildren(spanID string, visited map[string]struct{}) []*model.SpanRecord {
	ti.mu.RLock()
	children := ti.childrenOf[spanID]
	var fresh []*model.SpanRecord
	for i := len(children) - 1; i >= 0; i-- {
		childID := children[i].Span.SpanID
		if _, seen := visited[childID]; seen {
			continue
		}
		visited[childID] = struct{}{}
		fresh = append(fresh, children[i])
	}
	ti.mu.RUnlock()
	return fresh
}

func (ti *TraceIndex) GetNumDocuments(spanID string) int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.numDocuments[spanID]
}

// RootSpanLatencyQuantile returns the approximate latency in milliseconds at quantile p
// of all root spans. ok is false when no root latency has been recorded or p is not in
// [0, 1].
func (ti *TraceIndex) RootSpanLatencyQuantile(p float64) (float64, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	if ti.rootLatencySketch.IsEmpty() {
		return 0, false
	}
	value, err := ti.rootLatencySketch.GetValueAtQuantile(p)
	if err != nil {
		return 0, false
	}
	return value, true
}

// LatencyRankPercent returns the share of root spans, in percent, whose latency is
// strictly below latencyMs.
func (ti *TraceIndex) LatencyRankPercent(latencyMs float64) (float64, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	n := ti.rootLatencySorted.len()
	if n == 0 {
		return 0, false
	}
	rank := ti.rootLatencySorted.countBelow(latencyMs)
	return float64(rank) / float64(n) * 100, true
}

func (ti *TraceIndex) SpanCount(start, stop *time.Time) int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.countIn(ti.startTimeSorted, start, stop)
}

// TraceCount counts root spans starting inside the window.
func (ti *TraceIndex) TraceCount(start, stop *time.Time) int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.countIn(ti.rootStartTimeSorted, start, stop)
}

func (ti *TraceIndex) countIn(index *orderedIndex[int64], start, stop *time.Time) int {
	if start == nil && stop == nil {
		return index.len()
	}
	lo, hi, ok := ti.resolveBounds(start, stop)
	if !ok {
		return 0
	}
	return index.count(lo, hi)
}

// RightOpenTimeRange covers every ingested span: the earliest start floored to the minute
// and one minute past the latest start, also floored.
func (ti *TraceIndex) RightOpenTimeRange() (time.Time, time.Time, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.rightOpenTimeRange()
}

func (ti *TraceIndex) rightOpenTimeRange() (time.Time, time.Time, bool) {
	first, last, ok := ti.startTimeSorted.bounds()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	start := time.Unix(0, first).UTC().Truncate(time.Minute)
	stop := time.Unix(0, last).UTC().Truncate(time.Minute).Add(time.Minute)
	return start, stop, true
}

func (ti *TraceIndex) resolveBounds(start, stop *time.Time) (int64, int64, bool) {
	defaultStart, defaultStop, ok := ti.rightOpenTimeRange()
	if !ok {
		return 0, 0, false
	}
	if start != nil {
		defaultStart = *start
	}
	if stop != nil {
		defaultStop = *stop
	}
	return defaultStart.UnixNano(), defaultStop.UnixNano(), true
}

func (ti *TraceIndex) TokenCountTotal() float64 {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.tokenCountTotal
}

func (ti *TraceIndex) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.spans)
}

// LastUpdatedAt is the zero time until the first span is added.
func (ti *TraceIndex) LastUpdatedAt() time.Time {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.lastUpdatedAt
}
