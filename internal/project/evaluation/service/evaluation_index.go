package service

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	"go.uber.org/zap"
)

var ErrMalformedSubject = errors.New("evaluation subject has no span, trace or document position")

type evaluationsByName map[string]model.Evaluation
type evaluationsByPosition map[int]model.Evaluation

// EvaluationIndex holds the latest evaluation for every (subject, name) pair, indexed from
// both the subject side and the name side.
type EvaluationIndex struct {
	mu sync.RWMutex

	spanEvaluationsBySpan map[string]evaluationsByName
	spanEvaluationsByName map[string]map[string]model.Evaluation
	spanEvaluationLabels  map[string]map[string]struct{}

	traceEvaluationsByTrace map[string]evaluationsByName
	traceEvaluationsByName  map[string]map[string]model.Evaluation

	documentEvaluationsBySpan map[string]map[string]evaluationsByPosition
	documentEvaluationsByName map[string]map[string]evaluationsByPosition

	lastUpdatedAt time.Time
	version       uint64
	now           func() time.Time
	logger        *zap.Logger
}

func NewEvaluationIndex(logger *zap.Logger) *EvaluationIndex {
	return &EvaluationIndex{
		spanEvaluationsBySpan:     make(map[string]evaluationsByName),
		spanEvaluationsByName:     make(map[string]map[string]model.Evaluation),
		spanEvaluationLabels:      make(map[string]map[string]struct{}),
		traceEvaluationsByTrace:   make(map[string]evaluationsByName),
		traceEvaluationsByName:    make(map[string]map[string]model.Evaluation),
		documentEvaluationsBySpan: make(map[string]map[string]evaluationsByPosition),
		documentEvaluationsByName: make(map[string]map[string]evaluationsByPosition),
		now:                       time.Now,
		logger:                    logger,
	}
}

// Add stores an evaluation, replacing any earlier one with the same subject and name.
// Evaluations without a usable subject are logged and dropped.
func (ei *EvaluationIndex) Add(evaluation model.Evaluation) {
	kind := evaluation.Subject.Kind()
	if kind == model.InvalidSubject {
		ei.logger.Warn(
			"Dropping evaluation",
			zap.String("name", evaluation.Name),
			zap.Error(ErrMalformedSubject),
		)
		return
	}

	ei.mu.Lock()
	defer ei.mu.Unlock()

	name := evaluation.Name
	subject := evaluation.Subject
	switch kind {
	case model.SpanSubject:
		setNested(ei.spanEvaluationsBySpan, subject.SpanID, name, evaluation)
		setNested(ei.spanEvaluationsByName, name, subject.SpanID, evaluation)
		if evaluation.Result.Label != nil {
			labels, ok := ei.spanEvaluationLabels[name]
			if !ok {
				labels = make(map[string]struct{})
				ei.spanEvaluationLabels[name] = labels
			}
			labels[*evaluation.Result.Label] = struct{}{}
		}
	case model.TraceSubject:
		setNested(ei.traceEvaluationsByTrace, subject.TraceID, name, evaluation)
		setNested(ei.traceEvaluationsByName, name, subject.TraceID, evaluation)
	case model.DocumentSubject:
		position := *subject.DocumentPosition
		setDocument(ei.documentEvaluationsBySpan, subject.SpanID, name, position, evaluation)
		setDocument(ei.documentEvaluationsByName, name, subject.SpanID, position, evaluation)
	}
	ei.lastUpdatedAt = ei.now().UTC()
	ei.version++
}

func setNested[M ~map[string]model.Evaluation](outer map[string]M, first, second string, evaluation model.Evaluation) {
	inner, ok := outer[first]
	if !ok {
		inner = make(M)
		outer[first] = inner
	}
	inner[second] = evaluation
}

func setDocument(
	outer map[string]map[string]evaluationsByPosition,
	first, second string,
	position int,
	evaluation model.Evaluation,
) {
	middle, ok := outer[first]
	if !ok {
		middle = make(map[string]evaluationsByPosition)
		outer[first] = middle
	}
	inner, ok := middle[second]
	if !ok {
		inner = make(evaluationsByPosition)
		middle[second] = inner
	}
	inner[position] = evaluation
}

// GetEvaluationsBySpanID returns the span evaluations of spanID ordered by name.
func (ei *EvaluationIndex) GetEvaluationsBySpanID(spanID string) []model.Evaluation {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return valuesByKey(ei.spanEvaluationsBySpan[spanID])
}

func (ei *EvaluationIndex) GetEvaluationsByTraceID(traceID string) []model.Evaluation {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return valuesByKey(ei.traceEvaluationsByTrace[traceID])
}

// GetDocumentEvaluationsBySpanID returns every document evaluation of the span ordered by
// name and then position.
func (ei *EvaluationIndex) GetDocumentEvaluationsBySpanID(spanID string) []model.Evaluation {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	byName := ei.documentEvaluationsBySpan[spanID]
	var evaluations []model.Evaluation
	for _, name := range sortedKeys(byName) {
		byPosition := byName[name]
		for _, position := range sortedKeys(byPosition) {
			evaluations = append(evaluations, byPosition[position])
		}
	}
	return evaluations
}

// GetDocumentEvaluationScores returns exactly numDocuments scores for the span, with NaN
// wherever no scored evaluation exists. Positions at or beyond numDocuments are ignored.
func (ei *EvaluationIndex) GetDocumentEvaluationScores(spanID, name string, numDocuments int) []float64 {
	if numDocuments < 0 {
		numDocuments = 0
	}
	scores := make([]float64, numDocuments)
	for i := range scores {
		scores[i] = math.NaN()
	}
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	for position, evaluation := range ei.documentEvaluationsBySpan[spanID][name] {
		if position < numDocuments && evaluation.Result.Score != nil {
			scores[position] = *evaluation.Result.Score
		}
	}
	return scores
}

func (ei *EvaluationIndex) GetSpanEvaluationNames() []string {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return sortedKeys(ei.spanEvaluationsByName)
}

func (ei *EvaluationIndex) GetTraceEvaluationNames() []string {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return sortedKeys(ei.traceEvaluationsByName)
}

// GetDocumentEvaluationNames lists document evaluation names, restricted to one span when
// spanID is given.
func (ei *EvaluationIndex) GetDocumentEvaluationNames(spanID *string) []string {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	if spanID == nil {
		return sortedKeys(ei.documentEvaluationsByName)
	}
	return sortedKeys(ei.documentEvaluationsBySpan[*spanID])
}

// GetSpanEvaluationLabels is the vocabulary of labels seen for a span evaluation name.
func (ei *EvaluationIndex) GetSpanEvaluationLabels(name string) []string {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return sortedKeys(ei.spanEvaluationLabels[name])
}

func (ei *EvaluationIndex) GetSpanEvaluationSpanIDs(name string) []string {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return sortedKeys(ei.spanEvaluationsByName[name])
}

func (ei *EvaluationIndex) GetDocumentEvaluationSpanIDs(name string) []string {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return sortedKeys(ei.documentEvaluationsByName[name])
}

// Version counts stored evaluations, including replacements. It changes on every mutation
// even when the clock does not.
func (ei *EvaluationIndex) Version() uint64 {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return ei.version
}

func (ei *EvaluationIndex) LastUpdatedAt() time.Time {
	ei.mu.RLock()
	defer ei.mu.RUnlock()
	return ei.lastUpdatedAt
}

func valuesByKey[K string | int, M ~map[K]model.Evaluation](m M) []model.Evaluation {
	if len(m) == 0 {
		return nil
	}
	evaluations := make([]model.Evaluation, 0, len(m))
	for _, key := range sortedKeys(m) {
		evaluations = append(evaluations, m[key])
	}
	return evaluations
}

func sortedKeys[K string | int, V any, M ~map[K]V](m M) []K {
	if len(m) == 0 {
		return nil
	}
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
