package service

import "github.com/Avi18971911/Beacon/internal/project/evaluation/model"

// Export flattens span and document evaluations into rows ordered by name, span id and
// document position. Trace evaluations have no tabular form and are not exported.
func (ei *EvaluationIndex) Export() model.ExportedEvaluations {
	ei.mu.RLock()
	defer ei.mu.RUnlock()

	var exported model.ExportedEvaluations
	for _, name := range sortedKeys(ei.spanEvaluationsByName) {
		bySpan := ei.spanEvaluationsByName[name]
		for _, spanID := range sortedKeys(bySpan) {
			exported.SpanEvaluations = append(exported.SpanEvaluations, model.SpanEvaluationRow{
				SpanID: spanID,
				Name:   name,
				Result: bySpan[spanID].Result,
			})
		}
	}
	for _, name := range sortedKeys(ei.documentEvaluationsByName) {
		bySpan := ei.documentEvaluationsByName[name]
		for _, spanID := range sortedKeys(bySpan) {
			byPosition := bySpan[spanID]
			for _, position := range sortedKeys(byPosition) {
				exported.DocumentEvaluations = append(exported.DocumentEvaluations, model.DocumentEvaluationRow{
					SpanID:           spanID,
					DocumentPosition: position,
					Name:             name,
					Result:           byPosition[position].Result,
				})
			}
		}
	}
	return exported
}
