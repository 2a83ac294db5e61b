package service

import (
	"fmt"
	"math"
	"testing"

	"github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestProperty_EvaluationIndex_LastWriteWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ei := NewEvaluationIndex(zap.NewNop())
		latest := make(map[[2]string]float64)
		writes := rapid.IntRange(1, 50).Draw(rt, "writes")
		for i := 0; i < writes; i++ {
			spanID := rapid.SampledFrom([]string{"S1", "S2", "S3"}).Draw(rt, fmt.Sprintf("span%d", i))
			name := rapid.SampledFrom([]string{"qa", "toxicity"}).Draw(rt, fmt.Sprintf("name%d", i))
			score := float64(i)
			ei.Add(spanEval(spanID, name, model.Result{Score: &score}))
			latest[[2]string{spanID, name}] = score
		}

		for key, score := range latest {
			found := false
			for _, evaluation := range ei.GetEvaluationsBySpanID(key[0]) {
				if evaluation.Name == key[1] {
					assert.Equal(rt, score, *evaluation.Result.Score)
					found = true
				}
			}
			assert.True(rt, found)
		}
		assert.Len(rt, ei.Export().SpanEvaluations, len(latest))
	})
}

func TestProperty_EvaluationIndex_ScoresHaveRequestedLength(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ei := NewEvaluationIndex(zap.NewNop())
		positions := rapid.SliceOfDistinct(rapid.IntRange(0, 20), rapid.ID[int]).Draw(rt, "positions")
		for _, position := range positions {
			ei.Add(documentEval("S1", "relevance", position, float64(position)/100))
		}
		n := rapid.IntRange(0, 25).Draw(rt, "numDocuments")

		scores := ei.GetDocumentEvaluationScores("S1", "relevance", n)

		assert.Len(rt, scores, n)
		present := make(map[int]bool)
		for _, position := range positions {
			present[position] = true
		}
		for i, score := range scores {
			if present[i] {
				assert.Equal(rt, float64(i)/100, score)
			} else {
				assert.True(rt, math.IsNaN(score))
			}
		}
	})
}
