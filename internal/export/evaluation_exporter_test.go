package export

import (
	"context"
	"testing"

	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/client"
	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/estest"
	"github.com/Avi18971911/Beacon/internal/metrics"
	"github.com/Avi18971911/Beacon/internal/project"
	evalModel "github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	"github.com/dgraph-io/ristretto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *ristretto.Cache {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	require.NoError(t, err)
	return cache
}

func score(v float64) *float64 {
	return &v
}

func position(p int) *int {
	return &p
}

func spanEvaluation(name, spanID string, s float64) evalModel.Evaluation {
	return evalModel.Evaluation{
		Name:    name,
		Subject: evalModel.Subject{SpanID: spanID},
		Result:  evalModel.Result{Score: score(s)},
	}
}

func TestTables(t *testing.T) {
	logger := zap.NewNop()

	t.Run("Serves repeated exports from the cache", func(t *testing.T) {
		m := metrics.NewMetrics(func() int { return 1 })
		ee := NewEvaluationExporterImpl(newTestCache(t), nil, m, logger)
		p := project.NewProject("default", 0.01, logger)
		p.AddEval(spanEvaluation("relevance", "s1", 1))

		first := ee.Tables(p)
		second := ee.Tables(p)

		assert.Equal(t, first, second)
		assert.Len(t, second.SpanEvaluations, 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportCache.WithLabelValues("miss")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportCache.WithLabelValues("hit")))
	})

	t.Run("Recomputes after the project changes", func(t *testing.T) {
		m := metrics.NewMetrics(func() int { return 1 })
		ee := NewEvaluationExporterImpl(newTestCache(t), nil, m, logger)
		p := project.NewProject("default", 0.01, logger)
		p.AddEval(spanEvaluation("relevance", "s1", 1))
		_ = ee.Tables(p)

		p.AddEval(spanEvaluation("relevance", "s2", 0))
		tables := ee.Tables(p)

		require.Len(t, tables.SpanEvaluations, 2)
		assert.Equal(t, "s2", tables.SpanEvaluations[1].SpanID)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.ExportCache.WithLabelValues("miss")))
	})
}

func TestFlush(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("Indexes both evaluation tables", func(t *testing.T) {
		fake := estest.NewFakeElasticsearch(t)
		sc := client.NewStoreClientImpl(fake.Client(t), client.Immediate)
		m := metrics.NewMetrics(func() int { return 1 })
		ee := NewEvaluationExporterImpl(newTestCache(t), sc, m, logger)
		p := project.NewProject("default", 0.01, logger)
		p.AddEval(spanEvaluation("relevance", "s1", 1))
		p.AddEval(evalModel.Evaluation{
			Name:    "hit",
			Subject: evalModel.Subject{SpanID: "s1", DocumentPosition: position(2)},
			Result:  evalModel.Result{Score: score(0.5)},
		})

		require.NoError(t, ee.Flush(ctx, p))

		spanDocs := fake.Documents(bootstrapper.SpanEvaluationIndexName)
		require.Len(t, spanDocs, 1)
		assert.Equal(t, p.ID.String()+":relevance:s1", spanDocs[0]["_id"])
		assert.Equal(t, "s1", spanDocs[0]["context.span_id"])
		assert.Equal(t, "default", spanDocs[0]["project_name"])

		documentDocs := fake.Documents(bootstrapper.DocumentEvaluationIndexName)
		require.Len(t, documentDocs, 1)
		assert.Equal(t, p.ID.String()+":hit:s1:2", documentDocs[0]["_id"])
		assert.Equal(t, 2.0, documentDocs[0]["document_position"])
		assert.Equal(t, 0.5, documentDocs[0]["score"])
	})

	t.Run("Refuses to flush without a store", func(t *testing.T) {
		m := metrics.NewMetrics(func() int { return 1 })
		ee := NewEvaluationExporterImpl(newTestCache(t), nil, m, logger)
		p := project.NewProject("default", 0.01, logger)

		assert.ErrorIs(t, ee.Flush(ctx, p), ErrStoreDisabled)
	})
}
