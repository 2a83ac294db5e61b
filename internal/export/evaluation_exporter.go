package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/client"
	esModel "github.com/Avi18971911/Beacon/internal/db/elasticsearch/model"
	"github.com/Avi18971911/Beacon/internal/metrics"
	"github.com/Avi18971911/Beacon/internal/project"
	evalModel "github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

var ErrStoreDisabled = errors.New("no evaluation store is configured")

type EvaluationExporter interface {
	// Tables returns the project's exported evaluation tables. The returned slices are shared
	// with other callers and must not be modified.
	Tables(p *project.Project) evalModel.ExportedEvaluations
	// Flush indexes both evaluation tables of the project into the store.
	Flush(ctx context.Context, p *project.Project) error
}

type EvaluationExporterImpl struct {
	cache   *ristretto.Cache
	sc      client.StoreClient
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEvaluationExporterImpl creates an exporter caching tables in cache. sc may be nil, in
// which case Flush returns ErrStoreDisabled.
func NewEvaluationExporterImpl(
	cache *ristretto.Cache,
	sc client.StoreClient,
	m *metrics.Metrics,
	logger *zap.Logger,
) *EvaluationExporterImpl {
	return &EvaluationExporterImpl{
		cache:   cache,
		sc:      sc,
		metrics: m,
		logger:  logger,
	}
}

func (ee *EvaluationExporterImpl) Tables(p *project.Project) evalModel.ExportedEvaluations {
	key := cacheKey(p)
	if value, found := ee.cache.Get(key); found {
		if tables, ok := value.(evalModel.ExportedEvaluations); ok {
			ee.metrics.ExportCache.WithLabelValues("hit").Inc()
			return tables
		}
		ee.logger.Error("Unexpected value type in export cache", zap.String("type", fmt.Sprintf("%T", value)))
	}
	ee.metrics.ExportCache.WithLabelValues("miss").Inc()

	tables := p.ExportEvaluations()
	cost := int64(len(tables.SpanEvaluations) + len(tables.DocumentEvaluations) + 1)
	if ee.cache.Set(key, tables, cost) {
		ee.cache.Wait()
	}
	return tables
}

func (ee *EvaluationExporterImpl) Flush(ctx context.Context, p *project.Project) error {
	if ee.sc == nil {
		return ErrStoreDisabled
	}
	tables := ee.Tables(p)
	projectID := p.ID.String()

	spanDocuments := make([]esModel.SpanEvaluationDocument, len(tables.SpanEvaluations))
	for i, row := range tables.SpanEvaluations {
		spanDocuments[i] = esModel.NewSpanEvaluationDocument(projectID, p.Name, row)
	}
	if err := bulkIndex(ctx, ee.sc, spanDocuments, bootstrapper.SpanEvaluationIndexName); err != nil {
		return fmt.Errorf("error flushing span evaluations: %w", err)
	}

	documentDocuments := make([]esModel.DocumentEvaluationDocument, len(tables.DocumentEvaluations))
	for i, row := range tables.DocumentEvaluations {
		documentDocuments[i] = esModel.NewDocumentEvaluationDocument(projectID, p.Name, row)
	}
	if err := bulkIndex(ctx, ee.sc, documentDocuments, bootstrapper.DocumentEvaluationIndexName); err != nil {
		return fmt.Errorf("error flushing document evaluations: %w", err)
	}

	ee.logger.Info(
		"Flushed evaluations",
		zap.String("project", p.Name),
		zap.Int("span_evaluations", len(spanDocuments)),
		zap.Int("document_evaluations", len(documentDocuments)),
	)
	return nil
}

func bulkIndex[T any](ctx context.Context, sc client.StoreClient, documents []T, index string) error {
	if len(documents) == 0 {
		return nil
	}
	metaMap, dataMap, err := client.ToMetaAndDataMap(documents)
	if err != nil {
		return fmt.Errorf("error converting documents to meta and data map: %w", err)
	}
	return sc.BulkIndex(ctx, metaMap, dataMap, index)
}

// cacheKey changes whenever the project stores an evaluation, so stale tables are never
// served.
func cacheKey(p *project.Project) string {
	return fmt.Sprintf("%s:%d", p.ID, p.EvaluationsVersion())
}
