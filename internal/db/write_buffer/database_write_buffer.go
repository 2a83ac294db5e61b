package write_buffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/client"
	"go.uber.org/zap"
)

const DefaultWriteQueueSize = 30
const flushTimeOut = 10 * time.Second

type DatabaseWriteBuffer[ValueType any] interface {
	WriteToBuffer(value []ValueType)
	// Flush writes out everything buffered so far and waits for background flushes to finish.
	Flush(ctx context.Context) error
}

type DatabaseWriteBufferImpl[ValueType any] struct {
	writeQueue     []ValueType
	writeQueueSize int
	sc             client.StoreClient
	esIndexName    string
	inFlight       int
	idle           *sync.Cond
	logger         *zap.Logger
	mu             sync.Mutex
}

func NewDatabaseWriteBufferImpl[ValueType any](
	sc client.StoreClient,
	esIndexName string,
	writeQueueSize int,
	logger *zap.Logger,
) *DatabaseWriteBufferImpl[ValueType] {
	if writeQueueSize <= 0 {
		writeQueueSize = DefaultWriteQueueSize
	}
	wbc := &DatabaseWriteBufferImpl[ValueType]{
		writeQueue:     []ValueType{},
		writeQueueSize: writeQueueSize,
		sc:             sc,
		esIndexName:    esIndexName,
		logger:         logger,
	}
	wbc.idle = sync.NewCond(&wbc.mu)
	return wbc
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) WriteToBuffer(
	value []ValueType,
) {
	wbc.mu.Lock()
	wbc.writeQueue = append(wbc.writeQueue, value...)
	if len(wbc.writeQueue) <= wbc.writeQueueSize {
		wbc.mu.Unlock()
		return
	}
	batch := wbc.takeQueue()
	wbc.inFlight++
	wbc.mu.Unlock()

	go func() {
		defer wbc.finishBackgroundFlush()
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeOut)
		defer cancel()
		if err := wbc.flushToElasticsearch(ctx, batch); err != nil {
			wbc.logger.Error(
				"Failed to flush to Elasticsearch",
				zap.String("index", wbc.esIndexName),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		}
	}()
}

// Flush may run concurrently with WriteToBuffer. It returns once no background flush is
// in flight, so under sustained writes it waits for a quiet moment.
func (wbc *DatabaseWriteBufferImpl[ValueType]) Flush(ctx context.Context) error {
	wbc.mu.Lock()
	batch := wbc.takeQueue()
	wbc.mu.Unlock()

	err := wbc.flushToElasticsearch(ctx, batch)

	wbc.mu.Lock()
	for wbc.inFlight > 0 {
		wbc.idle.Wait()
	}
	wbc.mu.Unlock()
	return err
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) finishBackgroundFlush() {
	wbc.mu.Lock()
	wbc.inFlight--
	if wbc.inFlight == 0 {
		wbc.idle.Broadcast()
	}
	wbc.mu.Unlock()
}

// takeQueue must be called with mu held.
func (wbc *DatabaseWriteBufferImpl[ValueType]) takeQueue() []ValueType {
	batch := wbc.writeQueue
	wbc.writeQueue = []ValueType{}
	return batch
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) flushToElasticsearch(ctx context.Context, batch []ValueType) error {
	if len(batch) == 0 {
		return nil
	}
	metaMap, dataMap, err := client.ToMetaAndDataMap(batch)
	if err != nil {
		return fmt.Errorf("error converting write queue to meta and data map: %w", err)
	}
	if err = wbc.sc.BulkIndex(ctx, metaMap, dataMap, wbc.esIndexName); err != nil {
		return fmt.Errorf("error bulk indexing to Elasticsearch: %w", err)
	}
	return nil
}
