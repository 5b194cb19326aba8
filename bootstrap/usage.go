package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/limitgate/limitgate/domain/usage"
	"github.com/limitgate/limitgate/ports"
)

// LocalUsageRecorder buffers request log events and writes them to the
// store in batches. Record never blocks the request path.
type LocalUsageRecorder struct {
	store         ports.UsageStore
	batchSize     int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []usage.Event

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewLocalUsageRecorder creates a new local usage recorder.
func NewLocalUsageRecorder(store ports.UsageStore, batchSize int, flushInterval time.Duration) *LocalUsageRecorder {
	if batchSize == 0 {
		batchSize = 100
	}
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}

	r := &LocalUsageRecorder{
		store:         store,
		buffer:        make([]usage.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Record queues an event for processing.
func (r *LocalUsageRecorder) Record(e usage.Event) {
	r.mu.Lock()
	r.buffer = append(r.buffer, e)
	full := len(r.buffer) >= r.batchSize
	r.mu.Unlock()

	if full {
		r.writeAsync(r.drain())
	}
}

// Flush forces immediate processing of queued events.
func (r *LocalUsageRecorder) Flush(ctx context.Context) error {
	r.writeAsync(r.drain())
	return nil
}

// drain swaps out the current buffer and returns it.
func (r *LocalUsageRecorder) drain() []usage.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buffer) == 0 {
		return nil
	}
	batch := r.buffer
	r.buffer = make([]usage.Event, 0, r.batchSize)
	return batch
}

// writeAsync hands a drained batch to the store off the request path.
func (r *LocalUsageRecorder) writeAsync(batch []usage.Event) {
	if len(batch) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.store.RecordBatch(ctx, batch)
	}()
}

func (r *LocalUsageRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder and flushes remaining events synchronously.
func (r *LocalUsageRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		if batch := r.drain(); len(batch) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = r.store.RecordBatch(ctx, batch)
		}
	})
	return err
}

// Ensure interface compliance.
var _ ports.UsageRecorder = (*LocalUsageRecorder)(nil)
