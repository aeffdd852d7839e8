package collector

import (
	logger "log"
)

// batchWriter buffers records bound for one destination and flushes them in
// fixed size batches. A failed flush is logged and the batch dropped, the sink
// being down must not stall collection. The writer has no retry of its own,
// retry policy belongs to the underlying sink client.
type batchWriter[T any] struct {
	log       *logger.Logger
	name      string
	batchSize int
	buffer    []T
	flushFn   func([]T) error
}

// makeBatchWriter creates a batchWriter flushing through flushFn.
// batchSize is floored at 1
func makeBatchWriter[T any](log *logger.Logger, name string, batchSize int,
	flushFn func([]T) error) *batchWriter[T] {

	if batchSize < 1 {
		batchSize = 1
	}
	return &batchWriter[T]{
		log:       log,
		name:      name,
		batchSize: batchSize,
		flushFn:   flushFn,
	}
}

// write appends a record, flushing once the buffer reaches the batch size
func (w *batchWriter[T]) write(record T) {
	w.buffer = append(w.buffer, record)
	if len(w.buffer) >= w.batchSize {
		w.flush()
	}
}

// flush sends the buffered batch to the sink. The buffer is cleared whether or
// not the flush succeeded. Empty buffers are a no-op.
func (w *batchWriter[T]) flush() {
	if len(w.buffer) == 0 {
		return
	}
	if err := w.flushFn(w.buffer); err != nil {
		w.log.Printf("failed to write %d rows to %s, dropping batch, error:%v",
			len(w.buffer), w.name, err)
	}
	w.buffer = w.buffer[:0]
}

// close performs a final flush
func (w *batchWriter[T]) close() {
	w.flush()
}
