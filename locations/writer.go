package locations

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Writer is a write-behind queue in front of a Store. Updates are enqueued
// from the hot socket path and written by a small worker pool; when the
// queue is full the update is dropped, never blocking a broadcast.
type Writer struct {
	store Store
	log   zerolog.Logger

	queue  chan Update
	stopCh chan struct{}

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	written  atomic.Uint64
	errors   atomic.Uint64
}

// WriterConfig sizes the write-behind queue.
type WriterConfig struct {
	QueueSize int
	Workers   int
}

// NewWriter starts the worker pool.
func NewWriter(store Store, cfg WriterConfig, log zerolog.Logger) *Writer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	w := &Writer{
		store:  store,
		log:    log.With().Str("component", "location-writer").Logger(),
		queue:  make(chan Update, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		go w.workerLoop(i)
	}

	return w
}

// Enqueue queues an update for writing, dropping it if the queue is full.
func (w *Writer) Enqueue(upd Update) {
	select {
	case w.queue <- upd:
		w.enqueued.Add(1)
	default:
		w.dropped.Add(1)
	}
}

func (w *Writer) workerLoop(workerID int) {
	for {
		select {
		case upd := <-w.queue:
			if err := w.store.SaveLocation(context.Background(), upd); err != nil {
				w.errors.Add(1)
				w.log.Warn().Int("worker", workerID).Err(err).Msg("location save failed")
				time.Sleep(20 * time.Millisecond)
				continue
			}
			w.written.Add(1)

		case <-w.stopCh:
			return
		}
	}
}

// Shutdown stops the workers. Queued updates not yet written are discarded;
// the cache is best effort.
func (w *Writer) Shutdown() {
	close(w.stopCh)
}

// Stats returns the writer's lifetime counters.
func (w *Writer) Stats() (enqueued, dropped, written, errors uint64) {
	return w.enqueued.Load(), w.dropped.Load(), w.written.Load(), w.errors.Load()
}
