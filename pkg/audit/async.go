package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/clinickit/pkg/logger"
)

// AsyncOptions tunes AsyncWriter batching.
type AsyncOptions struct {
	BufferSize     int           // queued entries before Store falls back to a synchronous write
	BatchSize      int           // entries per StoreBatch call
	FlushInterval  time.Duration // max age of a partial batch
	StorageTimeout time.Duration // per batch
	Logger         *slog.Logger
}

// AsyncWriter queues entries and writes them in batches from one
// goroutine. Store does not wait for the write; batch failures are logged.
type AsyncWriter struct {
	bw    BatchWriter
	queue chan Entry
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
	opts  AsyncOptions
}

// NewAsyncWriter starts the background flusher. Call Close to drain it.
func NewAsyncWriter(bw BatchWriter, opts AsyncOptions) *AsyncWriter {
	if bw == nil {
		panic("audit: batch writer cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	w := &AsyncWriter{
		bw:    bw,
		queue: make(chan Entry, opts.BufferSize),
		done:  make(chan struct{}),
		opts:  opts,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Store enqueues e. When the queue is full the entry is written
// synchronously so nothing is dropped.
func (w *AsyncWriter) Store(ctx context.Context, e Entry) error {
	select {
	case <-w.done:
		return ErrStorageNotAvailable
	default:
	}

	select {
	case w.queue <- e:
		return nil
	default:
		return w.bw.StoreBatch(ctx, []Entry{e})
	}
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	batch := make([]Entry, 0, w.opts.BatchSize)
	ticker := time.NewTicker(w.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.StorageTimeout)
		defer cancel()
		if err := w.bw.StoreBatch(ctx, batch); err != nil {
			w.opts.Logger.LogAttrs(ctx, slog.LevelError, "failed to write system log batch",
				slog.Int("entries", len(batch)),
				logger.Error(err),
			)
		}
		batch = make([]Entry, 0, w.opts.BatchSize)
	}

	for {
		select {
		case e := <-w.queue:
			batch = append(batch, e)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case e := <-w.queue:
					batch = append(batch, e)
					if len(batch) >= w.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting entries and flushes the queue, waiting at most
// until ctx is done.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.once.Do(func() { close(w.done) })

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
