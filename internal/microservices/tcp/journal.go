package tcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wmshub/internal/warehouse"
)

// Sink is an outbound projection of lifecycle events (Redis mirror,
// Postgres audit trail). Sinks are write-only: the server never reads its
// state back from them. Write must not retain the slice.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []warehouse.Event) error
	Close() error
}

type JournalOptions struct {
	Buffer        int           // queued events before Record starts dropping
	BatchSize     int           // flush when this many events are pending
	FlushInterval time.Duration // flush pending events at least this often
	WriteTimeout  time.Duration // per-sink deadline for one batch
	Logger        *slog.Logger
}

// Journal fans lifecycle events out to sinks from a background goroutine.
// Record never blocks: handlers run under no I/O, so a full queue drops the
// event with a warning instead of stalling the connection.
type Journal struct {
	sinks  []Sink
	events chan warehouse.Event
	opts   JournalOptions
	logger *slog.Logger

	started atomic.Bool
	closed  atomic.Bool // to prevent records after Close
	dropped atomic.Int64
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewJournal(opts JournalOptions, sinks ...Sink) *Journal {
	if opts.Buffer <= 0 {
		opts.Buffer = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		sinks:  sinks,
		events: make(chan warehouse.Event, opts.Buffer),
		opts:   opts,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Record queues ev for the sinks.
func (j *Journal) Record(ev warehouse.Event) {
	if j.closed.Load() || len(j.sinks) == 0 {
		return
	}
	// Monitor queue depth
	if depth := len(j.events); depth > cap(j.events)/2 {
		j.logger.Warn("journal_queue_high_watermark", "queue_depth", depth)
	}
	select {
	case j.events <- ev:
	default:
		n := j.dropped.Add(1)
		j.logger.Warn("journal_queue_full_event_dropped",
			"package_id", ev.Package.PackageID,
			"kind", ev.Kind,
			"dropped_total", n,
		)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Start launches the batch writer. It returns when ctx is cancelled or
// Close is called, after flushing whatever is still queued.
func (j *Journal) Start(ctx context.Context) {
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	go j.run(ctx)
}

func (j *Journal) run(ctx context.Context) {
	defer close(j.done)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]warehouse.Event, 0, j.opts.BatchSize)
	j.logger.Info("journal_writer_started",
		"sinks", len(j.sinks),
		"interval", j.opts.FlushInterval.String(),
		"batch_size", j.opts.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			j.drain(batch)
			return
		case <-j.stop:
			j.drain(batch)
			return
		case ev := <-j.events:
			batch = append(batch, ev)
			if len(batch) >= j.opts.BatchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// drain flushes the pending batch plus anything still queued.
func (j *Journal) drain(batch []warehouse.Event) {
	for {
		select {
		case ev := <-j.events:
			batch = append(batch, ev)
		default:
			j.logger.Info("journal_writer_shutting_down", "remaining", len(batch))
			if len(batch) > 0 {
				j.flush(batch)
			}
			return
		}
	}
}

func (j *Journal) flush(batch []warehouse.Event) {
	for _, sink := range j.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), j.opts.WriteTimeout)
		start := time.Now()
		err := sink.Write(ctx, batch)
		cancel()
		if err != nil {
			j.logger.Error("journal_sink_write_failed",
				"sink", sink.Name(),
				"count", len(batch),
				"error", err.Error(),
			)
			continue
		}
		j.logger.Debug("journal_sink_write_success",
			"sink", sink.Name(),
			"count", len(batch),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Close stops the writer, flushes queued events and closes every sink.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		j.closed.Store(true)
		close(j.stop)
		if j.started.Load() {
			<-j.done
		}
		for _, sink := range j.sinks {
			if cerr := sink.Close(); cerr != nil {
				j.logger.Error("failed_to_close_sink", "sink", sink.Name(), "error", cerr.Error())
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}
