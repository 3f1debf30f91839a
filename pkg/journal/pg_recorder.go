package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morezero/native-bridge/pkg/db"
)

const pgRecorderLogPrefix = "journal:pg_recorder"

const (
	defaultBufferSize    = 1024
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	insertTimeout        = 5 * time.Second
)

var (
	// ErrBufferFull is returned when the recorder cannot accept more entries; the entry is dropped.
	ErrBufferFull = errors.New("journal buffer full")
	// ErrRecorderClosed is returned by Record after Close.
	ErrRecorderClosed = errors.New("journal recorder closed")
)

// CallInserter persists journal rows. *db.CallStore satisfies it.
type CallInserter interface {
	InsertCalls(ctx context.Context, records []db.CallRecord) error
}

// PgRecorderOpts configures PgRecorder. Zero values use defaults.
type PgRecorderOpts struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// PgRecorder buffers entries and writes them to Postgres in batches from a single goroutine.
// Record never blocks: when the buffer is full the entry is dropped.
type PgRecorder struct {
	store         CallInserter
	entries       chan *Entry
	batchSize     int
	flushInterval time.Duration

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewPgRecorder creates a PgRecorder and starts its writer. Pass nil for opts to use defaults.
func NewPgRecorder(store CallInserter, opts *PgRecorderOpts) *PgRecorder {
	o := PgRecorderOpts{}
	if opts != nil {
		o = *opts
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = defaultFlushInterval
	}

	r := &PgRecorder{
		store:         store,
		entries:       make(chan *Entry, o.BufferSize),
		batchSize:     o.BatchSize,
		flushInterval: o.FlushInterval,
		done:          make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues entry for insertion.
func (r *PgRecorder) Record(_ context.Context, entry *Entry) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.entries <- entry:
		return nil
	default:
		if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
			slog.Warn(fmt.Sprintf("%s - Buffer full, %d entries dropped so far", pgRecorderLogPrefix, n))
		}
		return ErrBufferFull
	}
}

// Dropped returns how many entries were discarded because the buffer was full.
func (r *PgRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops intake, flushes buffered entries and waits for the writer until ctx is done.
func (r *PgRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - close: %w", pgRecorderLogPrefix, ctx.Err())
	}
}

func (r *PgRecorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]db.CallRecord, 0, r.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()
		if err := r.store.InsertCalls(ctx, batch); err != nil {
			slog.Error(fmt.Sprintf("%s - Failed to write %d entries: %v", pgRecorderLogPrefix, len(batch), err))
		}
		batch = make([]db.CallRecord, 0, r.batchSize)
	}

	for {
		select {
		case e, ok := <-r.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, toRecord(e))
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func toRecord(e *Entry) db.CallRecord {
	return db.CallRecord{
		ID:         e.ID.String(),
		Direction:  string(e.Direction),
		Tag:        e.Tag,
		Method:     e.Method,
		CallbackID: e.CallbackID,
		Outcome:    string(e.Outcome),
		Detail:     e.Detail,
		CreatedAt:  e.Timestamp,
	}
}
