package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/morezero/native-bridge/pkg/db"
	"github.com/morezero/native-bridge/pkg/protocol"
)

const pgRecorderTestPrefix = "journal:pg_recorder_test"

type fakeInserter struct {
	mu      sync.Mutex
	batches [][]db.CallRecord
	block   chan struct{}
	err     error
}

func (f *fakeInserter) InsertCalls(_ context.Context, records []db.CallRecord) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]db.CallRecord, len(records))
	copy(cp, records)
	f.batches = append(f.batches, cp)
	return f.err
}

func (f *fakeInserter) rows() []db.CallRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.CallRecord
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func TestPgRecorder_FlushOnClose(t *testing.T) {
	store := &fakeInserter{}
	rec := NewPgRecorder(store, &PgRecorderOpts{FlushInterval: time.Hour})

	for i := 0; i < 3; i++ {
		if err := rec.Record(context.Background(), NewEntry(protocol.Inbound, "camera", "takePhoto", i+1, OutcomeDispatched, "")); err != nil {
			t.Fatalf("%s - Record: %v", pgRecorderTestPrefix, err)
		}
	}
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("%s - Close: %v", pgRecorderTestPrefix, err)
	}

	rows := store.rows()
	if len(rows) != 3 {
		t.Fatalf("%s - wrote %d rows, want 3", pgRecorderTestPrefix, len(rows))
	}
	if rows[0].Direction != "inbound" || rows[0].Outcome != "dispatched" || rows[2].CallbackID != 3 {
		t.Errorf("%s - unexpected rows %+v", pgRecorderTestPrefix, rows)
	}
	if rows[0].ID == "" || rows[0].CreatedAt.IsZero() {
		t.Errorf("%s - id and timestamp must be carried over", pgRecorderTestPrefix)
	}
}

func TestPgRecorder_BatchSize(t *testing.T) {
	store := &fakeInserter{}
	rec := NewPgRecorder(store, &PgRecorderOpts{BatchSize: 2, FlushInterval: time.Hour})

	for i := 0; i < 5; i++ {
		_ = rec.Record(context.Background(), NewEntry(protocol.Outbound, "ui", "show", 0, OutcomeSent, ""))
	}
	_ = rec.Close(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.batches) != 3 {
		t.Fatalf("%s - %d batches, want 3", pgRecorderTestPrefix, len(store.batches))
	}
	for i, want := range []int{2, 2, 1} {
		if len(store.batches[i]) != want {
			t.Errorf("%s - batch %d has %d rows, want %d", pgRecorderTestPrefix, i, len(store.batches[i]), want)
		}
	}
}

func TestPgRecorder_FlushOnInterval(t *testing.T) {
	store := &fakeInserter{}
	rec := NewPgRecorder(store, &PgRecorderOpts{FlushInterval: 10 * time.Millisecond})
	defer func() { _ = rec.Close(context.Background()) }()

	_ = rec.Record(context.Background(), NewEntry(protocol.Inbound, "camera", "takePhoto", 7, OutcomeDispatched, ""))

	deadline := time.Now().Add(2 * time.Second)
	for len(store.rows()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%s - entry not flushed by interval", pgRecorderTestPrefix)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPgRecorder_DropsWhenFull(t *testing.T) {
	store := &fakeInserter{block: make(chan struct{})}
	rec := NewPgRecorder(store, &PgRecorderOpts{BufferSize: 1, BatchSize: 1, FlushInterval: time.Hour})

	var full bool
	for i := 0; i < 10; i++ {
		err := rec.Record(context.Background(), NewEntry(protocol.Inbound, "camera", "takePhoto", i, OutcomeDispatched, ""))
		if errors.Is(err, ErrBufferFull) {
			full = true
		}
	}
	if !full {
		t.Errorf("%s - expected ErrBufferFull with a blocked writer", pgRecorderTestPrefix)
	}
	if rec.Dropped() == 0 {
		t.Errorf("%s - Dropped() = 0, want > 0", pgRecorderTestPrefix)
	}

	close(store.block)
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("%s - Close: %v", pgRecorderTestPrefix, err)
	}
}

func TestPgRecorder_RecordAfterClose(t *testing.T) {
	rec := NewPgRecorder(&fakeInserter{}, nil)
	_ = rec.Close(context.Background())
	_ = rec.Close(context.Background())

	err := rec.Record(context.Background(), NewEntry(protocol.Inbound, "a", "b", 0, OutcomeDispatched, ""))
	if !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("%s - Record after Close = %v, want ErrRecorderClosed", pgRecorderTestPrefix, err)
	}
}

func TestPgRecorder_InsertErrorIsLogged(t *testing.T) {
	store := &fakeInserter{err: errors.New("connection refused")}
	rec := NewPgRecorder(store, nil)
	_ = rec.Record(context.Background(), NewEntry(protocol.Inbound, "a", "b", 0, OutcomeDispatched, ""))
	if err := rec.Close(context.Background()); err != nil {
		t.Errorf("%s - Close should not surface insert errors: %v", pgRecorderTestPrefix, err)
	}
}

func TestPgRecorder_UsesCallStore(t *testing.T) {
	var _ CallInserter = (*db.CallStore)(nil)
}
