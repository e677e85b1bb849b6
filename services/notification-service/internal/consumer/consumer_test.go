package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			msg := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return msg, nil
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) push(msg kafka.Message) {
	f.mu.Lock()
	f.queue = append(f.queue, msg)
	f.mu.Unlock()
}

func (f *fakeReader) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func TestRun_FailedHandlerDoesNotCommitOffset(t *testing.T) {
	fr := &fakeReader{}
	msg := kafka.Message{
		Topic: "prediction.risk.scored.v1",
		Value: []byte(`{"patient_code":"P001"}`),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-1")},
		},
	}

	var calls int
	done := make(chan struct{})
	handler := func(_ context.Context, _ kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("transient db error")
		}
		close(done)
		return nil
	}

	c := &Consumer{
		reader:  fr,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler: handler,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go c.Run(ctx)

	fr.push(msg)
	// The broker redelivers because the first attempt never committed.
	fr.push(msg)

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("second delivery never handled")
	}

	deadline := time.Now().Add(2 * time.Second)
	for fr.commitCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("successful handler must commit the offset")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2 (failure then redelivery)", calls)
	}
	if fr.commitCount() != 1 {
		t.Fatalf("committed %d offsets, want exactly 1", fr.commitCount())
	}
}
