package orchestrator

import (
	"context"
	"testing"
	"time"
)

func TestChunkQueueEnqueueDequeueOrder(t *testing.T) {
	q := newChunkQueue(4)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, []byte{byte(i)}); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		chunk, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if chunk[0] != byte(i) {
			t.Errorf("chunk[%d] = %v, want %v", i, chunk[0], i)
		}
	}
}

func TestChunkQueueDequeueDrainsBufferedItemsAfterClose(t *testing.T) {
	q := newChunkQueue(4)
	ctx := context.Background()
	if err := q.Enqueue(ctx, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, []byte("b")); err != nil {
		t.Fatal(err)
	}
	q.Close()

	got, err := q.Dequeue(ctx)
	if err != nil || string(got) != "a" {
		t.Fatalf("Dequeue() = %q, %v, want \"a\", nil", got, err)
	}
	got, err = q.Dequeue(ctx)
	if err != nil || string(got) != "b" {
		t.Fatalf("Dequeue() = %q, %v, want \"b\", nil", got, err)
	}
	if _, err := q.Dequeue(ctx); err != ErrQueueClosed {
		t.Errorf("Dequeue() after drain = %v, want ErrQueueClosed", err)
	}
}

func TestChunkQueueEnqueueAfterCloseFails(t *testing.T) {
	q := newChunkQueue(1)
	q.Close()
	if err := q.Enqueue(context.Background(), []byte("x")); err != ErrQueueClosed {
		t.Errorf("Enqueue() after close = %v, want ErrQueueClosed", err)
	}
}

func TestChunkQueueEnqueueOnFullQueueRetriesUntilContextDone(t *testing.T) {
	q := newChunkQueue(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, []byte("fills the buffer")); err != nil {
		t.Fatal(err)
	}

	// Shrink the effective retry budget for the test by cancelling the
	// context shortly after the retry loop starts; a full 50-attempt
	// back-off would make this test take minutes.
	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(cctx, []byte("overflow")); err != context.DeadlineExceeded {
		t.Errorf("Enqueue() on full queue = %v, want context.DeadlineExceeded", err)
	}
}

func TestChunkQueueDequeueRespectsContextCancellation(t *testing.T) {
	q := newChunkQueue(1)
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(cctx); err != context.Canceled {
		t.Errorf("Dequeue() with cancelled ctx = %v, want context.Canceled", err)
	}
}
