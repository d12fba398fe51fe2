// Package orchestrator implements the bidirectional streaming recognition
// pipeline of spec.md §4.8: a reader task pulling audio chunks off the
// client stream into a bounded queue, and a processor task running the
// segment loop (VAD gating, frame-incremental decode, endpoint
// detection, interim/final emission) that drains it.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/tiro-is/tiro-speech-go/internal/config"
)

// ErrQueueClosed is returned by Enqueue/Dequeue once Close has been
// called and no more items remain.
var ErrQueueClosed = errors.New("orchestrator: queue closed")

// ErrBackpressure is returned by Enqueue when every retry attempt found
// the queue full.
var ErrBackpressure = errors.New("orchestrator: queue full after maximum retries")

// enqueueBackoffStep and maxEnqueueAttempts govern the reader's
// try-enqueue back-off (spec.md §4.8 point 2: "200 ms · attempt, up to
// 50 attempts"), sourced from config so the adapter-wide constants stay
// in one place.
var (
	enqueueBackoffStep = time.Duration(config.DefaultQueueBackoffMs) * time.Millisecond
	maxEnqueueAttempts = config.DefaultQueueMaxAttempts
)

// chunkQueue is a single-producer-single-consumer bounded queue of byte
// slices, the only synchronisation primitive between the reader and
// processor tasks (spec.md §5: "no global mutable state exists on the
// streaming path").
type chunkQueue struct {
	items  chan []byte
	closed chan struct{}
}

func newChunkQueue(capacity int) *chunkQueue {
	return &chunkQueue{
		items:  make(chan []byte, capacity),
		closed: make(chan struct{}),
	}
}

// Close signals no more items will be enqueued; pending items can still
// be drained by Dequeue.
func (q *chunkQueue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}

// Enqueue tries a non-blocking send; on queue-full it retries with
// linear back-off (200ms · attempt) up to maxEnqueueAttempts before
// returning ErrBackpressure. It aborts immediately, returning ctx.Err(),
// if ctx is cancelled (the processor-signalled-cancellation case).
func (q *chunkQueue) Enqueue(ctx context.Context, chunk []byte) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	for attempt := 1; attempt <= maxEnqueueAttempts; attempt++ {
		select {
		case q.items <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		timer := time.NewTimer(time.Duration(attempt) * enqueueBackoffStep)
		select {
		case q.items <- chunk:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrBackpressure
}

// Dequeue blocks until an item is available, ctx is cancelled, or the
// queue is closed and drained. Buffered items are always delivered before
// ErrQueueClosed, even after Close has been called.
func (q *chunkQueue) Dequeue(ctx context.Context) ([]byte, error) {
	select {
	case chunk := <-q.items:
		return chunk, nil
	default:
	}

	select {
	case chunk := <-q.items:
		return chunk, nil
	case <-q.closed:
		select {
		case chunk := <-q.items:
			return chunk, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
