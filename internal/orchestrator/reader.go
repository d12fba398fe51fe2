package orchestrator

import (
	"context"
	"sync/atomic"
)

// cancelFlag is the "shared atomic flag" spec.md §4.8/§5 describes:
// set by the processor on write failure so the reader stops enqueuing
// without waiting for its next blocking receive to time out on its own.
type cancelFlag struct {
	v atomic.Bool
}

func (f *cancelFlag) set()        { f.v.Store(true) }
func (f *cancelFlag) isSet() bool { return f.v.Load() }

// Receiver pulls the next audio payload from the client transport,
// blocking until one arrives. It returns io.EOF-shaped errors the same
// way a gRPC stream's Recv does; the reader treats any non-nil error as
// the stream ending (cleanly or not is for the caller to judge from the
// error value).
type Receiver func(ctx context.Context) (payload []byte, err error)

// runReader repeatedly pulls payloads from recv and enqueues them,
// implementing spec.md §4.8 point 2's Reader task. It returns when the
// stream ends (via sentinel or recv error) or cancelled is observed.
func runReader(ctx context.Context, recv Receiver, queue *chunkQueue, cancelled *cancelFlag) error {
	defer queue.Close()

	for {
		if cancelled.isSet() {
			return nil
		}

		payload, err := recv(ctx)
		if err != nil {
			return err
		}

		if isEndSentinel(payload) {
			return nil
		}

		if err := queue.Enqueue(ctx, payload); err != nil {
			return err
		}
	}
}
