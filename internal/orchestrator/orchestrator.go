package orchestrator

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/tiro-is/tiro-speech-go/internal/config"
	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
	"github.com/tiro-is/tiro-speech-go/internal/vad"
)

// ErrCancelled is returned by Run when a write to the client failed,
// meaning the call should be reported upstream as CANCELLED (spec.md
// §6/§7: "client disconnected / write failed").
var ErrCancelled = errors.New("orchestrator: cancelled")

// defaultQueueCapacity is the bounded SPSC queue's buffer size between
// reader and processor.
const defaultQueueCapacity = config.DefaultQueueCapacity

// Dependencies bundles everything Run needs to drive one streaming call.
type Dependencies struct {
	Recv           Receiver
	Send           Sender
	Config         StreamingConfig
	NewScorer      ScorerFactory
	Timing         recognizer.ModelTiming
	EndpointConfig recognizer.EndpointConfig
	VADGate        vad.Gate
	QueueCapacity  int
}

// Run drives one streaming call's reader and processor tasks to
// completion, implementing spec.md §4.8 points 2 and 7: two concurrent
// tasks sharing a bounded queue, torn down together, the first non-OK
// status winning.
func Run(ctx context.Context, deps Dependencies) error {
	capacity := deps.QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	queue := newChunkQueue(capacity)
	var cancelled cancelFlag

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runReader(gctx, deps.Recv, queue, &cancelled)
	})

	g.Go(func() error {
		err := runProcessor(gctx, queue, deps.Send, &cancelled, deps.NewScorer, deps.Timing, deps.EndpointConfig, deps.VADGate, deps.Config)
		if err != nil {
			cancelled.set()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return ErrCancelled
		}
		return err
	}
	return nil
}
