package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/tiro-is/tiro-speech-go/internal/config"
	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
	"github.com/tiro-is/tiro-speech-go/internal/vad"
)

// interimThrottle is the minimum gap between interim emissions spec.md
// §4.8 point 6 requires (350ms).
var interimThrottle = time.Duration(config.DefaultInterimThrottleMs) * time.Millisecond

// Sender delivers one response to the client transport. A non-nil error
// is treated as a write failure (client hang-up), which cancels the
// whole call per spec.md §4.8 point 7.
type Sender func(Response) error

// ScorerFactory builds a fresh AcousticScorer for one segment's
// Recognizer, mirroring how a new decoding graph instance is attached
// per segment in the original.
type ScorerFactory func() (recognizer.AcousticScorer, error)

// bytesToWaveform decodes a LINEAR16 chunk into PCM samples. Streaming
// is LINEAR16-only and 16kHz-only (spec.md §9, "the spec treats
// streaming as 16kHz only"), so no resampling happens here.
func bytesToWaveform(chunk []byte) []int16 {
	n := len(chunk) / 2
	waveform := make([]int16, n)
	for i := 0; i < n; i++ {
		waveform[i] = int16(binary.LittleEndian.Uint16(chunk[2*i : 2*i+2]))
	}
	return waveform
}

// applyOffset shifts every word's start time by offsetMs, remapping a
// segment-local timeline onto the call's global one (spec.md §4.8 point
// 6: "offset = vad_offset + processed_time").
func applyOffset(alts []recognizer.Alternative, offsetMs int64) {
	if len(alts) == 0 {
		return
	}
	for i := range alts[0].Words {
		alts[0].Words[i].StartTimeMs += offsetMs
	}
}

// runProcessor runs the segment loop of spec.md §4.8 point 3-6, draining
// queue and calling send for interim/final/event responses.
func runProcessor(
	ctx context.Context,
	queue *chunkQueue,
	send Sender,
	cancelled *cancelFlag,
	newScorer ScorerFactory,
	timing recognizer.ModelTiming,
	endpointConfig recognizer.EndpointConfig,
	gate vad.Gate,
	cfg StreamingConfig,
) error {
	var adaptation recognizer.AdaptationState
	var leftContext []recognizer.AlignedWord
	var processedTimeMs int64

	for {
		scorer, err := newScorer()
		if err != nil {
			return err
		}
		rec := recognizer.NewWithState(scorer, timing, endpointConfig, adaptation, leftContext)

		var (
			vadOffsetMs    int64
			segmentTimeMs  int64
			speechStarted  bool
			moreData       = true
			lastInterim    time.Time
			lastInterimHyp string
		)

		for {
			chunk, err := queue.Dequeue(ctx)
			if err != nil {
				if errors.Is(err, ErrQueueClosed) {
					moreData = false
					break
				}
				return err
			}

			waveform := bytesToWaveform(chunk)
			chunkTimeMs := int64(1000) * int64(len(waveform)) / int64(cfg.SampleRateHertz)
			segmentTimeMs += chunkTimeMs

			if !speechStarted {
				if gate.HasSpeech(waveform) {
					speechStarted = true
				} else {
					vadOffsetMs += chunkTimeMs
					continue
				}
			}

			if err := rec.Decode(waveform); err != nil {
				return err
			}
			if rec.HasEndpoint(cfg.SingleUtterance) {
				break
			}

			if cfg.InterimResults && time.Since(lastInterim) >= interimThrottle {
				hyp := rec.GetBestHypothesis()
				if hyp != lastInterimHyp {
					alts, err := rec.GetResults(1, false)
					if err != nil {
						return err
					}
					applyOffset(alts, vadOffsetMs+processedTimeMs)
					if err := send(Response{IsFinal: false, Alternatives: alts}); err != nil {
						cancelled.set()
						return fmt.Errorf("%w: %v", ErrCancelled, err)
					}
					lastInterim = time.Now()
					lastInterimHyp = hyp
				}
			}
		}

		rec.Finalize()
		adaptation = rec.GetAdaptationState()

		if rec.NumFramesDecoded() > 0 {
			alts, err := rec.GetResults(cfg.MaxAlternatives, true)
			if err != nil {
				return err
			}
			applyOffset(alts, vadOffsetMs+processedTimeMs)
			if err := send(Response{IsFinal: true, Alternatives: alts}); err != nil {
				cancelled.set()
				return fmt.Errorf("%w: %v", ErrCancelled, err)
			}
			leftContext = rec.GetLeftContext()

			if cfg.SingleUtterance {
				if err := send(Response{SpeechEventType: SpeechEventEndOfSingleUtterance}); err != nil {
					cancelled.set()
					return fmt.Errorf("%w: %v", ErrCancelled, err)
				}
				return nil
			}
		}

		rec.EndSegment()
		processedTimeMs += segmentTimeMs
		if !moreData {
			return nil
		}
	}
}
