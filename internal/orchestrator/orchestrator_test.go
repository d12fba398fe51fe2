package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
	"github.com/tiro-is/tiro-speech-go/internal/vad"
)

// loudChunk builds one 10ms@16kHz LINEAR16 chunk with enough energy and
// a low enough zero-crossing rate to register as voiced on both the VAD
// gate and the stub scorer's energy gate.
func loudChunk() []byte {
	buf := make([]byte, recognizer.FrameSamples*2)
	for i := 0; i < recognizer.FrameSamples; i++ {
		v := int16(8000)
		if i%4 >= 2 {
			v = -8000
		}
		binary.LittleEndian.PutUint16(buf[2*i:2*i+2], uint16(v))
	}
	return buf
}

func silentChunk() []byte {
	return make([]byte, recognizer.FrameSamples*2)
}

// sequenceRecv serves payloads from a fixed slice, one per call, then
// returns io.EOF.
func sequenceRecv(payloads [][]byte) Receiver {
	i := 0
	return func(ctx context.Context) ([]byte, error) {
		if i >= len(payloads) {
			return nil, io.EOF
		}
		p := payloads[i]
		i++
		return p, nil
	}
}

type responseSink struct {
	mu   sync.Mutex
	resp []Response
	fail bool
}

func (s *responseSink) send(r Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("transport: write failed")
	}
	s.resp = append(s.resp, r)
	return nil
}

func (s *responseSink) snapshot() []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Response{}, s.resp...)
}

func testDeps(recv Receiver, send Sender) Dependencies {
	gate, err := vad.New(16000, 10)
	if err != nil {
		panic(err)
	}
	return Dependencies{
		Recv:           recv,
		Send:           send,
		Config:         StreamingConfig{SampleRateHertz: 16000, MaxAlternatives: 1, InterimResults: false},
		NewScorer:      func() (recognizer.AcousticScorer, error) { return recognizer.NewStubScorer(), nil },
		Timing:         recognizer.DefaultModelTiming(),
		EndpointConfig: recognizer.DefaultEndpointConfig(),
		VADGate:        gate,
		QueueCapacity:  64,
	}
}

// endpointTriggeringPayloads is enough voiced chunks (to exceed the 1s
// minimum utterance length) followed by enough silent chunks (to exceed
// the 0.5s trailing-silence threshold) to fire endpoint rule 2.
func endpointTriggeringPayloads() [][]byte {
	var payloads [][]byte
	for i := 0; i < 40; i++ {
		payloads = append(payloads, loudChunk())
	}
	for i := 0; i < 20; i++ {
		payloads = append(payloads, silentChunk())
	}
	payloads = append(payloads, []byte(endSentinel))
	return payloads
}

func TestRunEmitsExactlyOneFinalPerSegmentThenTerminates(t *testing.T) {
	sink := &responseSink{}
	deps := testDeps(sequenceRecv(endpointTriggeringPayloads()), sink.send)

	if err := Run(context.Background(), deps); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	finals := 0
	for _, r := range sink.snapshot() {
		if r.IsFinal {
			finals++
		}
	}
	if finals != 1 {
		t.Errorf("got %d final responses, want exactly 1", finals)
	}
}

func TestRunFinalResponseHasMonotoneWordTimestamps(t *testing.T) {
	sink := &responseSink{}
	deps := testDeps(sequenceRecv(endpointTriggeringPayloads()), sink.send)

	if err := Run(context.Background(), deps); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	var words []recognizer.AlignedWord
	for _, r := range sink.snapshot() {
		if r.IsFinal && len(r.Alternatives) > 0 {
			words = r.Alternatives[0].Words
		}
	}
	if len(words) == 0 {
		t.Fatal("expected word alignment on the final response")
	}
	for i := 1; i < len(words); i++ {
		if words[i].StartTimeMs < words[i-1].StartTimeMs {
			t.Errorf("word %d starts at %d, before word %d at %d", i, words[i].StartTimeMs, i-1, words[i-1].StartTimeMs)
		}
	}
}

// countingGate wraps a Gate and counts HasSpeech calls, so the test can
// assert the VAD latching invariant (spec.md §8 property 4) without
// reaching into the processor's internals.
type countingGate struct {
	inner vad.Gate
	calls int
}

func (g *countingGate) HasSpeech(pcm []int16) bool {
	g.calls++
	return g.inner.HasSpeech(pcm)
}
func (g *countingGate) NumSamplesPerFrame() int { return g.inner.NumSamplesPerFrame() }

func TestVADGateSkippedAfterSpeechStartedInSegment(t *testing.T) {
	inner, err := vad.New(16000, 10)
	if err != nil {
		t.Fatal(err)
	}
	gate := &countingGate{inner: inner}
	sink := &responseSink{}
	deps := testDeps(sequenceRecv(endpointTriggeringPayloads()), sink.send)
	deps.VADGate = gate
	deps.Config.SingleUtterance = true

	if err := Run(context.Background(), deps); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if gate.calls != 1 {
		t.Errorf("gate.calls = %d, want exactly 1 (latched after first voiced chunk)", gate.calls)
	}
}

func TestRunReturnsCancelledWhenClientWriteFails(t *testing.T) {
	sink := &responseSink{fail: true}
	deps := testDeps(sequenceRecv(endpointTriggeringPayloads()), sink.send)

	err := Run(context.Background(), deps)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("Run() = %v, want an error wrapping ErrCancelled", err)
	}
}

func TestRunReaderStopsWithinOneDequeueCycleAfterProcessorCancels(t *testing.T) {
	// Enough chunks to reach one endpoint and a failed final write, then
	// an unbounded supply of further voiced chunks: the reader would
	// enqueue forever if it didn't observe the processor's cancellation.
	prefix := endpointTriggeringPayloads()
	prefix = prefix[:len(prefix)-1] // drop the "END" sentinel
	i := 0
	recv := func(ctx context.Context) ([]byte, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if i < len(prefix) {
			p := prefix[i]
			i++
			return p, nil
		}
		return loudChunk(), nil
	}
	sink := &responseSink{fail: true}
	deps := testDeps(recv, sink.send)

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), deps) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want ErrCancelled or context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not terminate after a send failure; reader likely kept enqueuing")
	}
}
