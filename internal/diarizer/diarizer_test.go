package diarizer

import "testing"

func buildTestModel(dim int) Model {
	psi := make([]float64, dim)
	for i := range psi {
		psi[i] = 5.0
	}
	return Model{
		Embedder:        NewStatsPoolingEmbedder(dim / 2),
		Plda:            &Plda{Mean: make([]float64, dim), Transform: identityMatrix(dim), Psi: psi},
		WhiteningMatrix: identityMatrix(dim),
		CenteringVector: make([]float64, dim),
	}
}

func twoSpeakerWaveform(sampleRate float64) []float64 {
	var waveform []float64
	waveform = append(waveform, sineWave(150, sampleRate, int(sampleRate*0.8))...)  // low-pitched speaker
	waveform = append(waveform, make([]float64, int(sampleRate*0.3))...)            // silence gap
	waveform = append(waveform, sineWave(800, sampleRate, int(sampleRate*0.8))...)  // high-pitched speaker
	return waveform
}

func TestDiarizeProducesOneSegmentPerVoicedBlock(t *testing.T) {
	sampleRate := 16000.0
	waveform := twoSpeakerWaveform(sampleRate)
	opts := DefaultOptions(sampleRate)
	dim := NewStatsPoolingEmbedder(opts.MFCC.NumCeps).Dim()
	model := buildTestModel(dim)

	segs, err := Diarize(model, opts, waveform, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) == 0 {
		t.Fatal("expected at least one segment")
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].StartFrame < segs[i-1].StartFrame {
			t.Errorf("segments not in frame order: %+v", segs)
		}
	}
}

func TestDiarizeRejectsZeroSpeakers(t *testing.T) {
	sampleRate := 16000.0
	opts := DefaultOptions(sampleRate)
	dim := NewStatsPoolingEmbedder(opts.MFCC.NumCeps).Dim()
	model := buildTestModel(dim)
	if _, err := Diarize(model, opts, sineWave(200, sampleRate, 16000), 0); err == nil {
		t.Error("expected error for numSpeakers=0")
	}
}

func TestDiarizeErrorsOnSilentWaveform(t *testing.T) {
	sampleRate := 16000.0
	opts := DefaultOptions(sampleRate)
	dim := NewStatsPoolingEmbedder(opts.MFCC.NumCeps).Dim()
	model := buildTestModel(dim)
	silence := make([]float64, int(sampleRate))
	if _, err := Diarize(model, opts, silence, 2); err == nil {
		t.Error("expected error when no voiced segments are found")
	}
}
