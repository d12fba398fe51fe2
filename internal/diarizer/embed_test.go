package diarizer

import (
	"math"
	"testing"
)

func constFeatures(n, dim int, value float64) [][]float64 {
	feats := make([][]float64, n)
	for i := range feats {
		row := make([]float64, dim)
		for d := range row {
			row[d] = value
		}
		feats[i] = row
	}
	return feats
}

func TestStatsPoolingEmbedderConstantInputHasZeroVariance(t *testing.T) {
	e := NewStatsPoolingEmbedder(3)
	feats := constFeatures(10, 3, 5.0)
	out, err := e.Embed(feats)
	if err != nil {
		t.Fatal(err)
	}
	for d := 0; d < 3; d++ {
		if out[d] != 5.0 {
			t.Errorf("mean[%d] = %v, want 5.0", d, out[d])
		}
		if out[3+d] != 0 {
			t.Errorf("stddev[%d] = %v, want 0", d, out[3+d])
		}
	}
}

func TestComputeEmbeddingPadsShortSegment(t *testing.T) {
	e := NewStatsPoolingEmbedder(2)
	opts := XvectorOptions{ChunkSize: WholeSegmentChunkSize, MinChunkSize: 20}
	feats := constFeatures(5, 2, 1.0)
	out, err := ComputeEmbedding(e, opts, feats)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != e.Dim() {
		t.Fatalf("len(out) = %d, want %d", len(out), e.Dim())
	}
	// Constant input padded with the same constant stays constant.
	if math.Abs(out[0]-1.0) > 1e-9 {
		t.Errorf("out[0] = %v, want 1.0", out[0])
	}
}

func TestComputeEmbeddingAveragesAcrossChunks(t *testing.T) {
	e := NewStatsPoolingEmbedder(1)
	opts := XvectorOptions{ChunkSize: 50, MinChunkSize: 10}
	feats := constFeatures(150, 1, 2.0)
	out, err := ComputeEmbedding(e, opts, feats)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out[0]-2.0) > 1e-9 {
		t.Errorf("averaged mean = %v, want 2.0", out[0])
	}
}

func TestComputeEmbeddingEmptyFeaturesReturnsZeroVector(t *testing.T) {
	e := NewStatsPoolingEmbedder(4)
	out, err := ComputeEmbedding(e, DefaultXvectorOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != e.Dim() {
		t.Fatalf("len(out) = %d, want %d", len(out), e.Dim())
	}
	for _, v := range out {
		if v != 0 {
			t.Errorf("expected zero vector, got %v", out)
		}
	}
}
