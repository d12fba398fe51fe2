package diarizer

import "math"

// Embedder turns a chunk of per-frame features into a single fixed-size
// embedding vector, standing in for XvectorNnet::RunNnetComputation.
type Embedder interface {
	Dim() int
	Embed(chunk [][]float64) ([]float64, error)
}

// ChunkSize of -1 (Kaldi's sentinel for "whole segment in one chunk")
const WholeSegmentChunkSize = -1

// XvectorOptions mirrors XvectorNnetOptions' pooling parameters.
type XvectorOptions struct {
	ChunkSize    int
	MinChunkSize int
}

// DefaultXvectorOptions matches the teacher pipeline's stock defaults.
func DefaultXvectorOptions() XvectorOptions {
	return XvectorOptions{ChunkSize: WholeSegmentChunkSize, MinChunkSize: 100}
}

// ComputeEmbedding runs embedder over features in chunks of opts.ChunkSize
// frames (or the whole segment when ChunkSize is WholeSegmentChunkSize),
// padding any chunk shorter than MinChunkSize symmetrically before
// embedding it, and averages the resulting per-chunk embeddings weighted
// by how many real (unpadded) frames each chunk contributed. This is a
// direct port of XvectorNnet::Compute's chunking/averaging loop.
func ComputeEmbedding(embedder Embedder, opts XvectorOptions, features [][]float64) ([]float64, error) {
	numRows := len(features)
	if numRows == 0 {
		return make([]float64, embedder.Dim()), nil
	}
	featDim := len(features[0])

	thisChunkSize := opts.ChunkSize
	if numRows < opts.ChunkSize || opts.ChunkSize == WholeSegmentChunkSize {
		thisChunkSize = numRows
	}
	numChunks := (numRows + thisChunkSize - 1) / thisChunkSize

	avg := make([]float64, embedder.Dim())
	totWeight := 0.0

	for chunkIdx := 0; chunkIdx < numChunks; chunkIdx++ {
		offset := thisChunkSize
		if remain := numRows - chunkIdx*thisChunkSize; remain < offset {
			offset = remain
		}
		start := chunkIdx * thisChunkSize
		chunk := features[start : start+offset]
		totWeight += float64(offset)

		var embedInput [][]float64
		if offset < opts.MinChunkSize {
			embedInput = padSymmetric(chunk, opts.MinChunkSize, featDim)
		} else {
			embedInput = chunk
		}

		xvec, err := embedder.Embed(embedInput)
		if err != nil {
			return nil, err
		}
		for d := range avg {
			avg[d] += float64(offset) * xvec[d]
		}
	}
	if totWeight > 0 {
		for d := range avg {
			avg[d] /= totWeight
		}
	}
	return avg, nil
}

// padSymmetric grows chunk to minChunkSize rows by repeating its first
// row on the left and its last row on the right, matching
// XvectorNnet::Compute's left_context/right_context padding.
func padSymmetric(chunk [][]float64, minChunkSize, featDim int) [][]float64 {
	offset := len(chunk)
	leftContext := (minChunkSize - offset) / 2
	rightContext := minChunkSize - offset - leftContext

	padded := make([][]float64, minChunkSize)
	for i := 0; i < leftContext; i++ {
		padded[i] = chunk[0]
	}
	for i := 0; i < offset; i++ {
		padded[leftContext+i] = chunk[i]
	}
	for i := 0; i < rightContext; i++ {
		padded[minChunkSize-1-i] = chunk[offset-1]
	}
	return padded
}

// StatsPoolingEmbedder computes a mean+stddev statistics-pooled embedding
// over a feature chunk. It stands in for the trained x-vector TDNN
// (original_source/src/diarization.h's XvectorNnet) when no onnx model is
// configured; it is deterministic and has no learned discriminative power
// beyond what raw per-dimension first/second moments carry, but it
// satisfies the same Embedder contract so the rest of the pipeline
// (chunking, PCA, PLDA, clustering) is exercised end to end without a
// model artifact.
type StatsPoolingEmbedder struct {
	featDim int
}

// NewStatsPoolingEmbedder builds an embedder producing 2*featDim-length
// vectors (mean concatenated with stddev).
func NewStatsPoolingEmbedder(featDim int) *StatsPoolingEmbedder {
	return &StatsPoolingEmbedder{featDim: featDim}
}

func (e *StatsPoolingEmbedder) Dim() int { return 2 * e.featDim }

func (e *StatsPoolingEmbedder) Embed(chunk [][]float64) ([]float64, error) {
	mean := make([]float64, e.featDim)
	for _, row := range chunk {
		for d := 0; d < e.featDim; d++ {
			mean[d] += row[d]
		}
	}
	n := float64(len(chunk))
	for d := range mean {
		mean[d] /= n
	}

	variance := make([]float64, e.featDim)
	for _, row := range chunk {
		for d := 0; d < e.featDim; d++ {
			diff := row[d] - mean[d]
			variance[d] += diff * diff
		}
	}
	out := make([]float64, 2*e.featDim)
	copy(out, mean)
	for d := 0; d < e.featDim; d++ {
		out[e.featDim+d] = math.Sqrt(variance[d] / n)
	}
	return out, nil
}
