package audio

import "context"

// CreateAudioSource builds a Source over in-memory content, mirroring
// original_source/src/audio/audio-source.h's CreateAudioSource factory.
func CreateAudioSource(info SourceInfo, content []byte, targetSampleRateHertz uint32, chunkSizeSamples int) Source {
	return NewContentSource(info, content, targetSampleRateHertz, chunkSizeSamples)
}

// CreateAudioSourceFromURI builds a Source from a URI, choosing between a
// materialized and a streaming source. Streaming is used whenever the
// caller explicitly requests it; both share the same allowed-scheme gate.
func CreateAudioSourceFromURI(info SourceInfo, uri string, targetSampleRateHertz uint32, streaming bool, chunkSizeSamples int, allowedSchemes []string) (Source, error) {
	if streaming {
		return NewURLStreamingSource(info, uri, targetSampleRateHertz, chunkSizeSamples, allowedSchemes)
	}
	return NewURLMaterializedSource(info, uri, targetSampleRateHertz, chunkSizeSamples, allowedSchemes)
}

// DrainFull is a convenience used by non-streaming recognize paths that
// just want the whole waveform regardless of Source implementation.
func DrainFull(ctx context.Context, s Source) ([]int16, error) {
	return s.Full(ctx)
}
