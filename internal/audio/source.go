package audio

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Source is the generic audio source contract from spec.md §4.2. Chunks
// are views into a canonical mono 16 kHz int16 waveform; callers pull them
// with NextChunk until HasMoreChunks is false.
type Source interface {
	// Open prepares the source for reading; safe to call multiple times.
	Open(ctx context.Context) error
	// Full returns the entire decoded waveform. Valid only for finite
	// sources; a streaming source fails (spec.md §4.2).
	Full(ctx context.Context) ([]int16, error)
	HasMoreChunks() bool
	NextChunk(ctx context.Context) ([]int16, error)
	IsStreamed() bool
	ChunksSeen() int
	// TotalChunks returns -1 for streamed sources whose length isn't known.
	TotalChunks() int
	TimePassed() time.Duration
}

// SourceInfo mirrors original_source/src/audio/audio-source.h's
// AudioSourceInfo: the encoding/rate metadata the caller already knows
// about a source, independent of its transport.
type SourceInfo struct {
	Format Format
}

// SchemeNotAllowedError reports a URI whose scheme is not in the allowed
// scheme list.
type SchemeNotAllowedError struct {
	Scheme string
}

func (e *SchemeNotAllowedError) Error() string {
	return fmt.Sprintf("audio: URI scheme %q not allowed", e.Scheme)
}

// ContentSource holds already-available bytes in memory, decoding and
// resampling them eagerly in Open. Grounded on
// original_source/src/audio/audio-source.h's ContentAudioSource, including
// its 400-sample default chunk size.
type ContentSource struct {
	info      SourceInfo
	content   []byte
	targetHz  uint32
	chunkSize int

	data       []int16
	nSeen      int
	opened     bool
}

// NewContentSource constructs a ContentSource; chunkSizeSamples<=0 uses
// the spec default of 400.
func NewContentSource(info SourceInfo, content []byte, targetSampleRateHertz uint32, chunkSizeSamples int) *ContentSource {
	if chunkSizeSamples <= 0 {
		chunkSizeSamples = 400
	}
	return &ContentSource{info: info, content: content, targetHz: targetSampleRateHertz, chunkSize: chunkSizeSamples}
}

func (s *ContentSource) Open(ctx context.Context) error {
	if s.opened {
		return nil
	}
	dec, err := NewDecoder(s.info.Format, bytes.NewReader(s.content))
	if err != nil {
		return err
	}
	for {
		more, err := dec.PartialDecode(ctx)
		if err != nil {
			return err
		}
		s.data = append(s.data, dec.Samples()...)
		if !more {
			break
		}
	}
	if err := dec.Flush(); err != nil {
		return err
	}
	s.data = append(s.data, dec.Samples()...)
	if rate := dec.SampleRateHertz(); rate != 0 && rate != s.targetHz {
		s.data = Resample(s.data, float64(rate), float64(s.targetHz))
	}
	s.opened = true
	return nil
}

func (s *ContentSource) Full(ctx context.Context) ([]int16, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s.data, nil
}

func (s *ContentSource) HasMoreChunks() bool {
	if !s.opened {
		return true
	}
	return s.nSeen < len(s.data)
}

func (s *ContentSource) NextChunk(ctx context.Context) ([]int16, error) {
	if !s.opened {
		if err := s.Open(ctx); err != nil {
			return nil, err
		}
	}
	end := s.nSeen + s.chunkSize
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.nSeen:end]
	s.nSeen = end
	return chunk, nil
}

func (s *ContentSource) IsStreamed() bool { return false }

func (s *ContentSource) ChunksSeen() int { return s.nSeen / s.chunkSize }

func (s *ContentSource) TotalChunks() int { return len(s.data) / s.chunkSize }

func (s *ContentSource) TimePassed() time.Duration {
	if s.targetHz == 0 {
		return 0
	}
	return time.Duration(s.nSeen) * time.Second / time.Duration(s.targetHz)
}

// URLMaterializedSource fetches a URI's entire body before decoding,
// grounded on original_source/src/audio/audio-source.h's UriAudioSource
// (non-streaming variant: fully buffered, then decoded like a
// ContentSource).
type URLMaterializedSource struct {
	inner *ContentSource
	uri   string
	client *http.Client
}

func NewURLMaterializedSource(info SourceInfo, uri string, targetSampleRateHertz uint32, chunkSizeSamples int, allowedSchemes []string) (*URLMaterializedSource, error) {
	if err := checkScheme(uri, allowedSchemes); err != nil {
		return nil, err
	}
	return &URLMaterializedSource{uri: uri, client: http.DefaultClient, inner: NewContentSource(info, nil, targetSampleRateHertz, chunkSizeSamples)}, nil
}

func checkScheme(rawURL string, allowed []string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("audio: parse URI: %w", err)
	}
	for _, scheme := range allowed {
		if u.Scheme == scheme {
			return nil
		}
	}
	return &SchemeNotAllowedError{Scheme: u.Scheme}
}

func (s *URLMaterializedSource) Open(ctx context.Context) error {
	if s.inner.opened {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.uri, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("audio: fetch %s: %w", s.uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio: fetch %s: status %d", s.uri, resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("audio: read %s: %w", s.uri, err)
	}
	s.inner.content = buf.Bytes()
	return s.inner.Open(ctx)
}

func (s *URLMaterializedSource) Full(ctx context.Context) ([]int16, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s.inner.Full(ctx)
}

func (s *URLMaterializedSource) HasMoreChunks() bool             { return s.inner.HasMoreChunks() }
func (s *URLMaterializedSource) NextChunk(ctx context.Context) ([]int16, error) {
	return s.inner.NextChunk(ctx)
}
func (s *URLMaterializedSource) IsStreamed() bool      { return false }
func (s *URLMaterializedSource) ChunksSeen() int       { return s.inner.ChunksSeen() }
func (s *URLMaterializedSource) TotalChunks() int      { return s.inner.TotalChunks() }
func (s *URLMaterializedSource) TimePassed() time.Duration { return s.inner.TimePassed() }

// URLStreamingSource decodes a URI's body incrementally as it arrives,
// grounded on original_source/src/audio/audio-source.h's
// StreamingUriAudioSource, including its 2048-sample default chunk size.
type URLStreamingSource struct {
	uri       string
	info      SourceInfo
	targetHz  uint32
	chunkSize int
	client    *http.Client

	dec      Decoder
	body     interface{ Close() error }
	data     []int16
	nSeen    int
	opened   bool
	drained  bool
}

func NewURLStreamingSource(info SourceInfo, uri string, targetSampleRateHertz uint32, chunkSizeSamples int, allowedSchemes []string) (*URLStreamingSource, error) {
	if err := checkScheme(uri, allowedSchemes); err != nil {
		return nil, err
	}
	if chunkSizeSamples <= 0 {
		chunkSizeSamples = 2048
	}
	return &URLStreamingSource{uri: uri, info: info, targetHz: targetSampleRateHertz, chunkSize: chunkSizeSamples, client: http.DefaultClient}, nil
}

func (s *URLStreamingSource) Open(ctx context.Context) error {
	if s.opened {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.uri, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("audio: fetch %s: %w", s.uri, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("audio: fetch %s: status %d", s.uri, resp.StatusCode)
	}
	dec, err := NewDecoder(s.info.Format, resp.Body)
	if err != nil {
		resp.Body.Close()
		return err
	}
	s.dec = dec
	s.body = resp.Body
	s.opened = true
	return nil
}

// fillOneChunk decodes forward until at least one more chunk's worth of
// samples is buffered, or the stream ends.
func (s *URLStreamingSource) fillOneChunk(ctx context.Context) error {
	for len(s.data)-s.nSeen < s.chunkSize && !s.drained {
		more, err := s.dec.PartialDecode(ctx)
		if err != nil {
			return err
		}
		decoded := s.dec.Samples()
		if rate := s.dec.SampleRateHertz(); rate != 0 && rate != s.targetHz {
			decoded = Resample(decoded, float64(rate), float64(s.targetHz))
		}
		s.data = append(s.data, decoded...)
		if !more {
			if err := s.dec.Flush(); err != nil {
				return err
			}
			s.data = append(s.data, s.dec.Samples()...)
			s.drained = true
			if s.body != nil {
				s.body.Close()
			}
		}
	}
	return nil
}

// Full is unsupported on a streaming source (spec.md §4.2: "full() ->
// Vector — valid only for finite sources; streaming URL source fails").
// Callers that need the whole waveform from a URI must request the
// materialized source instead (see CreateAudioSourceFromURI).
func (s *URLStreamingSource) Full(ctx context.Context) ([]int16, error) {
	return nil, fmt.Errorf("audio: full() unsupported on a streaming source")
}

func (s *URLStreamingSource) HasMoreChunks() bool {
	return s.nSeen < len(s.data) || !s.drained
}

func (s *URLStreamingSource) NextChunk(ctx context.Context) ([]int16, error) {
	if !s.opened {
		if err := s.Open(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.fillOneChunk(ctx); err != nil {
		return nil, err
	}
	end := s.nSeen + s.chunkSize
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.nSeen:end]
	s.nSeen = end
	return chunk, nil
}

func (s *URLStreamingSource) IsStreamed() bool { return true }
func (s *URLStreamingSource) ChunksSeen() int  { return s.nSeen / s.chunkSize }
func (s *URLStreamingSource) TotalChunks() int { return -1 }
func (s *URLStreamingSource) TimePassed() time.Duration {
	if s.targetHz == 0 {
		return 0
	}
	return time.Duration(s.nSeen) * time.Second / time.Duration(s.targetHz)
}
