package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestContentSourceChunking(t *testing.T) {
	samples := make([]int16, 1000)
	for i := range samples {
		samples[i] = int16(i)
	}
	content := encodeLinear16(samples)
	src := NewContentSource(SourceInfo{Format: Format{Encoding: EncodingLinear16, SampleRateHertz: 16000}}, content, 16000, 400)

	ctx := context.Background()
	var total []int16
	chunks := 0
	for src.HasMoreChunks() {
		chunk, err := src.NextChunk(ctx)
		if err != nil {
			t.Fatalf("NextChunk: %v", err)
		}
		total = append(total, chunk...)
		chunks++
		if chunks > 10 {
			t.Fatal("too many chunks, HasMoreChunks likely broken")
		}
	}
	if len(total) != len(samples) {
		t.Fatalf("total samples = %d, want %d", len(total), len(samples))
	}
	if src.IsStreamed() {
		t.Error("ContentSource.IsStreamed() = true, want false")
	}
	if src.TotalChunks() != len(samples)/400 {
		t.Errorf("TotalChunks() = %d, want %d", src.TotalChunks(), len(samples)/400)
	}
}

func TestContentSourceFull(t *testing.T) {
	samples := []int16{10, 20, 30}
	content := encodeLinear16(samples)
	src := NewContentSource(SourceInfo{Format: Format{Encoding: EncodingLinear16, SampleRateHertz: 16000}}, content, 16000, 400)
	full, err := src.Full(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != len(samples) {
		t.Fatalf("len(full) = %d, want %d", len(full), len(samples))
	}
}

func TestURLMaterializedSourceFull(t *testing.T) {
	samples := []int16{10, 20, 30, 40}
	content := encodeLinear16(samples)
	httpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer httpSrv.Close()

	src, err := NewURLMaterializedSource(SourceInfo{Format: Format{Encoding: EncodingLinear16, SampleRateHertz: 16000}}, httpSrv.URL, 16000, 400, []string{"http"})
	if err != nil {
		t.Fatal(err)
	}
	full, err := src.Full(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != len(samples) {
		t.Fatalf("len(full) = %d, want %d", len(full), len(samples))
	}
	if src.IsStreamed() {
		t.Error("URLMaterializedSource.IsStreamed() = true, want false")
	}
}

// spec.md §4.2: full() is valid only for finite sources; a streaming URL
// source must fail rather than silently drain to completion.
func TestURLStreamingSourceFullUnsupported(t *testing.T) {
	src, err := NewURLStreamingSource(SourceInfo{Format: Format{Encoding: EncodingLinear16, SampleRateHertz: 16000}}, "http://example.invalid/a.pcm", 16000, 400, []string{"http"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Full(context.Background()); err == nil {
		t.Fatal("expected URLStreamingSource.Full to return an error")
	}
	if src.IsStreamed() != true {
		t.Error("URLStreamingSource.IsStreamed() = false, want true")
	}
}

func TestCheckSchemeRejectsDisallowed(t *testing.T) {
	err := checkScheme("ftp://example.com/a.pcm", []string{"http", "https"})
	if err == nil {
		t.Fatal("expected scheme rejection for ftp")
	}
	var schemeErr *SchemeNotAllowedError
	if !errors.As(err, &schemeErr) {
		t.Fatalf("expected SchemeNotAllowedError, got %T: %v", err, err)
	}
}

func TestCheckSchemeAllowsHTTPS(t *testing.T) {
	if err := checkScheme("https://example.com/a.pcm", []string{"http", "https"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
