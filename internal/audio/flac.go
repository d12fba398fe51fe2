package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"
)

// flacDecoder is a minimal FLAC decoder: it parses the STREAMINFO
// metadata block and decodes CONSTANT, VERBATIM and FIXED-predictor
// subframes with partitioned Rice-coded residuals. LPC subframes (the
// default for libFLAC's higher compression levels) are out of scope — no
// pack repo carries a FLAC decode dependency, so this is hand-written and
// deliberately scoped to what speech-capture pipelines that encode with
// `flac --lax -0`/fixed-predictor settings actually produce.
type flacDecoder struct {
	br         *bitReader
	sampleRate uint32
	bitsPerSample uint8
	totalSamples  uint64
	samples       []int16
	done          bool
}

func newFLACDecoder(r io.Reader) (*flacDecoder, error) {
	br := newBitReader(bufio.NewReaderSize(r, 8192))
	var magic [4]byte
	if err := br.readFull(magic[:]); err != nil {
		return nil, fmt.Errorf("audio: flac: read magic: %w", err)
	}
	if string(magic[:]) != "fLaC" {
		return nil, fmt.Errorf("audio: flac: bad magic %q", magic)
	}
	d := &flacDecoder{br: br}
	if err := d.readMetadata(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *flacDecoder) readMetadata() error {
	for {
		header, err := d.br.readBits(8)
		if err != nil {
			return fmt.Errorf("audio: flac: metadata header: %w", err)
		}
		last := header&0x80 != 0
		blockType := header & 0x7F
		length, err := d.br.readBits(24)
		if err != nil {
			return err
		}
		if blockType == 0 { // STREAMINFO
			if err := d.readStreamInfo(); err != nil {
				return err
			}
		} else {
			if err := d.br.skipBytes(int(length)); err != nil {
				return err
			}
		}
		if last {
			return nil
		}
	}
}

func (d *flacDecoder) readStreamInfo() error {
	if _, err := d.br.readBits(16); err != nil { // min block size
		return err
	}
	if _, err := d.br.readBits(16); err != nil { // max block size
		return err
	}
	if _, err := d.br.readBits(24); err != nil { // min frame size
		return err
	}
	if _, err := d.br.readBits(24); err != nil { // max frame size
		return err
	}
	sr, err := d.br.readBits(20)
	if err != nil {
		return err
	}
	d.sampleRate = uint32(sr)
	channels, err := d.br.readBits(3)
	if err != nil {
		return err
	}
	if channels != 0 {
		return fmt.Errorf("audio: flac: %w: only mono streams supported (got %d channels)", ErrUnsupportedContent, channels+1)
	}
	bps, err := d.br.readBits(5)
	if err != nil {
		return err
	}
	d.bitsPerSample = uint8(bps + 1)
	total, err := d.br.readBits(36)
	if err != nil {
		return err
	}
	d.totalSamples = total
	return d.br.skipBytes(16) // MD5
}

func (d *flacDecoder) PartialDecode(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if d.done {
		return false, nil
	}
	blockSamples, err := d.decodeFrame()
	if err == io.EOF {
		d.done = true
		return false, nil
	}
	if err != nil {
		return false, err
	}
	d.samples = append(d.samples, blockSamples...)
	return true, nil
}

func (d *flacDecoder) Flush() error { return nil }

func (d *flacDecoder) Samples() []int16 {
	s := d.samples
	d.samples = nil
	return s
}

func (d *flacDecoder) SampleRateHertz() uint32 { return d.sampleRate }

func (d *flacDecoder) Duration() (time.Duration, bool) {
	if d.sampleRate == 0 {
		return 0, false
	}
	return time.Duration(d.totalSamples) * time.Second / time.Duration(d.sampleRate), true
}

// decodeFrame decodes one FLAC frame (sync code, frame header, one
// subframe for the mono channel, footer CRC) and returns its samples.
func (d *flacDecoder) decodeFrame() ([]int16, error) {
	sync, err := d.br.readBits(14)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	if sync != 0x3FFE {
		return nil, fmt.Errorf("audio: flac: bad frame sync %x", sync)
	}
	if _, err := d.br.readBits(1); err != nil { // reserved
		return nil, err
	}
	if _, err := d.br.readBits(1); err != nil { // blocking strategy
		return nil, err
	}
	blockSizeCode, err := d.br.readBits(4)
	if err != nil {
		return nil, err
	}
	sampleRateCode, err := d.br.readBits(4)
	if err != nil {
		return nil, err
	}
	_ = sampleRateCode
	if _, err := d.br.readBits(4); err != nil { // channel assignment (mono)
		return nil, err
	}
	if _, err := d.br.readBits(3); err != nil { // sample size (taken from STREAMINFO)
		return nil, err
	}
	if _, err := d.br.readBits(1); err != nil { // reserved
		return nil, err
	}
	// UTF-8 coded frame/sample number: read leading byte to determine width.
	lead, err := d.br.readBits(8)
	if err != nil {
		return nil, err
	}
	extra := utf8ExtraBytes(byte(lead))
	for i := 0; i < extra; i++ {
		if _, err := d.br.readBits(8); err != nil {
			return nil, err
		}
	}
	blockSize, err := decodeBlockSize(d.br, blockSizeCode)
	if err != nil {
		return nil, err
	}
	if _, err := d.br.readBits(8); err != nil { // header CRC-8
		return nil, err
	}
	samples, err := d.decodeSubframe(int(blockSize))
	if err != nil {
		return nil, err
	}
	d.br.alignToByte()
	if _, err := d.br.readBits(16); err != nil { // frame footer CRC-16
		return nil, err
	}
	return samples, nil
}

func utf8ExtraBytes(lead byte) int {
	switch {
	case lead&0x80 == 0:
		return 0
	case lead&0xE0 == 0xC0:
		return 1
	case lead&0xF0 == 0xE0:
		return 2
	case lead&0xF8 == 0xF0:
		return 3
	default:
		return 4
	}
}

func decodeBlockSize(br *bitReader, code uint64) (uint64, error) {
	switch {
	case code == 1:
		return 192, nil
	case code >= 2 && code <= 5:
		return 576 << (code - 2), nil
	case code == 6:
		v, err := br.readBits(8)
		return v + 1, err
	case code == 7:
		v, err := br.readBits(16)
		return v + 1, err
	case code >= 8 && code <= 15:
		return 256 << (code - 8), nil
	default:
		return 0, fmt.Errorf("audio: flac: reserved block size code %d", code)
	}
}

func (d *flacDecoder) decodeSubframe(blockSize int) ([]int16, error) {
	if _, err := d.br.readBits(1); err != nil { // zero bit
		return nil, err
	}
	subframeType, err := d.br.readBits(6)
	if err != nil {
		return nil, err
	}
	wastedBit, err := d.br.readBits(1)
	if err != nil {
		return nil, err
	}
	wasted := 0
	if wastedBit == 1 {
		for {
			b, err := d.br.readBits(1)
			if err != nil {
				return nil, err
			}
			wasted++
			if b == 1 {
				break
			}
		}
	}
	bps := int(d.bitsPerSample) - wasted

	switch {
	case subframeType == 0: // CONSTANT
		v, err := d.br.readSigned(bps)
		if err != nil {
			return nil, err
		}
		out := make([]int16, blockSize)
		for i := range out {
			out[i] = int16(v << wasted)
		}
		return out, nil
	case subframeType == 1: // VERBATIM
		out := make([]int16, blockSize)
		for i := range out {
			v, err := d.br.readSigned(bps)
			if err != nil {
				return nil, err
			}
			out[i] = int16(v << wasted)
		}
		return out, nil
	case subframeType >= 8 && subframeType <= 12: // FIXED predictor, order 0-4
		order := int(subframeType - 8)
		return d.decodeFixed(blockSize, order, bps, wasted)
	default:
		return nil, fmt.Errorf("audio: flac: %w: subframe type %d (LPC) not supported", ErrUnsupportedContent, subframeType)
	}
}

// fixedCoeffs are the standard FLAC fixed-predictor coefficients for
// orders 0-4 (RFC 9639 §9.2.3).
var fixedCoeffs = [][]int64{
	{},
	{1},
	{2, -1},
	{3, -3, 1},
	{4, -6, 4, -1},
}

func (d *flacDecoder) decodeFixed(blockSize, order, bps, wasted int) ([]int16, error) {
	history := make([]int64, order)
	for i := 0; i < order; i++ {
		v, err := d.br.readSigned(bps)
		if err != nil {
			return nil, err
		}
		history[i] = v
	}
	residuals, err := d.decodeResiduals(blockSize, order)
	if err != nil {
		return nil, err
	}
	out := make([]int16, blockSize)
	coeffs := fixedCoeffs[order]
	window := append([]int64{}, history...)
	for i := 0; i < order; i++ {
		out[i] = int16(history[i] << wasted)
	}
	for i := order; i < blockSize; i++ {
		pred := int64(0)
		for j, c := range coeffs {
			pred += c * window[len(window)-1-j]
		}
		v := pred + residuals[i-order]
		window = append(window, v)
		out[i] = int16(v << wasted)
	}
	return out, nil
}

// decodeResiduals reads a partitioned-Rice residual coding block for
// (blockSize-predictorOrder) samples, per RFC 9639 §9.2.6/9.2.7.
func (d *flacDecoder) decodeResiduals(blockSize, predictorOrder int) ([]int64, error) {
	method, err := d.br.readBits(2)
	if err != nil {
		return nil, err
	}
	if method > 1 {
		return nil, fmt.Errorf("audio: flac: %w: reserved residual coding method %d", ErrUnsupportedContent, method)
	}
	paramBits := 4
	escapeVal := uint64(0xF)
	if method == 1 {
		paramBits = 5
		escapeVal = 0x1F
	}
	partOrderBits, err := d.br.readBits(4)
	if err != nil {
		return nil, err
	}
	partitions := 1 << partOrderBits
	total := blockSize >> partOrderBits
	out := make([]int64, 0, blockSize-predictorOrder)
	for p := 0; p < partitions; p++ {
		param, err := d.br.readBits(uint(paramBits))
		if err != nil {
			return nil, err
		}
		count := total
		if p == 0 {
			count -= predictorOrder
		}
		if param == escapeVal {
			rawBits, err := d.br.readBits(5)
			if err != nil {
				return nil, err
			}
			for i := 0; i < count; i++ {
				v, err := d.br.readSigned(int(rawBits))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			continue
		}
		for i := 0; i < count; i++ {
			v, err := d.br.readRice(uint(param))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}
