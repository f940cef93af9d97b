package acquisition

import (
	"encoding/binary"
	"math"

	"github.com/finnstutzenstein/adcpd/internal/fftmath"
	"github.com/finnstutzenstein/adcpd/internal/streaming"
)

// fftMetadataSize is the per-sub-packet metadata record spec §4.3
// describes as "11-byte": channel(1) + sub_index(1) + sub_count(1) +
// frame_number(4) + frequency_resolution*1e5(4).
const fftMetadataSize = 11

// maxSinglePacket is the "fits in one <=4KiB packet" threshold of spec
// §4.3's worker algorithm.
const maxSinglePacket = 4096

// maxSubPacketPayload bounds a fragment so header+payload stays under
// the streaming engine's 65535 B frame ceiling (spec §4.3).
const maxSubPacketPayload = 65535 - fftMetadataSize

// fftSink adapts fftmath.Engine's transformed frames onto the streaming
// engine's FFT stream, implementing the single- or multi-packet delivery
// spec §4.3's worker algorithm describes.
type fftSink struct {
	stream *streaming.Engine
}

// NewFFTSink returns an fftmath.Sink that fragments and forwards
// transformed frames to stream's FFT queue. Callers wire it into
// fftmath.NewEngine when building the daemon's object graph.
func NewFFTSink(stream *streaming.Engine) fftmath.Sink {
	return &fftSink{stream: stream}
}

// Deliver implements fftmath.Sink.
func (s *fftSink) Deliver(channel int, inst *fftmath.Instance, frame fftmath.FrameReady, done func()) {
	body := encodeComplexPairs(frame.Re, frame.Im)
	total := fftMetadataSize + len(body)

	if total <= maxSinglePacket {
		payload := make([]byte, total)
		putMetadata(payload, channel, 0, 1, frame.FrameNumber, frame.FrequencyResBy1e5)
		copy(payload[fftMetadataSize:], body)
		if err := s.stream.Send(streaming.StreamFFT, payload, done); err != nil {
			done()
		}
		return
	}

	s.sendFragmented(channel, frame, body, done)
}

func (s *fftSink) sendFragmented(channel int, frame fftmath.FrameReady, body []byte, done func()) {
	perChunk := maxSubPacketPayload
	subCount := (len(body) + perChunk - 1) / perChunk
	if subCount == 0 {
		subCount = 1
	}

	var sendChunk func(idx int)
	sendChunk = func(idx int) {
		start := idx * perChunk
		end := start + perChunk
		if end > len(body) {
			end = len(body)
		}
		chunk := body[start:end]
		payload := make([]byte, fftMetadataSize+len(chunk))
		putMetadata(payload, channel, idx, subCount, frame.FrameNumber, frame.FrequencyResBy1e5)
		copy(payload[fftMetadataSize:], chunk)

		var cb func()
		if idx == subCount-1 {
			cb = done
		} else {
			next := idx + 1
			cb = func() { sendChunk(next) }
		}
		if err := s.stream.Send(streaming.StreamFFT, payload, cb) ; err != nil {
			done()
		}
	}
	sendChunk(0)
}

func putMetadata(buf []byte, channel, subIndex, subCount int, frameNumber uint32, freqResBy1e5 int64) {
	buf[0] = byte(channel)
	buf[1] = byte(subIndex)
	buf[2] = byte(subCount)
	binary.LittleEndian.PutUint32(buf[3:7], frameNumber)
	binary.LittleEndian.PutUint32(buf[7:11], uint32(int32(freqResBy1e5)))
}

func encodeComplexPairs(re, im []float32) []byte {
	out := make([]byte, len(re)*8)
	off := 0
	for i := range re {
		binary.LittleEndian.PutUint32(out[off:off+4], math.Float32bits(re[i]))
		binary.LittleEndian.PutUint32(out[off+4:off+8], math.Float32bits(im[i]))
		off += 8
	}
	return out
}
