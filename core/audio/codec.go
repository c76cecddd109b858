package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrDecode is returned when an inbound audio payload cannot be turned into
// samples. Callers drop the offending chunk and keep streaming.
var ErrDecode = errors.New("malformed audio payload")

const pcm16Scale = 32768

// Blob is one PCM16 frame ready to be sent over the wire. Data is base64.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// EncodeFrame converts float samples into a base64 PCM16 blob tagged with
// sampleRate.
func EncodeFrame(samples []float32, sampleRate int) Blob {
	info := EncodingInfo{SampleRate: sampleRate, Channels: 1, Format: EncodingLinear16}
	return Blob{
		MIMEType: info.MIMEType(),
		Data:     base64.StdEncoding.EncodeToString(EncodePCM16(samples)),
	}
}

// PCM returns the raw little-endian PCM16 bytes carried by the blob.
func (b Blob) PCM() ([]byte, error) {
	return DecodeBase64(b.Data)
}

// EncodePCM16 packs samples as little-endian signed 16-bit integers.
// Out-of-range input is clamped rather than wrapped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := math.Round(float64(s) * pcm16Scale)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// DecodeToFloat maps little-endian PCM16 bytes back to floats in [-1, 1).
func DecodeToFloat(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: odd pcm16 length %d", ErrDecode, len(pcm))
	}

	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / pcm16Scale
	}
	return out, nil
}

// DecodeBase64 decodes an inline data payload.
func DecodeBase64(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return raw, nil
}

// DecodeAudioBuffer builds a playable chunk from raw PCM16 bytes. Samples of
// multi-channel audio stay interleaved.
func DecodeAudioBuffer(raw []byte, sampleRate, channels int) (Chunk, error) {
	if sampleRate <= 0 || channels <= 0 {
		return Chunk{}, fmt.Errorf("%w: invalid format %d Hz x %d channels", ErrDecode, sampleRate, channels)
	}

	samples, err := DecodeToFloat(raw)
	if err != nil {
		return Chunk{}, err
	}
	if len(samples)%channels != 0 {
		return Chunk{}, fmt.Errorf("%w: %d samples do not split into %d channels", ErrDecode, len(samples), channels)
	}

	return Chunk{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// Chunk is one decoded unit of playback audio.
type Chunk struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (c Chunk) Frames() int {
	if c.Channels <= 0 {
		return len(c.Samples)
	}
	return len(c.Samples) / c.Channels
}

// Duration is the playback length of the chunk in seconds.
func (c Chunk) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// Channel returns the samples of channel ch, de-interleaved.
func (c Chunk) Channel(ch int) []float32 {
	if c.Channels <= 1 {
		return c.Samples
	}
	out := make([]float32, c.Frames())
	for i := range out {
		out[i] = c.Samples[i*c.Channels+ch]
	}
	return out
}
