package audio

import "fmt"

const (
	// CaptureSampleRate is the rate the remote endpoint expects microphone
	// audio in.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate the remote endpoint streams audio out in.
	PlaybackSampleRate = 24000
	// DefaultFrameSize is the number of samples captured per processing tick.
	DefaultFrameSize = 256
)

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

// MIMEType returns the raw PCM mime type tag the endpoint uses to identify
// the sample rate of an inline audio blob.
func (e EncodingInfo) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", e.SampleRate)
}

type encodingFormat string

const EncodingLinear16 encodingFormat = "linear16"
