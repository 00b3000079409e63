// Package audio provides the sample-format plumbing for the bridge:
// G.711 μ-law ↔ linear PCM16 transcoding and fixed 20 ms frame handling.
//
// Both the telephony side and the AI side run at 8 kHz mono; resampling is
// deliberately out of scope.
package audio

// Fixed audio parameters shared by every interface in the system.
const (
	SampleRate      = 8000 // Hz, both ends of the bridge
	FrameDurationMs = 20
	BytesPerSample  = 2 // 16-bit linear PCM

	// SamplesPerFrame is the number of samples in one 20 ms frame.
	SamplesPerFrame = SampleRate * FrameDurationMs / 1000 // 160

	// PCM16FrameBytes is the wire size of one linear PCM16 frame.
	PCM16FrameBytes = SamplesPerFrame * BytesPerSample // 320

	// ULawFrameBytes is the wire size of one μ-law frame (1 byte/sample).
	ULawFrameBytes = SamplesPerFrame // 160
)

// Encoding tags the sample format carried by a transport.
type Encoding int

const (
	// EncodingPCM16 - 16-bit signed little-endian linear PCM.
	EncodingPCM16 Encoding = iota
	// EncodingULaw - G.711 μ-law companded 8-bit samples.
	EncodingULaw
)

func (e Encoding) String() string {
	switch e {
	case EncodingPCM16:
		return "pcm16"
	case EncodingULaw:
		return "ulaw"
	default:
		return "unknown"
	}
}

// FrameBytes returns the size in bytes of one 20 ms frame in the encoding.
func FrameBytes(e Encoding) int {
	if e == EncodingULaw {
		return ULawFrameBytes
	}
	return PCM16FrameBytes
}
