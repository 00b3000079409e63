package audio

import (
	"bytes"
	"testing"
)

func TestMuLawSilence(t *testing.T) {
	// μ-law encodes digital silence as 0xFF.
	if got := MuLawEncode(0); got != 0xFF {
		t.Errorf("MuLawEncode(0) = 0x%02X, want 0xFF", got)
	}
	if got := MuLawDecode(0xFF); got != 0 {
		t.Errorf("MuLawDecode(0xFF) = %d, want 0", got)
	}
}

func TestMuLawRoundTripStable(t *testing.T) {
	// μ-law is lossy, but decode→encode must be the identity for every
	// byte value: each code maps to one quantization level.
	for i := 0; i < 256; i++ {
		b := byte(i)
		pcm := MuLawDecode(b)
		got := MuLawEncode(pcm)
		if MuLawDecode(got) != pcm {
			t.Errorf("code 0x%02X: decode→encode→decode changed %d to %d", b, pcm, MuLawDecode(got))
		}
	}
}

func TestDecodeULawFrameDeterministic(t *testing.T) {
	frame := make([]byte, ULawFrameBytes)
	for i := range frame {
		frame[i] = byte(i * 7)
	}

	first := DecodeULawFrame(frame)
	second := DecodeULawFrame(frame)
	if !bytes.Equal(first, second) {
		t.Error("repeated decode of identical input produced different output")
	}
	if len(first) != PCM16FrameBytes {
		t.Errorf("decoded frame is %d bytes, want %d", len(first), PCM16FrameBytes)
	}
}

func TestULawFrameSampleCountPreserved(t *testing.T) {
	for _, n := range []int{0, 1, 160, 333} {
		in := make([]byte, n)
		out := DecodeULawFrame(in)
		if len(out) != n*2 {
			t.Errorf("DecodeULawFrame(%d samples) produced %d bytes, want %d", n, len(out), n*2)
		}
		back := EncodeULawFrame(out)
		if len(back) != n {
			t.Errorf("EncodeULawFrame round trip: %d samples, want %d", len(back), n)
		}
	}
}

func TestEncodeULawFrameIgnoresTrailingOddByte(t *testing.T) {
	pcm := make([]byte, 7)
	if got := EncodeULawFrame(pcm); len(got) != 3 {
		t.Errorf("got %d samples, want 3", len(got))
	}
}

func TestEncodeULawFrameClipping(t *testing.T) {
	// Near-max samples must clip instead of wrapping.
	pcm := []byte{0xFF, 0x7F, 0x01, 0x80} // 32767, -32767
	out := EncodeULawFrame(pcm)
	if MuLawDecode(out[0]) < 0 {
		t.Error("positive full-scale sample encoded as negative")
	}
	if MuLawDecode(out[1]) > 0 {
		t.Error("negative full-scale sample encoded as positive")
	}
}
