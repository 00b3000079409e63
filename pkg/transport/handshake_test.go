package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHandshake(t *testing.T) {
	hs, err := ParseHandshake("SESSION:abc-123:CALLER:+14155551234")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", hs.SessionID)
	assert.Equal(t, "+14155551234", hs.CallerID)
}

func TestParseHandshakeEmptyCaller(t *testing.T) {
	hs, err := ParseHandshake("SESSION:abc-123:CALLER:")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", hs.SessionID)
	assert.Empty(t, hs.CallerID)
}

func TestParseHandshakeTolerantOfTrailingPairs(t *testing.T) {
	hs, err := ParseHandshake("SESSION:u-1:CALLER:+1555:SR:8000:CH:1:FORMAT:PCM16")
	require.NoError(t, err)
	assert.Equal(t, "u-1", hs.SessionID)
	assert.Equal(t, "+1555", hs.CallerID)
}

func TestParseHandshakeRejections(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"missing caller segment", "SESSION:abc-123"},
		{"wrong caller keyword", "SESSION:abc-123:PHONE:+1555"},
		{"missing session id", "SESSION::CALLER:+1555"},
		{"wrong prefix", "HELLO:abc:CALLER:+1555"},
		{"empty line", ""},
		{"garbage", "\x00\x01\x02\x03"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHandshake(tc.line)
			assert.True(t, errors.Is(err, ErrBadHandshake), "expected ErrBadHandshake, got %v", err)
		})
	}
}

func TestHandshakeLineRoundTrip(t *testing.T) {
	hs := Handshake{SessionID: "s-9", CallerID: "+15551234567"}
	line := hs.Line()
	require.Equal(t, "SESSION:s-9:CALLER:+15551234567\n", line)

	parsed, err := ParseHandshake(line[:len(line)-1])
	require.NoError(t, err)
	assert.Equal(t, hs, parsed)
}
