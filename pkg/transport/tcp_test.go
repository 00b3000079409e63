package transport

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
)

func pipeTransport(t *testing.T, enc audio.Encoding) (*TCPTransport, io.ReadWriteCloser) {
	t.Helper()
	client, server := netPipe()
	tr := NewTCPTransport(server, enc)
	t.Cleanup(func() {
		_ = tr.Close()
		_ = client.Close()
	})
	return tr, client
}

func TestTCPHandshakeThenFrames(t *testing.T) {
	tr, client := pipeTransport(t, audio.EncodingPCM16)

	frame := make([]byte, audio.PCM16FrameBytes)
	for i := range frame {
		frame[i] = byte(i)
	}
	go func() {
		client.Write([]byte("SESSION:call-1:CALLER:+15005550006\n"))
		client.Write(frame)
	}()

	hs, err := tr.Handshake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "call-1", hs.SessionID)
	assert.Equal(t, "+15005550006", hs.CallerID)

	got, err := tr.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestTCPHandshakeSplitAcrossWrites(t *testing.T) {
	// The identity line may arrive byte-by-byte; no audio after the
	// newline may be consumed by handshake buffering.
	tr, client := pipeTransport(t, audio.EncodingULaw)

	go func() {
		for _, b := range []byte("SESSION:s:CALLER:\n") {
			client.Write([]byte{b})
		}
		client.Write(make([]byte, audio.ULawFrameBytes))
	}()

	hs, err := tr.Handshake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s", hs.SessionID)

	got, err := tr.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, audio.ULawFrameBytes)
}

func TestTCPAudioBeforeHandshakeRejected(t *testing.T) {
	tr, client := pipeTransport(t, audio.EncodingPCM16)

	go func() {
		// A kilobyte of audio with no newline anywhere.
		junk := make([]byte, 1024)
		for i := range junk {
			junk[i] = 0x42
		}
		client.Write(junk)
	}()

	_, err := tr.Handshake(context.Background())
	assert.True(t, errors.Is(err, ErrBadHandshake))
}

func TestTCPHandshakeTimeout(t *testing.T) {
	tr, _ := pipeTransport(t, audio.EncodingPCM16)
	tr.handshakeTimeout = 50 * time.Millisecond

	_, err := tr.Handshake(context.Background())
	assert.True(t, errors.Is(err, ErrBadHandshake))
}

func TestTCPSendHangupControlMessage(t *testing.T) {
	tr, client := pipeTransport(t, audio.EncodingPCM16)

	errCh := make(chan error, 1)
	go func() { errCh <- tr.SendHangup() }()

	prefix := make([]byte, 4)
	_, err := io.ReadFull(client, prefix)
	require.NoError(t, err)
	payload := make([]byte, binary.BigEndian.Uint32(prefix))
	_, err = io.ReadFull(client, payload)
	require.NoError(t, err)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "hangup", msg["type"])
	require.NoError(t, <-errCh)
}

func TestTCPCloseUnblocksRead(t *testing.T) {
	tr, _ := pipeTransport(t, audio.EncodingPCM16)

	done := make(chan error, 1)
	go func() {
		_, err := tr.ReadFrame(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("ReadFrame did not return after Close")
	}

	// Close is idempotent.
	assert.NoError(t, tr.Close())
}

func TestTCPServerAcceptsAndHandsOffTransport(t *testing.T) {
	accepted := make(chan Transport, 1)
	srv := NewTCPServer(TCPServerConfig{Addr: "127.0.0.1:0"}, func(tr Transport) {
		accepted <- tr
	}, testLogger())
	require.NoError(t, srv.Start())
	defer srv.Close()

	conn := dialTCP(t, srv.Addr().String())
	defer conn.Close()
	conn.Write([]byte("SESSION:srv-1:CALLER:+1999\n"))

	select {
	case tr := <-accepted:
		hs, err := tr.Handshake(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "srv-1", hs.SessionID)
		assert.Equal(t, audio.EncodingPCM16, tr.Encoding())
		tr.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("no transport accepted")
	}
}

func TestTCPServerCloseDoesNotWaitOnLiveCalls(t *testing.T) {
	accepted := make(chan struct{})
	release := make(chan struct{})
	srv := NewTCPServer(TCPServerConfig{Addr: "127.0.0.1:0"}, func(tr Transport) {
		close(accepted)
		<-release // handler blocks for the life of the call
		tr.Close()
	}, testLogger())
	require.NoError(t, srv.Start())
	defer close(release)

	conn := dialTCP(t, srv.Addr().String())
	defer conn.Close()
	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never accepted")
	}

	closed := make(chan error, 1)
	go func() { closed <- srv.Close() }()

	// Close must return once the listener is down, even though the call
	// handler is still running.
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked on a live call handler")
	}
}
