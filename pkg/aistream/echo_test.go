package aistream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEcho(t *testing.T) Stream {
	t.Helper()
	d := &EchoDialer{}
	s, err := d.Dial(context.Background(), Config{SessionID: "echo-test"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEchoLoopsAudioBack(t *testing.T) {
	s := dialEcho(t)
	ctx := context.Background()

	require.NoError(t, s.StartAudioContent(ctx))
	chunk := []byte{1, 2, 3, 4}
	require.NoError(t, s.SendAudioChunk(ctx, chunk))

	select {
	case ev := <-s.Events():
		assert.Equal(t, EventAudioOutput, ev.Type)
		assert.Equal(t, chunk, ev.Audio)
	case <-time.After(time.Second):
		t.Fatal("no echoed event")
	}
}

func TestEchoDropsAudioBeforeStart(t *testing.T) {
	s := dialEcho(t)

	require.NoError(t, s.SendAudioChunk(context.Background(), []byte{1, 2}))
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event before start: %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEchoCloseIdempotentAndTerminal(t *testing.T) {
	s := dialEcho(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.SendAudioChunk(context.Background(), []byte{1, 2})
	assert.ErrorIs(t, err, ErrStreamClosed)

	_, open := <-s.Events()
	assert.False(t, open, "events channel should be closed")
}
