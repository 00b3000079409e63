package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
)

func wsTestPair(t *testing.T) (*WSTransport, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	accepted := make(chan *WSTransport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		accepted <- NewWSTransport(conn, audio.EncodingPCM16)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	tr := <-accepted
	t.Cleanup(func() { tr.Close() })
	return tr, client
}

func TestWSHandshakeAndFrames(t *testing.T) {
	tr, client := wsTestPair(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("SESSION:ws-1:CALLER:+1777\n")))
	hs, err := tr.Handshake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ws-1", hs.SessionID)
	assert.Equal(t, "+1777", hs.CallerID)

	frame := make([]byte, audio.PCM16FrameBytes)
	frame[0] = 0x5A
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, frame))

	got, err := tr.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestWSBinaryBeforeHandshakeRejected(t *testing.T) {
	tr, client := wsTestPair(t)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, make([]byte, audio.PCM16FrameBytes)))
	_, err := tr.Handshake(context.Background())
	assert.ErrorIs(t, err, ErrBadHandshake)
}

func TestWSWrongFrameSizeRejected(t *testing.T) {
	tr, client := wsTestPair(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("SESSION:ws-2:CALLER:\n")))
	_, err := tr.Handshake(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, make([]byte, 100)))
	_, err = tr.ReadFrame(context.Background())
	assert.Error(t, err)
}

func TestWSHangupIsTextControlMessage(t *testing.T) {
	tr, client := wsTestPair(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("SESSION:ws-3:CALLER:\n")))
	_, err := tr.Handshake(context.Background())
	require.NoError(t, err)

	require.NoError(t, tr.SendHangup())

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "hangup", msg["type"])
}

func TestWSWriteFrame(t *testing.T) {
	tr, client := wsTestPair(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("SESSION:ws-4:CALLER:\n")))
	_, err := tr.Handshake(context.Background())
	require.NoError(t, err)

	frame := make([]byte, audio.PCM16FrameBytes)
	frame[10] = 0x33
	require.NoError(t, tr.WriteFrame(frame))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, frame, data)
}
