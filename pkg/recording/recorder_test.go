package recording

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wav "github.com/youpy/go-wav"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
)

type captureSink struct {
	key  string
	data []byte
	errv error
}

func (s *captureSink) Store(_ context.Context, key string, data []byte) (string, error) {
	if s.errv != nil {
		return "", s.errv
	}
	s.key = key
	s.data = data
	return "mem://" + key, nil
}

// pcmFrame builds one 20ms frame where every sample equals value.
func pcmFrame(value int16) []byte {
	frame := make([]byte, audio.PCM16FrameBytes)
	for i := 0; i < audio.SamplesPerFrame; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(value))
	}
	return frame
}

func readAllSamples(t *testing.T, data []byte) (*wav.WavFormat, []wav.Sample) {
	t.Helper()
	r := wav.NewReader(bytes.NewReader(data))
	format, err := r.Format()
	require.NoError(t, err)

	var all []wav.Sample
	for {
		chunk, err := r.ReadSamples(4096)
		all = append(all, chunk...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	return format, all
}

func TestFinishPadsShorterChannel(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(Config{SessionID: "pad-test", CallerID: "+15551234", Sink: sink})

	for i := 0; i < 100; i++ {
		rec.RecordInbound(pcmFrame(1000))
	}
	for i := 0; i < 60; i++ {
		rec.RecordOutbound(pcmFrame(-2000))
	}

	loc, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	assert.Contains(t, loc, "pad-test")

	format, samples := readAllSamples(t, sink.data)
	assert.Equal(t, uint16(2), format.NumChannels)
	assert.Equal(t, uint32(audio.SampleRate), format.SampleRate)
	assert.Equal(t, uint16(16), format.BitsPerSample)
	require.Len(t, samples, 100*audio.SamplesPerFrame)

	// Left channel is full length; right channel carries audio for the
	// first 60 frames and silence for the rest.
	assert.Equal(t, 1000, samples[0].Values[0])
	assert.Equal(t, -2000, samples[0].Values[1])
	last := samples[len(samples)-1]
	assert.Equal(t, 1000, last.Values[0])
	assert.Equal(t, 0, last.Values[1])
	boundary := samples[60*audio.SamplesPerFrame]
	assert.Equal(t, 0, boundary.Values[1])
}

func TestFinishIdempotent(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(Config{SessionID: "idem", Sink: sink})
	rec.RecordInbound(pcmFrame(7))

	first, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	stored := sink.data

	second, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, stored, sink.data, "second finish must not re-render")

	rec.RecordInbound(pcmFrame(9))
	assert.Equal(t, 0, rec.Stats().InboundSamples, "audio after finish is ignored")
}

func TestFinishTwiceWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := NewRecorder(Config{SessionID: "twice", Sink: &captureSink{}, Logger: zap.New(core)})
	rec.RecordInbound(pcmFrame(3))

	_, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs.FilterMessage("recording already finished").All())

	_, err = rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	assert.Len(t, logs.FilterMessage("recording already finished").All(), 1)
}

func TestEmptyRecordingStoresNothing(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(Config{SessionID: "empty", Sink: sink})

	loc, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loc)
	assert.Nil(t, sink.data)
}

func TestObjectKeyLayout(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(Config{SessionID: "abc-123", CallerID: "+1 (555) 777-0000", Sink: sink})
	rec.RecordInbound(pcmFrame(1))

	_, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}/15557770000-abc-123-\d{6}\.wav$`), sink.key)
}

func TestObjectKeyUnknownCaller(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(Config{SessionID: "s", Sink: sink})
	rec.RecordOutbound(pcmFrame(1))

	_, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `/unknown-s-`, sink.key)
}

func TestMaxDurationCapsStorage(t *testing.T) {
	rec := NewRecorder(Config{
		SessionID:   "cap",
		MaxDuration: 20 * time.Millisecond, // one frame
		Sink:        &captureSink{},
	})
	rec.RecordInbound(pcmFrame(5))
	rec.RecordInbound(pcmFrame(5))

	stats := rec.Stats()
	assert.Equal(t, audio.SamplesPerFrame, stats.InboundSamples)
	assert.Equal(t, audio.SamplesPerFrame, stats.DroppedSamples)
}

func TestGainScalesAndClips(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(Config{SessionID: "gain", InboundGain: 4.0, Sink: sink})
	rec.RecordInbound(pcmFrame(1000))  // scales to 4000
	rec.RecordInbound(pcmFrame(20000)) // clips to 32767

	_, err := rec.FinishAndUpload(context.Background())
	require.NoError(t, err)

	_, samples := readAllSamples(t, sink.data)
	assert.Equal(t, 4000, samples[0].Values[0])
	assert.Equal(t, 32767, samples[audio.SamplesPerFrame].Values[0])
}

func TestDirSinkWritesFile(t *testing.T) {
	dir := t.TempDir()
	sink := DirSink{Dir: dir}

	loc, err := sink.Store(context.Background(), "2025-01-02/123-s-120000.wav", []byte("RIFF"))
	require.NoError(t, err)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)
}

func TestUploadFailureStillFinishes(t *testing.T) {
	sink := &captureSink{errv: assert.AnError}
	rec := NewRecorder(Config{SessionID: "fail", Sink: sink})
	rec.RecordInbound(pcmFrame(1))

	_, err := rec.FinishAndUpload(context.Background())
	require.Error(t, err)
	assert.True(t, rec.Stats().Finished)
}
