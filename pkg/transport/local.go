// local.go implements the direct media capture transport variant: audio is
// taken straight from the host's capture device and played back on its
// playback device, with no proxy in between. Useful for desk testing the
// bridge without any telephony infrastructure.

package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
)

// LocalTransport captures and plays 8 kHz S16 mono audio on host devices.
// The handshake is synthesized: there is no caller id to present.
type LocalTransport struct {
	audioContext   *malgo.AllocatedContext
	captureDevice  *malgo.Device
	playbackDevice *malgo.Device

	frames chan []byte // capture → ReadFrame
	remMu  sync.Mutex
	rem    []byte // partial capture frame carried between callbacks

	playMu     sync.Mutex
	playBuffer []byte

	closed        atomic.Bool
	closeCh       chan struct{}
	handshakeDone bool
	sessionID     string
}

var _ Transport = (*LocalTransport)(nil)

// NewLocalTransport opens the default capture and playback devices.
func NewLocalTransport() (*LocalTransport, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: init audio context: %w", err)
	}

	t := &LocalTransport{
		audioContext: ctx,
		frames:       make(chan []byte, 50),
		closeCh:      make(chan struct{}),
		sessionID:    uuid.New().String(),
	}

	if err := t.startCapture(); err != nil {
		_ = ctx.Uninit()
		return nil, err
	}
	if err := t.startPlayback(); err != nil {
		t.captureDevice.Uninit()
		_ = ctx.Uninit()
		return nil, err
	}
	return t, nil
}

func (t *LocalTransport) startCapture() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.PeriodSizeInMilliseconds = audio.FrameDurationMs
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = audio.SampleRate
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(t.audioContext.Context, cfg, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			t.onCaptured(inputSamples)
		},
	})
	if err != nil {
		return fmt.Errorf("transport: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("transport: start capture device: %w", err)
	}
	t.captureDevice = device
	return nil
}

// onCaptured re-frames device callbacks into exact 20 ms frames. The device
// period is requested as 20 ms but the driver may deliver other sizes.
func (t *LocalTransport) onCaptured(samples []byte) {
	if t.closed.Load() {
		return
	}
	t.remMu.Lock()
	t.rem = append(t.rem, samples...)
	for len(t.rem) >= audio.PCM16FrameBytes {
		frame := make([]byte, audio.PCM16FrameBytes)
		copy(frame, t.rem[:audio.PCM16FrameBytes])
		t.rem = t.rem[audio.PCM16FrameBytes:]
		select {
		case t.frames <- frame:
		default:
			// Reader stalled; dropping capture is better than blocking
			// inside the device callback.
		}
	}
	t.remMu.Unlock()
}

func (t *LocalTransport) startPlayback() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.PeriodSizeInMilliseconds = audio.FrameDurationMs
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = audio.SampleRate
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(t.audioContext.Context, cfg, malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, framecount uint32) {
			t.playMu.Lock()
			n := copy(outputSamples, t.playBuffer)
			t.playBuffer = t.playBuffer[n:]
			t.playMu.Unlock()
			for i := n; i < len(outputSamples); i++ {
				outputSamples[i] = 0
			}
		},
	})
	if err != nil {
		return fmt.Errorf("transport: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("transport: start playback device: %w", err)
	}
	t.playbackDevice = device
	return nil
}

// Handshake synthesizes an identity record with a generated session id.
func (t *LocalTransport) Handshake(ctx context.Context) (Handshake, error) {
	if t.handshakeDone {
		return Handshake{}, fmt.Errorf("%w: handshake already read", ErrBadHandshake)
	}
	t.handshakeDone = true
	return Handshake{SessionID: t.sessionID}, nil
}

func (t *LocalTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-t.frames:
		return frame, nil
	case <-t.closeCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *LocalTransport) WriteFrame(frame []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.playMu.Lock()
	t.playBuffer = append(t.playBuffer, frame...)
	t.playMu.Unlock()
	return nil
}

// SendHangup on a local device session just ends the capture.
func (t *LocalTransport) SendHangup() error {
	return t.Close()
}

func (t *LocalTransport) Encoding() audio.Encoding { return audio.EncodingPCM16 }

func (t *LocalTransport) RemoteAddr() string { return "local-device" }

func (t *LocalTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.closeCh)
	t.captureDevice.Uninit()
	t.playbackDevice.Uninit()
	return t.audioContext.Uninit()
}
