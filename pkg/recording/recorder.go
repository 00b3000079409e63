// Package recording captures both directions of a call and renders them as
// a stereo WAV on completion: caller audio on the left channel, synthesized
// audio on the right. Channels advance independently while the call runs and
// are reconciled once, at finalize time, by zero-padding the shorter one.
package recording

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	wav "github.com/youpy/go-wav"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// DefaultMaxDuration caps a recording. Audio past the cap is counted but
// not stored.
const DefaultMaxDuration = time.Hour

// Config parameterizes one recorder.
type Config struct {
	SessionID string
	CallerID  string

	// MaxDuration caps stored audio per channel. Zero means
	// DefaultMaxDuration.
	MaxDuration time.Duration

	// InboundGain and OutboundGain scale samples before storage.
	// Zero means 1.0 (no scaling).
	InboundGain  float64
	OutboundGain float64

	Sink Sink

	// Logger overrides the global logger.
	Logger *zap.Logger
}

// Stats reports recorder progress.
type Stats struct {
	InboundSamples  int
	OutboundSamples int
	DroppedSamples  int
	Finished        bool
}

// Recorder accumulates PCM16 samples for one call.
type Recorder struct {
	sessionID string
	callerID  string
	started   time.Time

	maxSamples int
	inGain     float64
	outGain    float64
	sink       Sink

	mu       sync.Mutex
	inbound  []int16
	outbound []int16
	dropped  int
	finished bool
	location string

	log *zap.Logger
}

// NewRecorder returns a recorder ready to receive audio. A nil sink
// discards the finished WAV.
func NewRecorder(cfg Config) *Recorder {
	maxDur := cfg.MaxDuration
	if maxDur <= 0 {
		maxDur = DefaultMaxDuration
	}
	sink := cfg.Sink
	if sink == nil {
		sink = DiscardSink{}
	}
	inGain := cfg.InboundGain
	if inGain == 0 {
		inGain = 1.0
	}
	outGain := cfg.OutboundGain
	if outGain == 0 {
		outGain = 1.0
	}
	log := cfg.Logger
	if log == nil {
		log = logger.L()
	}
	return &Recorder{
		sessionID:  cfg.SessionID,
		callerID:   cfg.CallerID,
		started:    time.Now(),
		maxSamples: int(maxDur.Seconds() * audio.SampleRate),
		inGain:     inGain,
		outGain:    outGain,
		sink:       sink,
		log: log.With(
			zap.String("component", "recorder"),
			zap.String("session_id", cfg.SessionID),
		),
	}
}

// RecordInbound appends caller audio. pcm is little-endian PCM16; an odd
// trailing byte is ignored.
func (r *Recorder) RecordInbound(pcm []byte) {
	r.record(pcm, true)
}

// RecordOutbound appends synthesized audio.
func (r *Recorder) RecordOutbound(pcm []byte) {
	r.record(pcm, false)
}

func (r *Recorder) record(pcm []byte, inbound bool) {
	n := len(pcm) / audio.BytesPerSample
	if n == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}

	buf := &r.outbound
	gain := r.outGain
	if inbound {
		buf = &r.inbound
		gain = r.inGain
	}

	for i := 0; i < n; i++ {
		if len(*buf) >= r.maxSamples {
			r.dropped += n - i
			return
		}
		s := int16(binary.LittleEndian.Uint16(pcm[i*audio.BytesPerSample:]))
		*buf = append(*buf, scaleSample(s, gain))
	}
}

func scaleSample(s int16, gain float64) int16 {
	if gain == 1.0 {
		return s
	}
	v := float64(s) * gain
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

// Stats returns a snapshot of recorder progress.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		InboundSamples:  len(r.inbound),
		OutboundSamples: len(r.outbound),
		DroppedSamples:  r.dropped,
		Finished:        r.finished,
	}
}

// FinishAndUpload renders the stereo WAV and stores it through the sink,
// returning the stored location. Repeated calls return the first outcome
// without re-rendering. Upload failure is reported but the recorder still
// ends finished; a call is never held open for its recording.
func (r *Recorder) FinishAndUpload(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.finished {
		loc := r.location
		r.mu.Unlock()
		r.log.Warn("recording already finished", zap.String("location", loc))
		return loc, nil
	}
	r.finished = true

	total := len(r.inbound)
	if len(r.outbound) > total {
		total = len(r.outbound)
	}
	if total == 0 {
		r.mu.Unlock()
		r.log.Info("recording empty, nothing to store")
		return "", nil
	}
	inbound, outbound := r.inbound, r.outbound
	r.inbound, r.outbound = nil, nil
	r.mu.Unlock()

	data, err := renderStereoWAV(inbound, outbound, total)
	if err != nil {
		return "", fmt.Errorf("recording: render wav: %w", err)
	}

	key := r.objectKey()
	loc, err := r.sink.Store(ctx, key, data)
	if err != nil {
		r.log.Error("recording upload failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("recording: store %s: %w", key, err)
	}

	r.mu.Lock()
	r.location = loc
	r.mu.Unlock()

	r.log.Info("recording stored",
		zap.String("location", loc),
		zap.Int("samples", total),
		zap.Duration("audio_duration", time.Duration(total)*time.Second/audio.SampleRate))
	return loc, nil
}

// objectKey follows yyyy-mm-dd/<caller digits>-<session id>-<hhmmss>.wav.
func (r *Recorder) objectKey() string {
	digits := strings.Map(func(c rune) rune {
		if c >= '0' && c <= '9' {
			return c
		}
		return -1
	}, r.callerID)
	if digits == "" {
		digits = "unknown"
	}
	return fmt.Sprintf("%s/%s-%s-%s.wav",
		r.started.Format("2006-01-02"),
		digits,
		r.sessionID,
		r.started.Format("150405"))
}

func renderStereoWAV(left, right []int16, total int) ([]byte, error) {
	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(total), 2, audio.SampleRate, 16)

	samples := make([]wav.Sample, total)
	for i := 0; i < total; i++ {
		if i < len(left) {
			samples[i].Values[0] = int(left[i])
		}
		if i < len(right) {
			samples[i].Values[1] = int(right[i])
		}
	}
	if err := w.WriteSamples(samples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
