// frame_queue.go buffers outbound (AI → caller) audio and re-frames it.
//
// The AI endpoint emits audio in arbitrary-size chunks; the telephony side
// consumes exact 20 ms frames. FrameQueue accumulates chunks, emits exact
// PCM16FrameBytes frames, and supports instant clearing for barge-in.

package audio

import (
	"sync"
	"time"
)

// DefaultFrameQueueCapacity bounds queued playback to ~8 s at 50 fps.
const DefaultFrameQueueCapacity = 400

// FrameQueue converts a stream of PCM16 chunks into fixed-size frames.
//
// The queue is bounded: when full, the oldest frame is dropped so playback
// latency can never grow without limit. All methods are safe for concurrent
// use by one producer and one consumer.
type FrameQueue struct {
	mu        sync.Mutex
	frames    chan []byte
	remainder []byte
	closed    bool
	dropped   int
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultFrameQueueCapacity
	}
	return &FrameQueue{
		frames:    make(chan []byte, capacity),
		remainder: make([]byte, 0, PCM16FrameBytes),
	}
}

// Append adds a PCM16 chunk, slicing it into exact frames. Any trailing
// partial frame is retained until the next Append or FlushTurn. An
// odd-length chunk has its last byte dropped to preserve 16-bit alignment.
func (q *FrameQueue) Append(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	q.remainder = append(q.remainder, pcm...)
	for len(q.remainder) >= PCM16FrameBytes {
		frame := make([]byte, PCM16FrameBytes)
		copy(frame, q.remainder[:PCM16FrameBytes])
		q.remainder = q.remainder[PCM16FrameBytes:]
		q.enqueueLocked(frame)
	}
	// Compact so the retained remainder does not pin the old backing array.
	if len(q.remainder) > 0 && len(q.remainder) < cap(q.remainder)/2 {
		q.remainder = append(make([]byte, 0, PCM16FrameBytes), q.remainder...)
	}
}

func (q *FrameQueue) enqueueLocked(frame []byte) {
	select {
	case q.frames <- frame:
	default:
		// Full: drop the oldest frame to bound playback latency.
		select {
		case <-q.frames:
			q.dropped++
		default:
		}
		select {
		case q.frames <- frame:
		default:
		}
	}
}

// Pull waits up to timeout for the next frame. It returns (nil, false) when
// the timeout elapses or the queue is closed and drained.
func (q *FrameQueue) Pull(timeout time.Duration) ([]byte, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-q.frames:
		return frame, ok && frame != nil
	case <-timer.C:
		return nil, false
	}
}

// FlushTurn pads any retained partial frame with silence and enqueues it,
// so the tail of an AI turn is not held back waiting for more audio.
func (q *FrameQueue) FlushTurn() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.remainder) == 0 {
		return
	}
	frame := make([]byte, PCM16FrameBytes)
	copy(frame, q.remainder)
	q.remainder = q.remainder[:0]
	q.enqueueLocked(frame)
}

// Clear discards all queued frames and any partial remainder. It returns
// the number of whole frames discarded. Used for barge-in.
func (q *FrameQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	discarded := 0
	for {
		select {
		case <-q.frames:
			discarded++
		default:
			q.remainder = q.remainder[:0]
			return discarded
		}
	}
}

// Close stops the queue. Subsequent Appends are ignored and a blocked Pull
// returns once the queue drains.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.frames)
}

// Len reports the number of frames ready to pull.
func (q *FrameQueue) Len() int {
	return len(q.frames)
}

// Dropped reports how many frames were discarded due to backpressure.
func (q *FrameQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
