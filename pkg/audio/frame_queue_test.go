package audio

import (
	"testing"
	"time"
)

func TestFrameQueueExactFraming(t *testing.T) {
	q := NewFrameQueue(10)

	// 1.5 frames in: one frame out, remainder retained.
	q.Append(make([]byte, PCM16FrameBytes+PCM16FrameBytes/2))
	if q.Len() != 1 {
		t.Fatalf("expected 1 frame, got %d", q.Len())
	}

	// Another half frame completes the second frame.
	q.Append(make([]byte, PCM16FrameBytes/2))
	if q.Len() != 2 {
		t.Fatalf("expected 2 frames, got %d", q.Len())
	}

	frame, ok := q.Pull(time.Second)
	if !ok || len(frame) != PCM16FrameBytes {
		t.Fatalf("Pull returned ok=%v len=%d", ok, len(frame))
	}
}

func TestFrameQueuePullTimeout(t *testing.T) {
	q := NewFrameQueue(10)
	start := time.Now()
	frame, ok := q.Pull(20 * time.Millisecond)
	if ok || frame != nil {
		t.Fatal("expected timeout on empty queue")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Pull returned before timeout elapsed")
	}
}

func TestFrameQueueDropOldestWhenFull(t *testing.T) {
	q := NewFrameQueue(2)
	for i := 0; i < 5; i++ {
		frame := make([]byte, PCM16FrameBytes)
		frame[0] = byte(i)
		q.Append(frame)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 queued frames, got %d", q.Len())
	}
	if q.Dropped() != 3 {
		t.Errorf("expected 3 dropped frames, got %d", q.Dropped())
	}
	frame, ok := q.Pull(time.Second)
	if !ok || frame[0] != 3 {
		t.Errorf("expected oldest surviving frame 3, got %d (ok=%v)", frame[0], ok)
	}
}

func TestFrameQueueFlushTurnPadsRemainder(t *testing.T) {
	q := NewFrameQueue(10)
	partial := make([]byte, 10)
	for i := range partial {
		partial[i] = 0xAB
	}
	q.Append(partial)
	if q.Len() != 0 {
		t.Fatal("partial chunk should not enqueue a frame")
	}

	q.FlushTurn()
	frame, ok := q.Pull(time.Second)
	if !ok {
		t.Fatal("expected flushed frame")
	}
	if frame[0] != 0xAB || frame[9] != 0xAB {
		t.Error("flushed frame does not start with the partial data")
	}
	for i := 10; i < len(frame); i++ {
		if frame[i] != 0 {
			t.Fatalf("flushed frame not silence-padded at byte %d", i)
		}
	}
}

func TestFrameQueueClear(t *testing.T) {
	q := NewFrameQueue(10)
	q.Append(make([]byte, 3*PCM16FrameBytes+4))
	if n := q.Clear(); n != 3 {
		t.Errorf("Clear discarded %d frames, want 3", n)
	}
	// Remainder is gone too: a full frame worth of new data yields one frame.
	q.Append(make([]byte, PCM16FrameBytes))
	if q.Len() != 1 {
		t.Errorf("expected 1 frame after clear+append, got %d", q.Len())
	}
}

func TestFrameQueueCloseUnblocksPull(t *testing.T) {
	q := NewFrameQueue(10)
	done := make(chan struct{})
	go func() {
		q.Pull(5 * time.Second)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pull did not return after Close")
	}

	// Append after close is a no-op.
	q.Append(make([]byte, PCM16FrameBytes))
	if q.Len() != 0 {
		t.Error("Append after Close enqueued a frame")
	}
}
