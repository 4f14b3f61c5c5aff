package live

import (
	"sync"
	"sync/atomic"

	"ai-voice-tutor/internal/service/codec"
)

// Outbox is a bounded frame queue between Handle.Send and a transport's
// writer goroutine. When full, the oldest queued frame is dropped.
type Outbox struct {
	frames  chan codec.Blob
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	dropped atomic.Int64
}

// NewOutbox returns an outbox holding up to size frames.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = DefaultQueueLen
	}
	return &Outbox{
		frames: make(chan codec.Blob, size),
		done:   make(chan struct{}),
	}
}

// Push queues frame without blocking.
func (o *Outbox) Push(frame codec.Blob) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	select {
	case <-o.done:
		return ErrClosed
	default:
	}

	for {
		select {
		case o.frames <- frame:
			return nil
		default:
		}
		select {
		case <-o.frames:
			o.dropped.Add(1)
		default:
		}
	}
}

// Frames is drained by the writer goroutine.
func (o *Outbox) Frames() <-chan codec.Blob { return o.frames }

// Done is closed by Close.
func (o *Outbox) Done() <-chan struct{} { return o.done }

// Dropped returns how many frames were discarded because the queue was full.
func (o *Outbox) Dropped() int64 { return o.dropped.Load() }

// Close rejects further frames. Idempotent.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}
