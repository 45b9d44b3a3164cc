package conveyorService

import (
	"ConveyorVision/pkg/metrics"
	"sync"
	"time"
)

type StreamFrame struct {
	Data       []byte
	CapturedAt time.Time
}

// mailbox is a single-slot buffer. A new frame overwrites one the consumer
// has not taken yet, so analysis always works on the latest frame.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frame   *StreamFrame
	dropped uint64
	closed  bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// offer stores f and reports whether an unconsumed frame was overwritten.
func (m *mailbox) offer(f StreamFrame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	dropped := m.frame != nil
	if dropped {
		m.dropped++
	}
	m.frame = &f
	m.cond.Signal()
	return dropped
}

// next blocks until a frame is available or the mailbox is closed.
func (m *mailbox) next() (StreamFrame, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return StreamFrame{}, m.dropped, false
	}

	f := *m.frame
	m.frame = nil
	return f, m.dropped, true
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Stream feeds one websocket connection's frames to a single analysis
// worker. Offer is called by the reader, Next by the worker.
type Stream struct {
	CameraID string

	slot    *mailbox
	metrics *metrics.Metrics
	once    sync.Once
}

func (s *conveyorService) OpenStream(cameraID string) *Stream {
	s.metrics.ActiveStreams.Add(1)
	return &Stream{CameraID: cameraID, slot: newMailbox(), metrics: s.metrics}
}

func (st *Stream) Offer(data []byte, capturedAt time.Time) {
	if st.slot.offer(StreamFrame{Data: data, CapturedAt: capturedAt}) {
		st.metrics.FramesDropped.Add(1)
	}
}

// Next returns the latest frame and the number of frames dropped so far. It
// returns false once the stream is closed.
func (st *Stream) Next() (StreamFrame, uint64, bool) {
	return st.slot.next()
}

func (st *Stream) Close() {
	st.once.Do(func() {
		st.slot.close()
		st.metrics.ActiveStreams.Add(-1)
	})
}
