package pipeline

import (
	"image"
	"sync"
)

// Mailbox is the single-slot handoff between the drive loop and the
// display side. The producer overwrites an unconsumed frame instead of
// queueing behind a slow consumer, so the consumer always gets the
// newest frame and memory stays bounded at one slot.
type Mailbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	frame *image.RGBA

	published uint64
	drops     uint64
	closed    bool
}

func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put publishes a frame, overwriting any unconsumed one. Never blocks.
// A Put after Close is dropped silently.
func (m *Mailbox) Put(frame *image.RGBA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.frame != nil {
		m.drops++
	}
	m.frame = frame
	m.published++
	m.cond.Signal()
}

// TryRecv returns the pending frame without blocking, or nil if the
// slot is empty. Intended for ticker-paced consumers.
func (m *Mailbox) TryRecv() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	frame := m.frame
	m.frame = nil
	return frame
}

// Recv blocks until a frame is available or the mailbox is closed.
// Returns ok=false once closed and drained.
func (m *Mailbox) Recv() (*image.RGBA, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.frame == nil {
		return nil, false
	}
	frame := m.frame
	m.frame = nil
	return frame, true
}

// Reset clears the slot and counters for a new producer run. Must not
// race with an active producer.
func (m *Mailbox) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = nil
	m.published = 0
	m.drops = 0
}

// Close wakes any blocked receiver. Puts after Close are ignored;
// a frame already in the slot remains receivable.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cond.Broadcast()
}

// Published returns the number of frames handed to Put.
func (m *Mailbox) Published() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

// Drops returns the number of frames overwritten before being consumed.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
