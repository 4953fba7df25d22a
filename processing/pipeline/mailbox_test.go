package pipeline

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestMailboxLatestWins(t *testing.T) {
	m := NewMailbox()

	first := testFrame(2, 2)
	second := testFrame(4, 4)
	third := testFrame(8, 8)

	m.Put(first)
	m.Put(second)
	m.Put(third)

	got := m.TryRecv()
	require.NotNil(t, got)
	assert.Same(t, third, got, "consumer must see the newest frame")
	assert.Nil(t, m.TryRecv(), "slot holds at most one frame")

	assert.Equal(t, uint64(3), m.Published())
	assert.Equal(t, uint64(2), m.Drops())
}

func TestMailboxSlowConsumerBoundedToOneSlot(t *testing.T) {
	m := NewMailbox()

	const produced = 100
	for i := 0; i < produced; i++ {
		m.Put(testFrame(2, 2))
	}

	pending := 0
	for m.TryRecv() != nil {
		pending++
	}
	assert.Equal(t, 1, pending)
	assert.Equal(t, uint64(produced-1), m.Drops())
}

func TestMailboxRecvBlocksUntilPut(t *testing.T) {
	m := NewMailbox()
	frame := testFrame(2, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	var got *image.RGBA
	go func() {
		defer wg.Done()
		got, _ = m.Recv()
	}()

	time.Sleep(20 * time.Millisecond)
	m.Put(frame)
	wg.Wait()

	assert.Same(t, frame, got)
}

func TestMailboxCloseUnblocksRecv(t *testing.T) {
	m := NewMailbox()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := m.Recv()
		assert.False(t, ok)
	}()

	m.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}

	m.Put(testFrame(2, 2))
	assert.Equal(t, uint64(0), m.Published(), "puts after close are dropped")
}

func TestMailboxResetClearsSlotAndCounters(t *testing.T) {
	m := NewMailbox()
	m.Put(testFrame(2, 2))
	m.Put(testFrame(2, 2))

	m.Reset()
	assert.Nil(t, m.TryRecv())
	assert.Equal(t, uint64(0), m.Published())
	assert.Equal(t, uint64(0), m.Drops())

	fresh := testFrame(4, 4)
	m.Put(fresh)
	assert.Same(t, fresh, m.TryRecv(), "reset mailbox still accepts frames")
}

func TestMailboxConcurrentProducerConsumer(t *testing.T) {
	m := NewMailbox()

	const produced = 500
	go func() {
		for i := 0; i < produced; i++ {
			m.Put(testFrame(2, 2))
		}
		m.Close()
	}()

	consumed := 0
	for {
		_, ok := m.Recv()
		if !ok {
			break
		}
		consumed++
		// Simulated slow display.
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, uint64(produced), m.Published())
	assert.Equal(t, uint64(consumed)+m.Drops(), m.Published(),
		"every frame is either consumed or counted as dropped")
	assert.Positive(t, m.Drops(), "a slow consumer must drop intermediate frames")
}
