package capture

import (
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const bytesPerPixel = 4 // RGBA

// Reader pulls raw RGBA frames sequentially from a decoder pipe. Each
// Next call advances the stream by exactly one frame and returns a
// freshly allocated image, so callers own their frame exclusively.
//
// Close kills the decoder subprocess, which unblocks an in-progress
// read; Next then reports ErrEndOfStream rather than an error.
type Reader struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	width  int
	height int

	// pace throttles file decoding to the display rate; nil for live
	// sources, which are paced by frame arrival.
	pace *time.Ticker
	stop chan struct{}

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newReader(cmd *exec.Cmd, out io.ReadCloser, width, height int, fps uint) *Reader {
	r := &Reader{
		cmd:    cmd,
		out:    out,
		width:  width,
		height: height,
		stop:   make(chan struct{}),
	}
	if fps > 0 {
		r.pace = time.NewTicker(time.Second / time.Duration(fps))
	}
	return r
}

// Size returns the frame dimensions produced by this reader.
func (r *Reader) Size() (width, height int) { return r.width, r.height }

// Next reads one frame. Returns ErrEndOfStream when the source is
// exhausted or the reader was closed, and a transient error for a
// short read mid-stream (e.g. a dropped segment on a network source).
func (r *Reader) Next() (*image.RGBA, error) {
	if r.isClosed() {
		return nil, ErrEndOfStream
	}
	if r.pace != nil {
		select {
		case <-r.pace.C:
		case <-r.stop:
			return nil, ErrEndOfStream
		}
	}

	buf := make([]byte, r.width*r.height*bytesPerPixel)
	if _, err := io.ReadFull(r.out, buf); err != nil {
		if r.isClosed() || errors.Is(err, io.EOF) {
			return nil, ErrEndOfStream
		}
		// A partial frame or pipe hiccup: the next read may land back
		// on a frame boundary, so let the caller decide how long to
		// keep trying.
		return nil, Transient(errors.Wrap(err, "frame read"))
	}

	return &image.RGBA{
		Pix:    buf,
		Stride: r.width * bytesPerPixel,
		Rect:   image.Rect(0, 0, r.width, r.height),
	}, nil
}

// Close releases the decoder. Safe to call more than once and
// concurrently with Next.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.stop)
		if r.pace != nil {
			r.pace.Stop()
		}
		if r.cmd != nil && r.cmd.Process != nil {
			r.cmd.Process.Kill()
			r.cmd.Wait()
		}
		r.out.Close()
	})
	return nil
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
