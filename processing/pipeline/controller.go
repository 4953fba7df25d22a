// Package pipeline owns the run/stop lifecycle of the detection loop:
// it pulls frames from a resolved source, runs them through a detector,
// annotates the results and hands the newest annotated frame to the
// display side through a single-slot mailbox. The loop runs on its own
// goroutine so inference latency never blocks the UI.
package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"skywatch/internal/models"
	"skywatch/processing/capture"
)

// State of a pipeline instance. Transitions are driven only by
// Start/Stop and by terminal failures from the stream or detector.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stream yields frames one at a time. Next blocks until a frame is
// available and returns capture.ErrEndOfStream when the source is
// exhausted or closed. Close releases the underlying handle and
// unblocks an in-progress Next.
type Stream interface {
	Next() (*image.RGBA, error)
	Close() error
}

// Opener resolves a source descriptor into an open frame stream.
type Opener interface {
	Open(ctx context.Context, desc capture.Descriptor) (Stream, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, desc capture.Descriptor) (Stream, error)

func (f OpenerFunc) Open(ctx context.Context, desc capture.Descriptor) (Stream, error) {
	return f(ctx, desc)
}

// Detector runs inference on a single frame. Called only from the
// worker goroutine, never concurrently.
type Detector interface {
	Detect(frame *image.RGBA) ([]models.Detection, error)
}

// AnnotateFunc overlays detections onto a frame.
type AnnotateFunc func(frame *image.RGBA, dets []models.Detection) *image.RGBA

// Stats is a point-in-time snapshot of loop throughput.
type Stats struct {
	FPS     uint
	Latency time.Duration
	Frames  uint64
	Dropped uint64
}

// Config assembles a Controller. Opener and Detector are required.
type Config struct {
	Opener   Opener
	Detector Detector
	Annotate AnnotateFunc

	// OnError receives every transient error and exactly one error per
	// transition into the failed state. Called from the worker
	// goroutine (or from Start, for resolution failures); must not
	// block for long.
	OnError func(error)

	Logger golog.Logger

	// MaxTransient is the number of consecutive transient errors
	// tolerated before escalating to a fatal failure. Zero means the
	// default of 30.
	MaxTransient int
}

const defaultMaxTransient = 30

// Controller is the pipeline state machine. All exported methods are
// safe for concurrent use.
type Controller struct {
	opener       Opener
	det          Detector
	annotate     AnnotateFunc
	onError      func(error)
	logger       golog.Logger
	maxTransient int

	out *Mailbox

	startMu sync.Mutex // serializes Start calls

	mu      sync.Mutex
	state   State
	failure error
	stop    chan struct{}
	done    chan struct{}

	fps        uint
	latency    time.Duration
	frameCount uint64
}

func New(cfg Config) *Controller {
	c := &Controller{
		opener:       cfg.Opener,
		det:          cfg.Detector,
		annotate:     cfg.Annotate,
		onError:      cfg.OnError,
		logger:       cfg.Logger,
		maxTransient: cfg.MaxTransient,
		out:          NewMailbox(),
	}
	if c.annotate == nil {
		c.annotate = func(frame *image.RGBA, _ []models.Detection) *image.RGBA { return frame }
	}
	if c.onError == nil {
		c.onError = func(error) {}
	}
	if c.logger == nil {
		c.logger = golog.Global()
	}
	if c.maxTransient <= 0 {
		c.maxTransient = defaultMaxTransient
	}
	return c
}

// Frames returns the output mailbox the display side consumes from.
func (c *Controller) Frames() *Mailbox { return c.out }

// State returns the current pipeline state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure that put the pipeline into StateFailed, or
// nil. Cleared by the next successful Start.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Stats returns a snapshot of loop throughput counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		FPS:     c.fps,
		Latency: c.latency,
		Frames:  c.frameCount,
		Dropped: c.out.Drops(),
	}
}

// Start resolves the descriptor and begins the drive loop. A running
// pipeline is stopped first; at most one worker exists per controller.
// Resolution failures are returned synchronously, reported once, and
// leave the pipeline Idle.
func (c *Controller) Start(desc capture.Descriptor) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.haltWorker()

	runID := uuid.NewString()[:8]
	logger := c.logger.With("run", runID, "source", desc.String())

	stream, err := c.opener.Open(context.Background(), desc)
	if err != nil {
		err = errors.Wrapf(err, "open %s", desc)
		logger.Errorw("source open failed", "error", err)
		c.onError(err)
		return err
	}

	c.mu.Lock()
	c.state = StateRunning
	c.failure = nil
	c.fps = 0
	c.latency = 0
	c.frameCount = 0
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	// A frame left over from the previous source must never be the
	// first thing the consumer sees on the new run.
	c.out.Reset()

	logger.Infow("pipeline started")
	go c.run(stream, stop, done, logger)
	return nil
}

// Stop requests a graceful halt and returns immediately. The worker
// observes the request within one frame cycle, releases the source
// handle and transitions the pipeline back to Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}
	c.state = StateStopping
	close(c.stop)
}

// Wait blocks until the current worker has exited and released its
// source. Returns immediately when no worker is active. Callers that
// tear down shared resources the worker uses (the inference engine)
// must Stop and Wait before releasing them.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// haltWorker stops any active worker and waits for it to exit.
func (c *Controller) haltWorker() {
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StateStopping
		close(c.stop)
	}
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) run(stream Stream, stop, done chan struct{}, logger golog.Logger) {
	defer close(done)

	// Closing the stream unblocks an in-progress Next, so a Stop
	// issued mid-read is observed promptly. The terminal state is not
	// published until the close has completed, so an Idle (or Failed)
	// reading always means the source handle is already released.
	loopExited := make(chan struct{})
	streamClosed := make(chan struct{})
	go func() {
		defer close(streamClosed)
		select {
		case <-stop:
		case <-loopExited:
		}
		if err := stream.Close(); err != nil {
			logger.Debugw("stream close", "error", err)
		}
	}()

	finalState, finalErr := StateIdle, error(nil)
	defer func() {
		close(loopExited)
		<-streamClosed
		c.finish(finalState, finalErr, logger)
	}()

	transientRun := 0
	var frameCount uint
	lastFPSUpdate := time.Now()

	for {
		select {
		case <-stop:
			return
		default:
		}

		start := time.Now()
		frame, err := stream.Next()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				logger.Infow("end of stream")
				return
			}
			var fatal error
			if transientRun, fatal = c.tolerate(err, transientRun, logger); fatal != nil {
				finalState, finalErr = StateFailed, fatal
				return
			}
			continue
		}

		dets, err := c.det.Detect(frame)
		if err != nil {
			var fatal error
			if transientRun, fatal = c.tolerate(err, transientRun, logger); fatal != nil {
				finalState, finalErr = StateFailed, fatal
				return
			}
			continue
		}
		transientRun = 0

		c.out.Put(c.annotate(frame, dets))

		elapsed := time.Since(start)
		frameCount++
		c.mu.Lock()
		c.frameCount++
		c.latency = elapsed
		if since := time.Since(lastFPSUpdate); since >= time.Second {
			c.fps = frameCount
			frameCount = 0
			lastFPSUpdate = time.Now()
		}
		c.mu.Unlock()
	}
}

// tolerate handles a mid-run error: transient errors are reported and
// counted against the consecutive budget, anything else is fatal.
// Returns the updated transient run length and, when the loop must
// exit, the error the run fails with.
func (c *Controller) tolerate(err error, run int, logger golog.Logger) (int, error) {
	if !capture.IsTransient(err) {
		return run, err
	}
	run++
	logger.Warnw("transient error", "error", err, "consecutive", run)
	c.onError(err)
	if run >= c.maxTransient {
		return run, errors.Wrapf(err, "%d consecutive transient errors", run)
	}
	return run, nil
}

// finish moves the pipeline into its terminal state for this run.
// A failure is reported exactly once.
func (c *Controller) finish(state State, err error, logger golog.Logger) {
	c.mu.Lock()
	c.state = state
	c.failure = err
	c.mu.Unlock()
	if err != nil {
		logger.Errorw("pipeline failed", "error", err)
		c.onError(err)
		return
	}
	logger.Infow("pipeline stopped")
}
