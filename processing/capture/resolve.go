package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// Resolver turns a source descriptor into an open frame stream. It
// owns the output geometry: every source is decoded and scaled to the
// same width/height so downstream stages see uniform frames.
//
// There are no retries at this layer; a failure is surfaced
// immediately and the caller decides what is user-visible.
type Resolver struct {
	streams StreamResolver
	width   int
	height  int
	fps     uint
	logger  golog.Logger
}

func NewResolver(streams StreamResolver, width, height int, fps uint, logger golog.Logger) *Resolver {
	if logger == nil {
		logger = golog.Global()
	}
	if fps == 0 {
		fps = 24
	}
	return &Resolver{
		streams: streams,
		width:   width,
		height:  height,
		fps:     fps,
		logger:  logger,
	}
}

// Open resolves desc and starts the decoder. Camera and file sources
// that cannot be opened yield ErrSourceUnavailable; a remote URL the
// collaborator cannot resolve yields ErrResolutionFailed.
func (r *Resolver) Open(ctx context.Context, desc Descriptor) (*Reader, error) {
	switch desc.Kind() {
	case KindCamera:
		return r.openCamera(desc.Device())
	case KindFile:
		return r.openFile(desc.Path())
	case KindRemote:
		return r.openRemote(ctx, desc.URL())
	default:
		return nil, errors.Wrapf(ErrSourceUnavailable, "unknown source kind %q", desc.Kind())
	}
}

func (r *Resolver) openCamera(device string) (*Reader, error) {
	var args []string
	if runtime.GOOS == "windows" {
		args = []string{
			"-f", "dshow",
			"-i", fmt.Sprintf("video=%s", device),
		}
	} else {
		if _, err := os.Stat(device); err != nil {
			return nil, errors.Wrapf(ErrSourceUnavailable, "camera %s: %v", device, err)
		}
		args = []string{
			"-f", "v4l2",
			"-i", device,
		}
	}
	args = append(args, r.rawVideoArgs()...)
	// Live source: frames arrive at camera rate, no pacing ticker.
	return r.startDecoder(args, 0)
}

func (r *Resolver) openFile(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "file %s: %v", path, err)
	}
	if _, _, err := probeDimensions(path); err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "probe %s: %v", path, err)
	}
	args := append([]string{"-i", path}, r.rawVideoArgs()...)
	return r.startDecoder(args, r.fps)
}

func (r *Resolver) openRemote(ctx context.Context, pageURL string) (*Reader, error) {
	if r.streams == nil {
		return nil, errors.Wrap(ErrResolutionFailed, "no stream resolver configured")
	}
	direct, err := r.streams.Resolve(ctx, pageURL)
	if err != nil {
		return nil, errors.Wrapf(ErrResolutionFailed, "%s: %v", pageURL, err)
	}
	r.logger.Debugw("resolved remote stream", "page", pageURL)
	args := append([]string{"-i", direct}, r.rawVideoArgs()...)
	return r.startDecoder(args, 0)
}

func (r *Resolver) rawVideoArgs() []string {
	return []string{
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", r.fps, r.width, r.height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}
}

func (r *Resolver) startDecoder(args []string, paceFPS uint) (*Reader, error) {
	cmd := exec.Command("ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "decoder pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "ffmpeg start: %v; %s", err, stderr.String())
	}

	return newReader(cmd, stdout, r.width, r.height, paceFPS), nil
}
