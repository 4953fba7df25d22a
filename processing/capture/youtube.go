package capture

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// StreamResolver turns a page URL into a direct, openable media URL.
type StreamResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// YTDLP resolves URLs by shelling out to yt-dlp, which covers YouTube
// and the long tail of sites its extractors support.
type YTDLP struct {
	// Bin overrides the executable name; defaults to "yt-dlp".
	Bin string
}

func (y *YTDLP) Resolve(ctx context.Context, pageURL string) (string, error) {
	bin := y.Bin
	if bin == "" {
		bin = "yt-dlp"
	}

	cmd := exec.CommandContext(ctx, bin, "-g", "-f", "best", pageURL)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", errors.Errorf("yt-dlp: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", errors.Wrap(err, "yt-dlp")
	}

	direct := strings.TrimSpace(string(output))
	if direct == "" {
		return "", errors.New("yt-dlp returned no stream URL")
	}
	// -g can print one URL per stream; the first is the muxed format.
	if i := strings.IndexByte(direct, '\n'); i >= 0 {
		direct = direct[:i]
	}
	return direct, nil
}
