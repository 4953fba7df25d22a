package capture

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
)

// ListDevices enumerates capture devices the camera source can use.
// On Windows it parses ffmpeg's dshow device listing; elsewhere it
// globs the v4l2 device nodes.
func ListDevices() ([]string, error) {
	if runtime.GOOS == "windows" {
		return listDshowDevices()
	}

	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	devices := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, err := os.Stat(m); err == nil {
			devices = append(devices, m)
		}
	}
	return devices, nil
}

var dshowVideoRe = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

func listDshowDevices() ([]string, error) {
	// ffmpeg prints the device list on stderr and exits non-zero;
	// the exit status carries no signal here.
	cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Run()

	var devices []string
	seen := make(map[string]bool)
	for _, m := range dshowVideoRe.FindAllStringSubmatch(stderr.String(), -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			devices = append(devices, name)
			seen[name] = true
		}
	}
	return devices, nil
}
