package capture

import (
	"encoding/json"
	"os/exec"

	"github.com/pkg/errors"
)

type probeData struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// probeDimensions asks ffprobe for the native geometry of the first
// video stream. Used as an openability check before decoding starts.
func probeDimensions(path string) (int, int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}

	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}
	if len(data.Streams) == 0 {
		return 0, 0, errors.New("no video streams found")
	}

	return data.Streams[0].Width, data.Streams[0].Height, nil
}
