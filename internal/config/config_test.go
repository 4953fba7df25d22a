package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/processing/capture"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg := LoadConfigFile(filepath.Join(t.TempDir(), "absent.json"))

	assert.Equal(t, SourceLocal, cfg.ActiveSource)
	assert.Equal(t, uint(24), cfg.GetFPS())
	assert.Equal(t, 640, cfg.GetWidth())
	assert.Equal(t, float32(0.5), cfg.GetConfidence())
	assert.Equal(t, DetectorONNX, cfg.Detector.Mode)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := NewDefaultConfig()
	cfg.ActiveSource = SourceRemote
	cfg.Remote.URL = "https://youtube.com/watch?v=abc"
	cfg.SetFPS(30)
	cfg.SetWidth(1280)
	cfg.SetHeight(720)
	cfg.SetConfidence(0.65)
	cfg.Model.Path = "weights/yolov8s.onnx"
	require.NoError(t, cfg.Save(path))

	loaded := LoadConfigFile(path)
	assert.Equal(t, SourceRemote, loaded.ActiveSource)
	assert.Equal(t, "https://youtube.com/watch?v=abc", loaded.Remote.URL)
	assert.Equal(t, uint(30), loaded.GetFPS())
	assert.Equal(t, 1280, loaded.GetWidth())
	assert.Equal(t, 720, loaded.GetHeight())
	assert.Equal(t, float32(0.65), loaded.GetConfidence())
	assert.Equal(t, "weights/yolov8s.onnx", loaded.Model.Path)
}

func TestDescriptorFollowsActiveSource(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Local.Path = "/videos/drone.mp4"
	cfg.Webcam.DeviceID = "/dev/video2"
	cfg.Remote.URL = "https://youtube.com/watch?v=xyz"

	cfg.ActiveSource = SourceLocal
	assert.Equal(t, capture.FileSource("/videos/drone.mp4"), cfg.Descriptor())

	cfg.ActiveSource = SourceWebcam
	assert.Equal(t, capture.CameraSource("/dev/video2"), cfg.Descriptor())

	cfg.ActiveSource = SourceRemote
	assert.Equal(t, capture.RemoteSource("https://youtube.com/watch?v=xyz"), cfg.Descriptor())
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	cfg := LoadConfigFile(path)
	assert.Equal(t, SourceLocal, cfg.ActiveSource)
	assert.Equal(t, uint(24), cfg.GetFPS())
}
