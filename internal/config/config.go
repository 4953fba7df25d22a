package config

import (
	"encoding/json"
	"os"
	"sync"

	"skywatch/processing/capture"
)

type SourceType string

const (
	SourceLocal  SourceType = "Local"
	SourceWebcam SourceType = "Web-Camera"
	SourceRemote SourceType = "Remote URL"

	DefaultConfigPath string = "config.json"

	DetectorONNX   string = "onnx"
	DetectorRemote string = "remote"
)

var SourcesList = [...]string{
	string(SourceLocal),
	string(SourceWebcam),
	string(SourceRemote),
}

type LocalConfig struct {
	Path string `json:"path"`
}

type WebcamConfig struct {
	DeviceID string `json:"device_id"`
}

type RemoteConfig struct {
	URL string `json:"url"`
}

type ModelConfig struct {
	Path       string  `json:"path"`
	Labels     string  `json:"labels"`
	Library    string  `json:"library,omitempty"`
	InputSize  int     `json:"input_size"`
	Confidence float32 `json:"confidence"`
	IOU        float32 `json:"iou"`
}

type DetectorConfig struct {
	Mode       string `json:"mode"`
	RemoteHost string `json:"remote_host"`
}

type Config struct {
	mu sync.RWMutex

	ActiveSource SourceType `json:"active_source"`
	TargetFPS    uint       `json:"target_fps"`
	ScaledWidth  int        `json:"scaled_width"`
	ScaledHeight int        `json:"scaled_height"`

	Local  LocalConfig  `json:"local"`
	Webcam WebcamConfig `json:"webcam"`
	Remote RemoteConfig `json:"remote"`

	Model    ModelConfig    `json:"model"`
	Detector DetectorConfig `json:"detector"`
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledHeight = height
}

func (c *Config) GetConfidence() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Model.Confidence
}

func (c *Config) SetConfidence(conf float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Model.Confidence = conf
}

// Descriptor builds the capture source selected by the active section.
func (c *Config) Descriptor() capture.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.ActiveSource {
	case SourceWebcam:
		return capture.CameraSource(c.Webcam.DeviceID)
	case SourceRemote:
		return capture.RemoteSource(c.Remote.URL)
	default:
		return capture.FileSource(c.Local.Path)
	}
}

func (c *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func (c *Config) SaveByDefault() {
	c.Save(DefaultConfigPath)
}

func LoadConfigFile(path string) *Config {
	cfg := NewDefaultConfig()

	if _, err := os.Stat(path); err == nil {
		f, err := os.Open(path)
		if err != nil {
			return cfg
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return NewDefaultConfig()
		}
	}

	return cfg
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource: SourceLocal,
		Local:        LocalConfig{Path: ""},
		Webcam:       WebcamConfig{DeviceID: "/dev/video0"},
		Remote:       RemoteConfig{URL: ""},
		TargetFPS:    24,
		ScaledWidth:  640,
		ScaledHeight: 640,
		Model: ModelConfig{
			Path:       "yolov8n.onnx",
			Labels:     "coco.yaml",
			InputSize:  640,
			Confidence: 0.5,
			IOU:        0.45,
		},
		Detector: DetectorConfig{
			Mode:       DetectorONNX,
			RemoteHost: "localhost:8080",
		},
	}
}
