// Package detector wraps pretrained object-detection models behind a
// synchronous Engine interface and draws their output onto frames.
package detector

import (
	"image"
	"os"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"skywatch/internal/models"
)

// ErrModelLoadFailed means the engine could not be constructed:
// missing weights, unusable runtime library, bad labels file or an
// unreachable detector server. Fatal to pipeline start.
var ErrModelLoadFailed = errors.New("model load failed")

// Engine runs inference on one frame at a time. Detect is called only
// from the pipeline worker goroutine; implementations need not be safe
// for concurrent Detect calls. Results are ordered by descending
// confidence, ties broken by ascending label.
type Engine interface {
	Detect(frame *image.RGBA) ([]models.Detection, error)
	Close() error
}

// The ONNX runtime environment is process-global.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXConfig configures a local YOLO-family ONNX engine.
type ONNXConfig struct {
	// ModelPath is the ONNX weights file. Required.
	ModelPath string
	// LabelsPath is a YAML class-name list matching the model head.
	LabelsPath string
	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath string

	// InputSize is the square model input edge; 640 when zero.
	InputSize int
	// ConfidenceThreshold excludes detections scoring below it;
	// 0.5 when zero.
	ConfidenceThreshold float32
	// IOUThreshold is the non-max-suppression overlap cutoff;
	// 0.45 when zero.
	IOUThreshold float32

	Logger golog.Logger
}

// ONNXEngine runs a YOLOv8-style detection model through onnxruntime.
// The model is loaded once at construction.
type ONNXEngine struct {
	session *ort.DynamicAdvancedSession
	labels  []string
	logger  golog.Logger

	inputSize     int
	confThreshold float32
	iouThreshold  float32
}

func NewONNXEngine(cfg ONNXConfig) (*ONNXEngine, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.IOUThreshold <= 0 {
		cfg.IOUThreshold = 0.45
	}
	if cfg.Logger == nil {
		cfg.Logger = golog.Global()
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(ErrModelLoadFailed, "weights %s: %v", cfg.ModelPath, err)
	}
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoadFailed, "labels %s: %v", cfg.LabelsPath, err)
	}
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, errors.Wrapf(ErrModelLoadFailed, "onnxruntime init: %v", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoadFailed, "session options: %v", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, errors.Wrapf(ErrModelLoadFailed, "optimization level: %v", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"images"}, []string{"output0"}, opts)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoadFailed, "load %s: %v", cfg.ModelPath, err)
	}

	cfg.Logger.Infow("model loaded",
		"weights", cfg.ModelPath,
		"classes", len(labels),
		"input", cfg.InputSize,
		"threshold", cfg.ConfidenceThreshold,
	)

	return &ONNXEngine{
		session:       session,
		labels:        labels,
		logger:        cfg.Logger,
		inputSize:     cfg.InputSize,
		confThreshold: cfg.ConfidenceThreshold,
		iouThreshold:  cfg.IOUThreshold,
	}, nil
}

// Detect runs one frame through the model and returns detections in
// frame pixel coordinates, thresholded, suppressed and ordered.
// Deterministic for identical frame bytes and a fixed threshold.
func (e *ONNXEngine) Detect(frame *image.RGBA) ([]models.Detection, error) {
	input := chwTensor(frame, e.inputSize)

	inputShape := ort.NewShape(1, 3, int64(e.inputSize), int64(e.inputSize))
	inputTensor, err := ort.NewTensor(inputShape, input)
	if err != nil {
		return nil, errors.Wrap(err, "input tensor")
	}
	defer inputTensor.Destroy()

	anchors := anchorCount(e.inputSize)
	features := 4 + len(e.labels)
	outputShape := ort.NewShape(1, int64(features), int64(anchors))
	outputTensor, err := ort.NewTensor(outputShape, make([]float32, features*anchors))
	if err != nil {
		return nil, errors.Wrap(err, "output tensor")
	}
	defer outputTensor.Destroy()

	if err := e.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, errors.Wrap(err, "inference")
	}

	raw, err := decodeOutput(outputTensor.GetData(), outputTensor.GetShape(), e.confThreshold)
	if err != nil {
		return nil, err
	}
	raw = suppress(raw, e.iouThreshold)

	bounds := frame.Bounds()
	scaleX := float32(bounds.Dx()) / float32(e.inputSize)
	scaleY := float32(bounds.Dy()) / float32(e.inputSize)
	return toDetections(raw, e.labels, scaleX, scaleY), nil
}

func (e *ONNXEngine) Close() error {
	e.session.Destroy()
	return nil
}
