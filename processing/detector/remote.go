package detector

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/url"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"skywatch/internal/models"
	"skywatch/processing/capture"
)

// RemoteEngine delegates inference to a detector server over a
// websocket: one JPEG frame out, one JSON detection list back. The
// round-trip is synchronous, so at most one frame is ever in flight.
//
// A dropped connection is reported as transient and redialed on the
// next Detect, letting the pipeline ride out server restarts.
type RemoteEngine struct {
	serverURL     string
	confThreshold float32
	logger        golog.Logger

	conn *websocket.Conn
}

func NewRemoteEngine(host string, confThreshold float32, logger golog.Logger) (*RemoteEngine, error) {
	if confThreshold <= 0 {
		confThreshold = 0.5
	}
	if logger == nil {
		logger = golog.Global()
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	e := &RemoteEngine{
		serverURL:     u.String(),
		confThreshold: confThreshold,
		logger:        logger,
	}
	conn, _, err := websocket.DefaultDialer.Dial(e.serverURL, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoadFailed, "detector server %s: %v", e.serverURL, err)
	}
	e.conn = conn
	logger.Infow("connected to detector server", "url", e.serverURL)
	return e, nil
}

func (e *RemoteEngine) Detect(frame *image.RGBA) ([]models.Detection, error) {
	if e.conn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(e.serverURL, nil)
		if err != nil {
			return nil, capture.Transient(errors.Wrap(err, "redial detector server"))
		}
		e.logger.Infow("reconnected to detector server", "url", e.serverURL)
		e.conn = conn
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, nil); err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	if err := e.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		return nil, e.dropConn(err)
	}

	_, message, err := e.conn.ReadMessage()
	if err != nil {
		return nil, e.dropConn(err)
	}

	var results []models.DetectionResult
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, capture.Transient(errors.Wrap(err, "decode detections"))
	}
	return e.convert(results, frame.Bounds()), nil
}

func (e *RemoteEngine) dropConn(err error) error {
	e.conn.Close()
	e.conn = nil
	return capture.Transient(errors.Wrap(err, "detector connection lost"))
}

// convert maps the server's normalized [y1, x1, y2, x2] boxes into
// frame pixel coordinates and applies the confidence threshold.
func (e *RemoteEngine) convert(results []models.DetectionResult, bounds image.Rectangle) []models.Detection {
	w := float32(bounds.Dx())
	h := float32(bounds.Dy())

	dets := make([]models.Detection, 0, len(results))
	for _, r := range results {
		if len(r.Box) < 4 || r.Confidence < e.confThreshold {
			continue
		}
		dets = append(dets, models.Detection{
			Box: image.Rect(
				int(r.Box[1]*w), int(r.Box[0]*h),
				int(r.Box[3]*w), int(r.Box[2]*h),
			),
			Label:      r.Label,
			Confidence: r.Confidence,
		})
	}
	models.Sort(dets)
	return dets
}

func (e *RemoteEngine) Close() error {
	if e.conn != nil {
		err := e.conn.Close()
		e.conn = nil
		return err
	}
	return nil
}
