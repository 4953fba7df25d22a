package models

import (
	"fmt"
	"image"
	"sort"
)

// Detection is one predicted object instance within a single frame.
// Box is in pixel coordinates of the frame the detection was made on.
type Detection struct {
	Box        image.Rectangle
	Label      string
	Confidence float32
}

func (d Detection) String() string {
	return fmt.Sprintf("%s(%.2f)@%v", d.Label, d.Confidence, d.Box)
}

// DetectionResult is the wire format spoken by the detector server:
// normalized [y1, x1, y2, x2] box plus label and confidence.
type DetectionResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

// Sort orders detections by descending confidence, breaking ties by
// ascending label so the result is reproducible for identical inputs.
func Sort(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].Confidence != dets[j].Confidence {
			return dets[i].Confidence > dets[j].Confidence
		}
		return dets[i].Label < dets[j].Label
	})
}
