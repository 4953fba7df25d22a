package models

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortOrdersByConfidenceThenLabel(t *testing.T) {
	dets := []Detection{
		{Label: "zebra", Confidence: 0.5},
		{Label: "apple", Confidence: 0.5},
		{Label: "dog", Confidence: 0.9},
	}
	Sort(dets)

	assert.Equal(t, "dog", dets[0].Label)
	assert.Equal(t, "apple", dets[1].Label)
	assert.Equal(t, "zebra", dets[2].Label)
}

func TestDetectionString(t *testing.T) {
	d := Detection{Label: "person", Confidence: 0.87, Box: image.Rect(1, 2, 3, 4)}
	assert.Equal(t, "person(0.87)@(1,2)-(3,4)", d.String())
}
