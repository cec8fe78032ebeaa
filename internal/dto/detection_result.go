package dto

import (
	"fmt"
	"image"
)

// DetectionResult is one object found in a frame. Box corners are in frame pixels.
type DetectionResult struct {
	Box        image.Rectangle
	Confidence float32
	ClassID    int
	Label      string
}

// Caption is the text drawn above the box: class name and confidence to two decimals.
func (d DetectionResult) Caption() string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}
