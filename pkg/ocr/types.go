package ocr

import "context"

// Status reports the adapter-level outcome of a recognition attempt.
type Status string

const (
	// StatusSuccess indicates text was recognized.
	StatusSuccess Status = "success"
	// StatusFailure indicates the input was readable but yielded no usable text.
	StatusFailure Status = "failure"
)

// Result is the outcome of one extraction attempt. Confidence is normalized
// to [0, 1]; embedded-text formats report 1.
type Result struct {
	Status     Status  `json:"status"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Extractor converts submission bytes of a declared format into text. The
// pipeline treats the recognition algorithm as opaque: it only inspects
// Status, Text, and Confidence. Mechanical failures (broken engine, bad
// image data) are returned as errors; recognizable-but-empty inputs are
// returned as StatusFailure with a nil error.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format string) (Result, error)
}
