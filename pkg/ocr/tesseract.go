package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
)

// TesseractExtractor recognizes handwritten or scanned answer sheets using a
// local Tesseract installation via gosseract.
type TesseractExtractor struct {
	languages     []string
	clientFactory func() *gosseract.Client
	logger        zerolog.Logger
}

// NewTesseractExtractor builds a Tesseract-backed extractor. Languages
// default to English when none are supplied.
func NewTesseractExtractor(languages []string, logger zerolog.Logger) *TesseractExtractor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractExtractor{
		languages:     languages,
		clientFactory: gosseract.NewClient,
		logger:        logger.With().Str("component", "tesseract_extractor").Logger(),
	}
}

// Extract runs OCR over the image bytes. Confidence is the mean word
// confidence reported by Tesseract, scaled to [0, 1].
func (e *TesseractExtractor) Extract(ctx context.Context, data []byte, format string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if err := client.SetLanguage(e.languages...); err != nil {
		return Result{}, fmt.Errorf("set languages: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	plain := strings.TrimSpace(text)
	confidence := meanWordConfidence(client)
	if plain == "" {
		e.logger.Debug().Str("format", format).Msg("ocr produced no text")
		return Result{Status: StatusFailure, Confidence: confidence}, nil
	}

	return Result{Status: StatusSuccess, Text: plain, Confidence: confidence}, nil
}

func meanWordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var total float64
	for _, box := range boxes {
		total += box.Confidence
	}
	return total / float64(len(boxes)) / 100.0
}
