package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/wudi/pdfkit/extractor"
	"github.com/wudi/pdfkit/ir"
)

// PDFExtractor pulls embedded text out of typed PDF submissions. Scanned
// PDFs without a text layer come back as StatusFailure; teachers are
// expected to upload those page images directly instead.
type PDFExtractor struct{}

// NewPDFExtractor constructs a PDF text extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract parses the PDF and concatenates per-page text in page order.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte, format string) (Result, error) {
	pipe := ir.NewDefault()
	doc, err := pipe.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("parse pdf: %w", err)
	}

	dec := doc.Decoded()
	if dec == nil {
		return Result{}, fmt.Errorf("pdf pipeline produced no decoded document")
	}

	ext, err := extractor.New(dec)
	if err != nil {
		return Result{}, fmt.Errorf("init pdf extractor: %w", err)
	}

	pages, err := ext.ExtractText()
	if err != nil {
		return Result{}, fmt.Errorf("extract pdf text: %w", err)
	}

	var builder strings.Builder
	for _, page := range pages {
		content := strings.TrimSpace(page.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(content)
	}

	text := builder.String()
	if text == "" {
		return Result{Status: StatusFailure}, nil
	}

	// Embedded text carries no recognition uncertainty.
	return Result{Status: StatusSuccess, Text: text, Confidence: 1.0}, nil
}
