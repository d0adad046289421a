package ocr

import (
	"context"
	"strings"
)

// FormatRouter dispatches extraction to a format-specific extractor: txt
// passthrough, embedded PDF text, and OCR for everything else (images).
type FormatRouter struct {
	plain Extractor
	pdf   Extractor
	image Extractor
}

// NewFormatRouter builds the composite extractor used by the pipeline.
func NewFormatRouter(plain, pdf, image Extractor) *FormatRouter {
	return &FormatRouter{plain: plain, pdf: pdf, image: image}
}

// Extract routes by the declared file type recorded at ingestion time.
func (r *FormatRouter) Extract(ctx context.Context, data []byte, format string) (Result, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "txt":
		return r.plain.Extract(ctx, data, format)
	case "pdf":
		return r.pdf.Extract(ctx, data, format)
	default:
		return r.image.Extract(ctx, data, format)
	}
}
