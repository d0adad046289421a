package ocr

import (
	"context"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor handles txt submissions, which need no recognition.
type PlainTextExtractor struct{}

// NewPlainTextExtractor constructs a passthrough extractor for text files.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract decodes the bytes as UTF-8 text, dropping an optional BOM.
func (e *PlainTextExtractor) Extract(ctx context.Context, data []byte, format string) (Result, error) {
	text := strings.TrimPrefix(string(data), "\uFEFF")
	if !utf8.ValidString(text) {
		return Result{Status: StatusFailure}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Status: StatusFailure}, nil
	}

	return Result{Status: StatusSuccess, Text: text, Confidence: 1.0}, nil
}
