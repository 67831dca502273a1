package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TextParser handles plain text and markdown in-process.
type TextParser struct{}

// NewTextParser creates a text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

var _ Parser = (*TextParser)(nil)

// Parse validates the content as UTF-8 and normalizes line endings.
func (p *TextParser) Parse(_ context.Context, filename string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("file %q is empty", filename)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file %q is not valid UTF-8 text", filename)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("file %q contains no text", filename)
	}

	return &Result{
		PageTexts: []string{text},
		Pages:     1,
	}, nil
}

// Ping always succeeds, the text parser has no external dependency.
func (p *TextParser) Ping(_ context.Context) error {
	return nil
}
