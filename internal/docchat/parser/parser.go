// Package parser turns uploaded files into plain text ready for chunking.
// Plain text formats are handled in-process; binary formats are delegated to
// an extraction service.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Result is the outcome of parsing one document.
type Result struct {
	// PageTexts holds the extracted text per page, in order. Formats
	// without pages produce a single entry.
	PageTexts []string

	// Pages is the page count.
	Pages int
}

// Text returns the full document text.
func (r *Result) Text() string {
	return strings.Join(r.PageTexts, "\n\n")
}

// Parser extracts text from a raw document.
type Parser interface {
	// Parse extracts text from the file content.
	Parse(ctx context.Context, filename string, data []byte) (*Result, error)

	// Ping verifies the parser is operational.
	Ping(ctx context.Context) error
}

// Dispatcher routes files to a parser based on their extension.
type Dispatcher struct {
	parsers map[string]Parser
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{parsers: make(map[string]Parser)}
}

// Register maps extensions (with dots, lower case) to a parser.
func (d *Dispatcher) Register(p Parser, exts ...string) {
	for _, ext := range exts {
		d.parsers[strings.ToLower(ext)] = p
	}
}

// Parse dispatches to the parser registered for the file's extension.
func (d *Dispatcher) Parse(ctx context.Context, filename string, data []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	p, ok := d.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("no parser registered for extension %q", ext)
	}
	return p.Parse(ctx, filename, data)
}

// Ping probes every registered parser and returns the first failure.
func (d *Dispatcher) Ping(ctx context.Context) error {
	seen := make(map[Parser]bool)
	for _, p := range d.parsers {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
