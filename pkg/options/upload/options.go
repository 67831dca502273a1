// Package upload provides document upload configuration options.
package upload

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains document upload configuration.
type Options struct {
	// AllowedExtensions is the list of accepted file extensions, with dots.
	AllowedExtensions []string `json:"allowed-extensions" mapstructure:"allowed-extensions"`

	// MaxFileSize is the maximum accepted upload size in bytes.
	MaxFileSize int64 `json:"max-file-size" mapstructure:"max-file-size"`

	// ParserServiceURL is the address of the extraction service used for
	// binary formats (pdf, doc, docx). Plain text formats are parsed
	// in-process.
	ParserServiceURL string `json:"parser-service-url" mapstructure:"parser-service-url"`

	// EmbedWorkers bounds the goroutine pool used by the per-chunk
	// embedding fallback.
	EmbedWorkers int `json:"embed-workers" mapstructure:"embed-workers"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		AllowedExtensions: []string{".pdf", ".txt", ".md", ".doc", ".docx"},
		MaxFileSize:       20 << 20, // 20 MiB
		ParserServiceURL:  "http://localhost:8081",
		EmbedWorkers:      4,
	}
}

// AddFlags adds flags for upload options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.AllowedExtensions, options.Join(prefixes...)+"upload.allowed-extensions", o.AllowedExtensions, "Accepted file extensions.")
	fs.Int64Var(&o.MaxFileSize, options.Join(prefixes...)+"upload.max-file-size", o.MaxFileSize, "Maximum upload size in bytes.")
	fs.StringVar(&o.ParserServiceURL, options.Join(prefixes...)+"upload.parser-service-url", o.ParserServiceURL, "Extraction service address for binary document formats.")
	fs.IntVar(&o.EmbedWorkers, options.Join(prefixes...)+"upload.embed-workers", o.EmbedWorkers, "Goroutine pool size for per-chunk embedding fallback.")
}

// Validate validates the upload options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if len(o.AllowedExtensions) == 0 {
		errs = append(errs, fmt.Errorf("allowed-extensions cannot be empty"))
	}
	for _, ext := range o.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("extension %q must start with a dot", ext))
		}
	}
	if o.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max-file-size must be positive"))
	}
	return errs
}

// Complete completes the upload options with defaults.
func (o *Options) Complete() error {
	for i, ext := range o.AllowedExtensions {
		o.AllowedExtensions[i] = strings.ToLower(ext)
	}
	if o.EmbedWorkers <= 0 {
		o.EmbedWorkers = 4
	}
	return nil
}
