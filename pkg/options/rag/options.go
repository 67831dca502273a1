// Package rag provides retrieval and prompting configuration options.
package rag

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// DefaultSystemPrompt instructs the model to stay within the supplied context.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions about uploaded documents.
Use only the provided document context to answer. If the context does not
contain the answer, say that you don't know based on the documents provided.
Cite the source documents when possible.`

// Options contains retrieval and prompting configuration.
type Options struct {
	// ChunkSize is the size of text chunks in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ScoreThreshold drops retrieved chunks scoring below it.
	ScoreThreshold float64 `json:"score-threshold" mapstructure:"score-threshold"`

	// Collection is the vector store collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// SystemPrompt is the system prompt for chat generation.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// MaxQuestionLen rejects questions longer than this many runes.
	MaxQuestionLen int `json:"max-question-len" mapstructure:"max-question-len"`

	// HistoryWindow is how many recent turns are included in the prompt.
	HistoryWindow int `json:"history-window" mapstructure:"history-window"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		TopK:           5,
		ScoreThreshold: 0.1,
		Collection:     "docchat_chunks",
		EmbeddingDim:   768, // nomic-embed-text dimension
		SystemPrompt:   DefaultSystemPrompt,
		MaxQuestionLen: 2000,
		HistoryWindow:  5,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"rag.chunk-size", o.ChunkSize, "Size of text chunks in runes.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"rag.chunk-overlap", o.ChunkOverlap, "Overlap between chunks in runes.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"rag.top-k", o.TopK, "Number of chunks retrieved per question.")
	fs.Float64Var(&o.ScoreThreshold, options.Join(prefixes...)+"rag.score-threshold", o.ScoreThreshold, "Minimum similarity score for retrieved chunks.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"rag.collection", o.Collection, "Vector store collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"rag.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.MaxQuestionLen, options.Join(prefixes...)+"rag.max-question-len", o.MaxQuestionLen, "Maximum question length in runes.")
	fs.IntVar(&o.HistoryWindow, options.Join(prefixes...)+"rag.history-window", o.HistoryWindow, "Recent turns included in the prompt.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be non-negative and smaller than chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.MaxQuestionLen <= 0 {
		o.MaxQuestionLen = 2000
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 5
	}
	return nil
}
