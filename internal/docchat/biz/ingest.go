package biz

import (
	"context"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/parser"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/llm"
)

// IngestorConfig configures the upload pipeline.
type IngestorConfig struct {
	// AllowedExtensions is the upload allowlist (with dots, lower case).
	AllowedExtensions []string
	// MaxFileSize caps the upload size in bytes.
	MaxFileSize int64
	// ChunkSize is the chunk size in runes.
	ChunkSize int
	// ChunkOverlap is the chunk overlap in runes.
	ChunkOverlap int
	// Collection is the vector collection name.
	Collection string
	// EmbeddingDim is the embedding vector dimension.
	EmbeddingDim int
	// EmbedWorkers sizes the per-chunk embedding fallback pool.
	EmbedWorkers int
}

// UploadResult summarizes one ingested document.
type UploadResult struct {
	Success         bool   `json:"success"`
	Filename        string `json:"filename"`
	DocumentID      string `json:"document_id"`
	Size            int64  `json:"size"`
	Pages           int    `json:"pages"`
	ChunksProcessed int    `json:"chunks_processed"`
	ChunksEmbedded  int    `json:"chunks_embedded"`
	Message         string `json:"message"`
}

// Ingestor runs the upload pipeline: validate, parse, chunk, embed, store.
type Ingestor struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	parsers       *parser.Dispatcher
	chunker       *parser.Chunker
	config        *IngestorConfig
	metrics       *metrics.ServiceMetrics
}

// NewIngestor creates the upload pipeline.
func NewIngestor(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, parsers *parser.Dispatcher, config *IngestorConfig) *Ingestor {
	if config.EmbedWorkers <= 0 {
		config.EmbedWorkers = 4
	}
	return &Ingestor{
		store:         vectorStore,
		embedProvider: embedProvider,
		parsers:       parsers,
		chunker:       parser.NewChunker(config.ChunkSize, config.ChunkOverlap),
		config:        config,
		metrics:       metrics.Get(),
	}
}

// Ingest processes one uploaded file end to end.
func (i *Ingestor) Ingest(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	result, err := i.ingest(ctx, filename, data)
	if err != nil {
		i.metrics.RecordUpload(0, 0, false, err)
		return nil, err
	}
	partial := result.ChunksEmbedded < result.ChunksProcessed
	i.metrics.RecordUpload(1, result.ChunksEmbedded, partial, nil)
	return result, nil
}

func (i *Ingestor) ingest(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	if err := i.validate(filename, data); err != nil {
		return nil, err
	}

	parsed, err := i.parsers.Parse(ctx, filename, data)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}

	chunks := i.chunker.ChunkResult(parsed)
	if len(chunks) == 0 {
		return nil, NewValidationError("file", fmt.Sprintf("%q contains no usable text", filename))
	}

	docID := newDocumentID()
	embedded, err := i.embedChunks(ctx, docID, filename, chunks)
	if err != nil {
		return nil, err
	}
	if len(embedded) == 0 {
		return nil, NewCollaboratorError("embedding provider", fmt.Errorf("all %d chunks failed to embed", len(chunks)))
	}

	if err := i.store.EnsureCollection(ctx, &store.CollectionConfig{
		Name:        i.config.Collection,
		Description: "Uploaded document chunks",
		Dimension:   i.config.EmbeddingDim,
	}); err != nil {
		return nil, NewCollaboratorError("vector store", err)
	}

	if _, err := i.store.Insert(ctx, i.config.Collection, embedded); err != nil {
		return nil, NewCollaboratorError("vector store", err)
	}

	logger.Infow("document ingested",
		"filename", filename,
		"document_id", docID,
		"pages", parsed.Pages,
		"chunks_processed", len(chunks),
		"chunks_embedded", len(embedded),
	)

	message := fmt.Sprintf("Processed %d chunks from %q", len(embedded), filename)
	if len(embedded) < len(chunks) {
		message = fmt.Sprintf("Processed %d of %d chunks from %q, some chunks failed to embed", len(embedded), len(chunks), filename)
	}

	return &UploadResult{
		Success:         true,
		Filename:        filename,
		DocumentID:      docID,
		Size:            int64(len(data)),
		Pages:           parsed.Pages,
		ChunksProcessed: len(chunks),
		ChunksEmbedded:  len(embedded),
		Message:         message,
	}, nil
}

func (i *Ingestor) validate(filename string, data []byte) error {
	if strings.TrimSpace(filename) == "" {
		return NewValidationError("filename", "filename is required")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range i.config.AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return &UnsupportedFileError{
			Filename:  filename,
			Extension: ext,
			Allowed:   i.config.AllowedExtensions,
		}
	}

	if len(data) == 0 {
		return NewValidationError("file", "file is empty")
	}
	if int64(len(data)) > i.config.MaxFileSize {
		return NewValidationError("file", fmt.Sprintf("file exceeds size limit of %d bytes", i.config.MaxFileSize))
	}
	return nil
}

// embedChunks embeds all chunks in one batch call. When the batch fails it
// retries per chunk on a worker pool so one bad chunk cannot sink the whole
// upload.
func (i *Ingestor) embedChunks(ctx context.Context, docID, filename string, chunks []parser.PageChunk) ([]*store.Chunk, error) {
	texts := make([]string, len(chunks))
	for idx, c := range chunks {
		texts[idx] = c.Content
	}

	embeddings, err := i.embedProvider.Embed(ctx, texts)
	if err == nil && len(embeddings) == len(chunks) {
		out := make([]*store.Chunk, len(chunks))
		for idx, c := range chunks {
			out[idx] = &store.Chunk{
				DocumentID: docID,
				Source:     filename,
				Page:       c.Page,
				Content:    c.Content,
				Embedding:  embeddings[idx],
			}
		}
		return out, nil
	}
	if err != nil {
		logger.Warnw("batch embedding failed, retrying per chunk",
			"filename", filename,
			"chunks", len(chunks),
			"error", err.Error(),
		)
	}

	pool, poolErr := ants.NewPool(i.config.EmbedWorkers)
	if poolErr != nil {
		return nil, NewCollaboratorError("embedding provider", poolErr)
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		embedded []*store.Chunk
	)
	for _, c := range chunks {
		c := c
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vector, embedErr := i.embedProvider.EmbedSingle(ctx, c.Content)
			if embedErr != nil {
				logger.Warnw("chunk embedding failed",
					"filename", filename,
					"page", c.Page,
					"error", embedErr.Error(),
				)
				return
			}
			mu.Lock()
			embedded = append(embedded, &store.Chunk{
				DocumentID: docID,
				Source:     filename,
				Page:       c.Page,
				Content:    c.Content,
				Embedding:  vector,
			})
			mu.Unlock()
		}
		if submitErr := pool.Submit(task); submitErr != nil {
			wg.Done()
			logger.Warnw("embedding pool rejected task", "error", submitErr.Error())
		}
	}
	wg.Wait()

	return embedded, nil
}

func newDocumentID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
