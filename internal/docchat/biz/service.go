package biz

import (
	"context"

	"github.com/kart-io/docchat/internal/docchat/metrics"
)

// Service is the document chat business interface.
type Service interface {
	// Upload ingests one uploaded file into the document collection.
	Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error)

	// Chat answers a question in the context of a session.
	Chat(ctx context.Context, sessionID, question string) (*ChatResult, error)

	// History returns a session's turns, oldest first.
	History(ctx context.Context, sessionID string) ([]*Turn, error)

	// ClearHistory wipes a session's turns.
	ClearHistory(ctx context.Context, sessionID string) error

	// Health probes every dependency and reports service counters.
	Health(ctx context.Context) *HealthReport

	// Stats returns document collection counters. A store outage degrades
	// the report instead of failing it.
	Stats(ctx context.Context) *DocumentStats

	// ClearAllDocuments empties the document collection.
	ClearAllDocuments(ctx context.Context) error
}

// DocChatService composes the upload, chat and health pipelines.
type DocChatService struct {
	ingestor *Ingestor
	chatter  *Chatter
	health   *HealthChecker
	sessions SessionStore
	metrics  *metrics.ServiceMetrics
}

// NewDocChatService creates the composed service.
func NewDocChatService(ingestor *Ingestor, chatter *Chatter, health *HealthChecker, sessions SessionStore) *DocChatService {
	return &DocChatService{
		ingestor: ingestor,
		chatter:  chatter,
		health:   health,
		sessions: sessions,
		metrics:  metrics.Get(),
	}
}

var _ Service = (*DocChatService)(nil)

// Upload ingests one uploaded file.
func (s *DocChatService) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	return s.ingestor.Ingest(ctx, filename, data)
}

// Chat answers a question in the context of a session.
func (s *DocChatService) Chat(ctx context.Context, sessionID, question string) (*ChatResult, error) {
	return s.chatter.Chat(ctx, sessionID, question)
}

// History returns a session's turns.
func (s *DocChatService) History(ctx context.Context, sessionID string) ([]*Turn, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "session_id is required")
	}
	return s.sessions.History(ctx, sessionID)
}

// ClearHistory wipes a session.
func (s *DocChatService) ClearHistory(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return NewValidationError("session_id", "session_id is required")
	}
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	s.metrics.RecordSessionCleared()
	return nil
}

// Health probes dependencies.
func (s *DocChatService) Health(ctx context.Context) *HealthReport {
	return s.health.Check(ctx)
}

// Stats returns document collection counters.
func (s *DocChatService) Stats(ctx context.Context) *DocumentStats {
	return s.health.Stats(ctx)
}

// ClearAllDocuments empties the document collection.
func (s *DocChatService) ClearAllDocuments(ctx context.Context) error {
	return s.health.ClearAllDocuments(ctx)
}
