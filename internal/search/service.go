package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to the
// store-backed searcher.
type Service struct {
	meili    *Meili
	fallback Searcher
	logger   *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, fallback Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, fallback: fallback, logger: logger.Named("search")}
}

// Search tries Meilisearch if healthy, otherwise falls back.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q = normalize(q)
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("fallback search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexNote indexes a note (fire-and-forget to Meilisearch).
func (s *Service) IndexNote(note store.Note) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFromNote(note)
	go func() {
		if err := s.meili.IndexNote(record); err != nil {
			s.logger.Warn("index note", zap.String("note_id", record.ID), zap.Error(err))
		}
	}()
}

// ReindexAll pushes every note to Meilisearch and waits for the request to
// be accepted.
func (s *Service) ReindexAll(_ context.Context, notes []store.Note) (int, error) {
	if s.meili == nil || !s.meili.Healthy() {
		return 0, fmt.Errorf("meilisearch is not available")
	}
	records := make([]NoteRecord, 0, len(notes))
	for _, note := range notes {
		records = append(records, RecordFromNote(note))
	}
	if err := s.meili.IndexNotes(records); err != nil {
		return 0, fmt.Errorf("reindex notes: %w", err)
	}
	return len(records), nil
}

// Close stops the Meilisearch health monitor.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
