package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/Astrix-nita-01/anchor-notes/internal/catalog"
	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

const snippetRunes = 160

// NoteLister is the slice of the store the catalog searcher reads from.
type NoteLister interface {
	ListNotes(ctx context.Context) ([]store.Note, error)
}

// CatalogSearcher runs the catalog substring match when no full-text engine
// is available. Hits keep store order.
type CatalogSearcher struct {
	notes NoteLister
}

func NewCatalogSearcher(notes NoteLister) *CatalogSearcher {
	return &CatalogSearcher{notes: notes}
}

func (c *CatalogSearcher) Healthy() bool {
	return true
}

func (c *CatalogSearcher) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	q = normalize(q)

	notes, err := c.notes.ListNotes(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog search: %w", err)
	}
	matched := catalog.Filter(notes, catalog.Query{
		Search:     q.Text,
		Department: q.Department,
		Semester:   q.Semester,
	})

	total := len(matched)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}

	results := make([]Result, 0, end-q.Offset)
	for _, note := range matched[q.Offset:end] {
		results = append(results, Result{
			ID:          note.ID,
			Title:       note.Name,
			Snippet:     truncate(note.Description, snippetRunes),
			CollegeName: note.CollegeName,
			Subject:     note.Subject,
			Department:  note.Department,
			Semester:    note.Semester,
		})
	}
	return results, total, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
