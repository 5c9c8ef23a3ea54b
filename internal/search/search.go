package search

import (
	"context"
	"time"

	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

const defaultLimit = 20

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	CollegeName string `json:"collegeName"`
	Subject     string `json:"subject"`
	Department  string `json:"department"`
	Semester    string `json:"semester"`
}

// Query describes a search request. Department and Semester narrow the hits
// the same way the catalog filters do.
type Query struct {
	Text       string
	Department string
	Semester   string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// NoteRecord is the data we index for a note. Score, Downloads and
// UploadedAt are kept sortable so the index can mirror the catalog orders.
type NoteRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CollegeName string `json:"collegeName"`
	Semester    string `json:"semester"`
	Subject     string `json:"subject"`
	Department  string `json:"department"`
	Description string `json:"description"`
	UploadDate  string `json:"uploadDate"`
	UploadedAt  int64  `json:"uploadedAt"`
	Score       int    `json:"score"`
	Downloads   int    `json:"downloads"`
}

func RecordFromNote(n store.Note) NoteRecord {
	return NoteRecord{
		ID:          n.ID,
		Name:        n.Name,
		CollegeName: n.CollegeName,
		Semester:    n.Semester,
		Subject:     n.Subject,
		Department:  n.Department,
		Description: n.Description,
		UploadDate:  n.UploadDate.UTC().Format(store.DateLayout),
		UploadedAt:  n.UploadDate.UTC().Truncate(24 * time.Hour).Unix(),
		Score:       n.Score(),
		Downloads:   n.Downloads,
	}
}

func normalize(q Query) Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
