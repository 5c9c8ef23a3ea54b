package store

import (
	"errors"
	"time"

	"github.com/Astrix-nita-01/anchor-notes/internal/vote"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an optimistic transaction kept losing to
	// concurrent writers.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrCorrupt is returned by write paths that would otherwise overwrite a
	// collection that could not be parsed.
	ErrCorrupt = errors.New("stored collection is malformed")
)

// DateLayout is the wire and storage format of Note.UploadDate.
const DateLayout = "2006-01-02"

type Note struct {
	ID          string
	Name        string
	CollegeName string
	Semester    string
	Subject     string
	Department  string
	Description string
	UploadDate  time.Time
	Upvotes     int
	Downvotes   int
	Comments    int
	Downloads   int
	// File metadata is empty for notes without a stored file.
	FileKey     string
	FileName    string
	FileSize    int64
	ContentType string
}

// Score is the popularity key: upvotes minus downvotes.
func (n Note) Score() int {
	return n.Upvotes - n.Downvotes
}

type Comment struct {
	ID        string
	NoteID    string
	Author    string
	Content   string
	CreatedAt time.Time
	Upvotes   int
}

// VoteResult is what a toggle leaves behind.
type VoteResult struct {
	Note Note
	Vote vote.Direction
}

// CommentResult pairs a stored comment with the note whose count it bumped.
type CommentResult struct {
	Comment Comment
	Note    Note
}

// CountDrift describes a note whose cached comment count disagreed with the
// comment collection before Reconcile fixed it.
type CountDrift struct {
	NoteID   string
	Name     string
	Recorded int
	Actual   int
}

// Today is the upload date for a note created now.
func Today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
