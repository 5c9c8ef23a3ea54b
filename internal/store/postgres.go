package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Astrix-nita-01/anchor-notes/internal/vote"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const noteColumns = `id, name, college_name, semester, subject, department, description, upload_date,
	upvotes, downvotes, comments, downloads, file_key, file_name, file_size, content_type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (Note, error) {
	var item Note
	err := row.Scan(
		&item.ID, &item.Name, &item.CollegeName, &item.Semester, &item.Subject, &item.Department,
		&item.Description, &item.UploadDate, &item.Upvotes, &item.Downvotes, &item.Comments,
		&item.Downloads, &item.FileKey, &item.FileName, &item.FileSize, &item.ContentType,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	item.UploadDate = item.UploadDate.UTC()
	return item, nil
}

// ListNotes returns every note in store order, newest upload first.
func (s *PostgresStore) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY position DESC`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		item, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	item, err := scanNote(s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=$1`, noteID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Note{}, err
		}
		return Note{}, fmt.Errorf("get note: %w", err)
	}
	return item, nil
}

// InsertNote places a note first in store order.
func (s *PostgresStore) InsertNote(ctx context.Context, item Note) error {
	if _, err := s.db.ExecContext(ctx, insertNoteSQL, noteArgs(item)...); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

const insertNoteSQL = `
	INSERT INTO notes (id, name, college_name, semester, subject, department, description, upload_date,
		upvotes, downvotes, comments, downloads, file_key, file_name, file_size, content_type)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

func noteArgs(item Note) []any {
	return []any{
		item.ID, item.Name, item.CollegeName, item.Semester, item.Subject, item.Department,
		item.Description, item.UploadDate.UTC().Format(DateLayout), item.Upvotes, item.Downvotes,
		item.Comments, item.Downloads, item.FileKey, item.FileName, item.FileSize, item.ContentType,
	}
}

// SeedNotes loads notes into an empty catalog, keeping their order. It
// reports how many notes were written; zero means the catalog already had
// data.
func (s *PostgresStore) SeedNotes(ctx context.Context, items []Note) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE notes IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock notes: %w", err)
	}
	var existing bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM notes)`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	if existing {
		return 0, nil
	}

	// Last inserted is first in store order.
	for i := len(items) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, insertNoteSQL, noteArgs(items[i])...); err != nil {
			return 0, fmt.Errorf("insert seed note %s: %w", items[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(items), nil
}

// ToggleVote applies a vote toggle and the matching counter change in one
// transaction. The note row lock serializes concurrent toggles on a note.
func (s *PostgresStore) ToggleVote(ctx context.Context, noteID, voterID string, requested vote.Direction) (VoteResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return VoteResult{}, fmt.Errorf("begin vote tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := scanNote(tx.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=$1 FOR UPDATE`, noteID)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return VoteResult{}, err
		}
		return VoteResult{}, fmt.Errorf("lock note: %w", err)
	}

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT direction
		FROM note_votes
		WHERE note_id=$1 AND voter_id=$2
		FOR UPDATE
	`, noteID, voterID).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return VoteResult{}, fmt.Errorf("lookup note vote: %w", err)
	}

	transition := vote.Toggle(vote.Direction(existing), requested)
	if transition.Next == vote.None {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM note_votes
			WHERE note_id=$1 AND voter_id=$2
		`, noteID, voterID); err != nil {
			return VoteResult{}, fmt.Errorf("delete note vote: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO note_votes (note_id, voter_id, direction)
			VALUES ($1, $2, $3)
			ON CONFLICT (note_id, voter_id)
			DO UPDATE SET direction=EXCLUDED.direction, updated_at=NOW()
		`, noteID, voterID, string(transition.Next)); err != nil {
			return VoteResult{}, fmt.Errorf("upsert note vote: %w", err)
		}
	}

	note, err := scanNote(tx.QueryRowContext(ctx, `
		UPDATE notes
		SET upvotes=GREATEST(upvotes + $2, 0), downvotes=GREATEST(downvotes + $3, 0)
		WHERE id=$1
		RETURNING `+noteColumns,
		noteID, transition.UpvoteDelta, transition.DownvoteDelta))
	if err != nil {
		return VoteResult{}, fmt.Errorf("update note votes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return VoteResult{}, fmt.Errorf("commit vote: %w", err)
	}
	return VoteResult{Note: note, Vote: transition.Next}, nil
}

func (s *PostgresStore) GetVote(ctx context.Context, noteID, voterID string) (vote.Direction, error) {
	var direction string
	err := s.db.QueryRowContext(ctx, `
		SELECT direction
		FROM note_votes
		WHERE note_id=$1 AND voter_id=$2
	`, noteID, voterID).Scan(&direction)
	if errors.Is(err, sql.ErrNoRows) {
		return vote.None, nil
	}
	if err != nil {
		return vote.None, fmt.Errorf("get note vote: %w", err)
	}
	return vote.Direction(direction), nil
}

func (s *PostgresStore) RecordDownload(ctx context.Context, noteID string) (Note, error) {
	note, err := scanNote(s.db.QueryRowContext(ctx, `
		UPDATE notes
		SET downloads=downloads + 1
		WHERE id=$1
		RETURNING `+noteColumns, noteID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Note{}, err
		}
		return Note{}, fmt.Errorf("record download: %w", err)
	}
	return note, nil
}

// AddComment appends a comment and bumps the note's comment count together.
func (s *PostgresStore) AddComment(ctx context.Context, comment Comment) (CommentResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommentResult{}, fmt.Errorf("begin comment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	note, err := scanNote(tx.QueryRowContext(ctx, `
		UPDATE notes
		SET comments=comments + 1
		WHERE id=$1
		RETURNING `+noteColumns, comment.NoteID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CommentResult{}, err
		}
		return CommentResult{}, fmt.Errorf("bump comment count: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO note_comments (id, note_id, author, content, upvotes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, comment.ID, comment.NoteID, comment.Author, comment.Content, comment.Upvotes, comment.CreatedAt); err != nil {
		return CommentResult{}, fmt.Errorf("insert comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CommentResult{}, fmt.Errorf("commit comment: %w", err)
	}
	return CommentResult{Comment: comment, Note: note}, nil
}

// ListComments returns a note's comments, newest first.
func (s *PostgresStore) ListComments(ctx context.Context, noteID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note_id, author, content, upvotes, created_at
		FROM note_comments
		WHERE note_id=$1
		ORDER BY position DESC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.NoteID, &item.Author, &item.Content, &item.Upvotes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// ReconcileCommentCounts sets every note's comment count to the number of
// stored comments and returns the notes that changed.
func (s *PostgresStore) ReconcileCommentCounts(ctx context.Context) ([]CountDrift, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH actual AS (
			SELECT n.id, n.name, n.comments AS recorded, COUNT(c.id)::int AS actual
			FROM notes n
			LEFT JOIN note_comments c ON c.note_id = n.id
			GROUP BY n.id, n.name, n.comments
		), changed AS (
			UPDATE notes n
			SET comments=a.actual
			FROM actual a
			WHERE n.id = a.id AND a.recorded <> a.actual
			RETURNING n.id
		)
		SELECT a.id, a.name, a.recorded, a.actual
		FROM actual a
		JOIN changed c ON c.id = a.id
		ORDER BY a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("reconcile comment counts: %w", err)
	}
	defer rows.Close()

	drifts := make([]CountDrift, 0)
	for rows.Next() {
		var drift CountDrift
		if err := rows.Scan(&drift.NoteID, &drift.Name, &drift.Recorded, &drift.Actual); err != nil {
			return nil, fmt.Errorf("scan count drift: %w", err)
		}
		drifts = append(drifts, drift)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count drift: %w", err)
	}
	return drifts, nil
}
