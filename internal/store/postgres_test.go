package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Astrix-nita-01/anchor-notes/internal/vote"
)

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("ANCHOR_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("ANCHOR_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func TestPostgresNoteLifecycle(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()

	first := sampleNote("1", 0)
	second := sampleNote("2", 0)
	written, err := s.SeedNotes(ctx, []Note{first, second})
	if err != nil {
		t.Fatalf("SeedNotes failed: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 seeded notes, got %d", written)
	}
	if err := s.InsertNote(ctx, sampleNote("3", 0)); err != nil {
		t.Fatalf("InsertNote failed: %v", err)
	}

	items, err := s.ListNotes(ctx)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(items) != 3 || items[0].ID != "3" || items[1].ID != "1" || items[2].ID != "2" {
		t.Fatalf("unexpected store order: %+v", items)
	}

	result, err := s.ToggleVote(ctx, "1", "voter-a", vote.Up)
	if err != nil {
		t.Fatalf("ToggleVote failed: %v", err)
	}
	if result.Vote != vote.Up || result.Note.Upvotes != 11 {
		t.Fatalf("unexpected vote result: %+v", result)
	}
	result, err = s.ToggleVote(ctx, "1", "voter-a", vote.Up)
	if err != nil {
		t.Fatalf("ToggleVote clear failed: %v", err)
	}
	if result.Vote != vote.None || result.Note.Upvotes != 10 {
		t.Fatalf("unexpected clear result: %+v", result)
	}

	note, err := s.RecordDownload(ctx, "1")
	if err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}
	if note.Downloads != 1 {
		t.Fatalf("expected 1 download, got %d", note.Downloads)
	}

	added, err := s.AddComment(ctx, Comment{ID: "c1", NoteID: "1", Author: "Ada", Content: "thanks", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if added.Note.Comments != 1 {
		t.Fatalf("expected comment count 1, got %d", added.Note.Comments)
	}
	comments, err := s.ListComments(ctx, "1")
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].Author != "Ada" {
		t.Fatalf("unexpected comments: %+v", comments)
	}

	if _, err := s.GetNote(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
