package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Astrix-nita-01/anchor-notes/internal/vote"
)

const (
	DefaultRedisPrefix = "anchor:"
	maxTxRetries       = 5
)

// RedisStore keeps each collection as one JSON value: the notes array
// (newest first), the comment array (append order) and one vote map per
// voter. Every read-modify-write runs under WATCH so concurrent writers retry
// instead of overwriting each other.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	// onWatch runs inside each optimistic attempt before the write is queued.
	onWatch func(attempt int)
}

func NewRedisStore(ctx context.Context, redisURL, prefix string, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix, logger), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) notesKey() string    { return s.prefix + "notes" }
func (s *RedisStore) commentsKey() string { return s.prefix + "noteComments" }

func (s *RedisStore) votesKey(voterID string) string {
	return s.prefix + "userVotes:" + voterID
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type noteRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CollegeName string `json:"collegeName"`
	Semester    string `json:"semester"`
	Subject     string `json:"subject"`
	Department  string `json:"department"`
	Description string `json:"description"`
	UploadDate  string `json:"uploadDate"`
	Upvotes     int    `json:"upvotes"`
	Downvotes   int    `json:"downvotes"`
	Comments    int    `json:"comments"`
	Downloads   int    `json:"downloads"`
	FileKey     string `json:"fileKey,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

type commentRecord struct {
	ID      string `json:"id"`
	NoteID  string `json:"noteId"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Date    string `json:"date"`
	Upvotes int    `json:"upvotes"`
}

func toNoteRecord(n Note) noteRecord {
	return noteRecord{
		ID:          n.ID,
		Name:        n.Name,
		CollegeName: n.CollegeName,
		Semester:    n.Semester,
		Subject:     n.Subject,
		Department:  n.Department,
		Description: n.Description,
		UploadDate:  n.UploadDate.UTC().Format(DateLayout),
		Upvotes:     n.Upvotes,
		Downvotes:   n.Downvotes,
		Comments:    n.Comments,
		Downloads:   n.Downloads,
		FileKey:     n.FileKey,
		FileName:    n.FileName,
		FileSize:    n.FileSize,
		ContentType: n.ContentType,
	}
}

func (r noteRecord) note() Note {
	return Note{
		ID:          r.ID,
		Name:        r.Name,
		CollegeName: r.CollegeName,
		Semester:    r.Semester,
		Subject:     r.Subject,
		Department:  r.Department,
		Description: r.Description,
		UploadDate:  parseStoredDate(r.UploadDate),
		Upvotes:     r.Upvotes,
		Downvotes:   r.Downvotes,
		Comments:    r.Comments,
		Downloads:   r.Downloads,
		FileKey:     r.FileKey,
		FileName:    r.FileName,
		FileSize:    r.FileSize,
		ContentType: r.ContentType,
	}
}

func toCommentRecord(c Comment) commentRecord {
	return commentRecord{
		ID:      c.ID,
		NoteID:  c.NoteID,
		Author:  c.Author,
		Content: c.Content,
		Date:    c.CreatedAt.UTC().Format(time.RFC3339Nano),
		Upvotes: c.Upvotes,
	}
}

func (r commentRecord) comment() Comment {
	created, _ := time.Parse(time.RFC3339Nano, r.Date)
	return Comment{
		ID:        r.ID,
		NoteID:    r.NoteID,
		Author:    r.Author,
		Content:   r.Content,
		CreatedAt: created.UTC(),
		Upvotes:   r.Upvotes,
	}
}

func parseStoredDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(DateLayout, raw); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return Today(parsed)
	}
	return time.Time{}
}

// decodeNotes parses the notes collection. Records without an id are dropped.
func decodeNotes(raw string) ([]Note, error) {
	if strings.TrimSpace(raw) == "" {
		return []Note{}, nil
	}
	var records []noteRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode notes: %w: %v", ErrCorrupt, err)
	}
	items := make([]Note, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.ID) == "" {
			continue
		}
		items = append(items, record.note())
	}
	return items, nil
}

func encodeNotes(items []Note) (string, error) {
	records := make([]noteRecord, 0, len(items))
	for _, item := range items {
		records = append(records, toNoteRecord(item))
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode notes: %w", err)
	}
	return string(data), nil
}

func decodeComments(raw string) ([]Comment, error) {
	if strings.TrimSpace(raw) == "" {
		return []Comment{}, nil
	}
	var records []commentRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode comments: %w: %v", ErrCorrupt, err)
	}
	items := make([]Comment, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.NoteID) == "" {
			continue
		}
		items = append(items, record.comment())
	}
	return items, nil
}

func encodeComments(items []Comment) (string, error) {
	records := make([]commentRecord, 0, len(items))
	for _, item := range items {
		records = append(records, toCommentRecord(item))
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode comments: %w", err)
	}
	return string(data), nil
}

func decodeVotes(raw string) (map[string]vote.Direction, error) {
	votes := map[string]vote.Direction{}
	if strings.TrimSpace(raw) == "" {
		return votes, nil
	}
	var stored map[string]string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode votes: %w: %v", ErrCorrupt, err)
	}
	for noteID, direction := range stored {
		if d := vote.Direction(direction); d.Valid() {
			votes[noteID] = d
		}
	}
	return votes, nil
}

func encodeVotes(votes map[string]vote.Direction) (string, error) {
	data, err := json.Marshal(votes)
	if err != nil {
		return "", fmt.Errorf("encode votes: %w", err)
	}
	return string(data), nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readKey(ctx context.Context, c getter, key string) (string, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return raw, nil
}

// lenient treats a malformed collection as empty on read paths.
func (s *RedisStore) lenient(key string, err error) error {
	if errors.Is(err, ErrCorrupt) {
		s.logger.Warn("malformed collection read as empty", zap.String("key", key), zap.Error(err))
		return nil
	}
	return err
}

// update runs fn under WATCH on keys, retrying when another writer touched
// them before EXEC.
func (s *RedisStore) update(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			if s.onWatch != nil {
				s.onWatch(attempt)
			}
			return fn(tx)
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *RedisStore) ListNotes(ctx context.Context) ([]Note, error) {
	raw, err := readKey(ctx, s.client, s.notesKey())
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	items, err := decodeNotes(raw)
	if err != nil {
		if err := s.lenient(s.notesKey(), err); err != nil {
			return nil, err
		}
		return []Note{}, nil
	}
	return items, nil
}

func (s *RedisStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	items, err := s.ListNotes(ctx)
	if err != nil {
		return Note{}, err
	}
	if idx := indexOfNote(items, noteID); idx >= 0 {
		return items[idx], nil
	}
	return Note{}, ErrNotFound
}

func indexOfNote(items []Note, noteID string) int {
	for i := range items {
		if items[i].ID == noteID {
			return i
		}
	}
	return -1
}

func (s *RedisStore) loadNotes(ctx context.Context, tx *redis.Tx) ([]Note, error) {
	raw, err := readKey(ctx, tx, s.notesKey())
	if err != nil {
		return nil, err
	}
	return decodeNotes(raw)
}

// InsertNote prepends a note to the collection.
func (s *RedisStore) InsertNote(ctx context.Context, item Note) error {
	err := s.update(ctx, func(tx *redis.Tx) error {
		items, err := s.loadNotes(ctx, tx)
		if err != nil {
			return err
		}
		if indexOfNote(items, item.ID) >= 0 {
			return fmt.Errorf("note %s already exists", item.ID)
		}
		encoded, err := encodeNotes(append([]Note{item}, items...))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.notesKey(), encoded, 0)
			return nil
		})
		return err
	}, s.notesKey())
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// SeedNotes writes items as the whole collection when it is empty.
func (s *RedisStore) SeedNotes(ctx context.Context, items []Note) (int, error) {
	written := 0
	err := s.update(ctx, func(tx *redis.Tx) error {
		existing, err := s.loadNotes(ctx, tx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			written = 0
			return nil
		}
		encoded, err := encodeNotes(items)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.notesKey(), encoded, 0)
			return nil
		})
		written = len(items)
		return err
	}, s.notesKey())
	if err != nil {
		return 0, fmt.Errorf("seed notes: %w", err)
	}
	return written, nil
}

func (s *RedisStore) ToggleVote(ctx context.Context, noteID, voterID string, requested vote.Direction) (VoteResult, error) {
	var result VoteResult
	votesKey := s.votesKey(voterID)
	err := s.update(ctx, func(tx *redis.Tx) error {
		items, err := s.loadNotes(ctx, tx)
		if err != nil {
			return err
		}
		idx := indexOfNote(items, noteID)
		if idx < 0 {
			return ErrNotFound
		}
		rawVotes, err := readKey(ctx, tx, votesKey)
		if err != nil {
			return err
		}
		votes, err := decodeVotes(rawVotes)
		if err != nil {
			return err
		}

		transition := vote.Toggle(votes[noteID], requested)
		if transition.Next == vote.None {
			delete(votes, noteID)
		} else {
			votes[noteID] = transition.Next
		}
		items[idx].Upvotes, items[idx].Downvotes = transition.Apply(items[idx].Upvotes, items[idx].Downvotes)

		encodedNotes, err := encodeNotes(items)
		if err != nil {
			return err
		}
		encodedVotes, err := encodeVotes(votes)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.notesKey(), encodedNotes, 0)
			pipe.Set(ctx, votesKey, encodedVotes, 0)
			return nil
		}); err != nil {
			return err
		}
		result = VoteResult{Note: items[idx], Vote: transition.Next}
		return nil
	}, s.notesKey(), votesKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return VoteResult{}, err
		}
		return VoteResult{}, fmt.Errorf("toggle vote: %w", err)
	}
	return result, nil
}

func (s *RedisStore) GetVote(ctx context.Context, noteID, voterID string) (vote.Direction, error) {
	key := s.votesKey(voterID)
	raw, err := readKey(ctx, s.client, key)
	if err != nil {
		return vote.None, fmt.Errorf("get vote: %w", err)
	}
	votes, err := decodeVotes(raw)
	if err != nil {
		return vote.None, s.lenient(key, err)
	}
	return votes[noteID], nil
}

func (s *RedisStore) RecordDownload(ctx context.Context, noteID string) (Note, error) {
	var note Note
	err := s.update(ctx, func(tx *redis.Tx) error {
		items, err := s.loadNotes(ctx, tx)
		if err != nil {
			return err
		}
		idx := indexOfNote(items, noteID)
		if idx < 0 {
			return ErrNotFound
		}
		items[idx].Downloads++
		encoded, err := encodeNotes(items)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.notesKey(), encoded, 0)
			return nil
		}); err != nil {
			return err
		}
		note = items[idx]
		return nil
	}, s.notesKey())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Note{}, err
		}
		return Note{}, fmt.Errorf("record download: %w", err)
	}
	return note, nil
}

func (s *RedisStore) AddComment(ctx context.Context, comment Comment) (CommentResult, error) {
	var result CommentResult
	err := s.update(ctx, func(tx *redis.Tx) error {
		items, err := s.loadNotes(ctx, tx)
		if err != nil {
			return err
		}
		idx := indexOfNote(items, comment.NoteID)
		if idx < 0 {
			return ErrNotFound
		}
		rawComments, err := readKey(ctx, tx, s.commentsKey())
		if err != nil {
			return err
		}
		comments, err := decodeComments(rawComments)
		if err != nil {
			return err
		}

		items[idx].Comments++
		comments = append(comments, comment)

		encodedNotes, err := encodeNotes(items)
		if err != nil {
			return err
		}
		encodedComments, err := encodeComments(comments)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.notesKey(), encodedNotes, 0)
			pipe.Set(ctx, s.commentsKey(), encodedComments, 0)
			return nil
		}); err != nil {
			return err
		}
		result = CommentResult{Comment: comment, Note: items[idx]}
		return nil
	}, s.notesKey(), s.commentsKey())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CommentResult{}, err
		}
		return CommentResult{}, fmt.Errorf("add comment: %w", err)
	}
	return result, nil
}

// ListComments returns a note's comments, newest first.
func (s *RedisStore) ListComments(ctx context.Context, noteID string) ([]Comment, error) {
	raw, err := readKey(ctx, s.client, s.commentsKey())
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	all, err := decodeComments(raw)
	if err != nil {
		if err := s.lenient(s.commentsKey(), err); err != nil {
			return nil, err
		}
		return []Comment{}, nil
	}
	items := make([]Comment, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].NoteID == noteID {
			items = append(items, all[i])
		}
	}
	return items, nil
}

func (s *RedisStore) ReconcileCommentCounts(ctx context.Context) ([]CountDrift, error) {
	var drifts []CountDrift
	err := s.update(ctx, func(tx *redis.Tx) error {
		drifts = drifts[:0]
		items, err := s.loadNotes(ctx, tx)
		if err != nil {
			return err
		}
		rawComments, err := readKey(ctx, tx, s.commentsKey())
		if err != nil {
			return err
		}
		comments, err := decodeComments(rawComments)
		if err != nil {
			return err
		}

		actual := make(map[string]int, len(items))
		for _, c := range comments {
			actual[c.NoteID]++
		}
		for i := range items {
			if items[i].Comments == actual[items[i].ID] {
				continue
			}
			drifts = append(drifts, CountDrift{
				NoteID:   items[i].ID,
				Name:     items[i].Name,
				Recorded: items[i].Comments,
				Actual:   actual[items[i].ID],
			})
			items[i].Comments = actual[items[i].ID]
		}
		if len(drifts) == 0 {
			return nil
		}
		encoded, err := encodeNotes(items)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.notesKey(), encoded, 0)
			return nil
		})
		return err
	}, s.notesKey(), s.commentsKey())
	if err != nil {
		return nil, fmt.Errorf("reconcile comment counts: %w", err)
	}
	if drifts == nil {
		drifts = []CountDrift{}
	}
	return drifts, nil
}
