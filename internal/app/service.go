package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astrix-nita-01/anchor-notes/internal/blob"
	"github.com/Astrix-nita-01/anchor-notes/internal/catalog"
	"github.com/Astrix-nita-01/anchor-notes/internal/config"
	"github.com/Astrix-nita-01/anchor-notes/internal/export"
	"github.com/Astrix-nita-01/anchor-notes/internal/search"
	"github.com/Astrix-nita-01/anchor-notes/internal/seed"
	"github.com/Astrix-nita-01/anchor-notes/internal/store"
	"github.com/Astrix-nita-01/anchor-notes/internal/util"
	"github.com/Astrix-nita-01/anchor-notes/internal/vote"
)

type CatalogInput struct {
	Search     string
	Department string
	Semester   string
	Sort       string
}

type CreateNoteInput struct {
	Name        string `json:"name"`
	CollegeName string `json:"collegeName"`
	Semester    string `json:"semester"`
	Subject     string `json:"subject"`
	Department  string `json:"department"`
	Description string `json:"description"`
}

// UploadFile is the file part of an upload. Body is read once.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type VoteInput struct {
	Direction string `json:"direction"`
}

type CommentInput struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

var Semesters = []string{"1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th"}

var allowedExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".ppt", ".pptx"}

type dataStore interface {
	ListNotes(context.Context) ([]store.Note, error)
	GetNote(context.Context, string) (store.Note, error)
	InsertNote(context.Context, store.Note) error
	SeedNotes(context.Context, []store.Note) (int, error)
	ToggleVote(context.Context, string, string, vote.Direction) (store.VoteResult, error)
	GetVote(context.Context, string, string) (vote.Direction, error)
	RecordDownload(context.Context, string) (store.Note, error)
	AddComment(context.Context, store.Comment) (store.CommentResult, error)
	ListComments(context.Context, string) ([]store.Comment, error)
	ReconcileCommentCounts(context.Context) ([]store.CountDrift, error)
	Ping(ctx context.Context) error
}

type blobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key, fileName string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexNote(note store.Note)
	ReindexAll(ctx context.Context, notes []store.Note) (int, error)
}

type exporter interface {
	Export(ctx context.Context, sheet export.Sheet, format export.Format) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	blobs    blobStore
	search   searchIndex
	exporter exporter
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithBlobStore enables file storage for uploads and presigned downloads.
func WithBlobStore(b blobStore) Option {
	return func(s *Service) { s.blobs = b }
}

func WithSearch(idx searchIndex) Option {
	return func(s *Service) { s.search = idx }
}

func WithExporter(e exporter) Option {
	return func(s *Service) { s.exporter = e }
}

func New(cfg config.Config, dataStore dataStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.search == nil {
		s.search = search.NewService(nil, search.NewCatalogSearcher(dataStore), logger)
	}
	if s.exporter == nil {
		s.exporter = export.NewService()
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap loads the sample catalogue into an empty store.
func (s *Service) Bootstrap(ctx context.Context) error {
	if !s.cfg.Seed {
		return nil
	}
	_, err := s.Seed(ctx)
	return err
}

// Seed writes the sample catalogue when the store has no notes and reports
// how many notes were written.
func (s *Service) Seed(ctx context.Context) (int, error) {
	notes, err := seed.Notes()
	if err != nil {
		return 0, err
	}
	written, err := s.store.SeedNotes(ctx, notes)
	if err != nil {
		return 0, err
	}
	if written > 0 {
		s.logger.Info("seeded sample catalogue", zap.Int("notes", written))
		for _, note := range notes {
			s.search.IndexNote(note)
		}
	}
	return written, nil
}

func (s *Service) Catalog(ctx context.Context, input CatalogInput) (map[string]any, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	sortKey := catalog.ParseSort(input.Sort)
	matched := catalog.Apply(notes, catalog.Query{
		Search:     input.Search,
		Department: input.Department,
		Semester:   input.Semester,
		Sort:       sortKey,
	})
	facets := catalog.BuildFacets(notes)
	return map[string]any{
		"notes":       notesPayload(matched),
		"count":       len(matched),
		"total":       len(notes),
		"sort":        string(sortKey),
		"departments": facets.Departments,
		"semesters":   facets.Semesters,
	}, nil
}

func (s *Service) Home(ctx context.Context) (map[string]any, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	home := catalog.BuildHome(notes)
	return map[string]any{
		"featured": notesPayload(home.Featured),
		"recent":   notesPayload(home.Recent),
		"total":    len(notes),
	}, nil
}

// Detail loads a note, its comments and the voter's current vote.
func (s *Service) Detail(ctx context.Context, noteID, voterID string) (map[string]any, error) {
	var (
		note     store.Note
		comments []store.Comment
		current  vote.Direction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		note, err = s.store.GetNote(gctx, noteID)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = s.store.ListComments(gctx, noteID)
		return err
	})
	g.Go(func() error {
		if voterID == "" {
			return nil
		}
		var err error
		current, err = s.store.GetVote(gctx, noteID, voterID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return map[string]any{
		"note":     notePayload(note),
		"comments": commentsPayload(comments),
		"userVote": votePayload(current),
	}, nil
}

// CreateNote validates an upload, stores its file when blob storage is
// configured and prepends the note to the catalog.
func (s *Service) CreateNote(ctx context.Context, input CreateNoteInput, file *UploadFile) (map[string]any, error) {
	input = trimNoteInput(input)
	if details := s.validateUpload(input, file); len(details) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Upload is invalid", details)
	}

	if s.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UploadTimeout)
		defer cancel()
	}

	note := store.Note{
		ID:          util.NewID(""),
		Name:        input.Name,
		CollegeName: input.CollegeName,
		Semester:    input.Semester,
		Subject:     input.Subject,
		Department:  input.Department,
		Description: input.Description,
		UploadDate:  store.Today(s.now()),
	}

	if file != nil {
		note.FileName = blob.CleanFileName(file.Name)
		note.FileSize = file.Size
		note.ContentType = file.ContentType
		if s.blobs != nil {
			key := blob.ObjectKey(note.ID, file.Name)
			if err := s.blobs.Put(ctx, key, file.Body, file.Size, file.ContentType); err != nil {
				return nil, fmt.Errorf("store upload: %w", err)
			}
			note.FileKey = key
		}
	}

	if err := s.store.InsertNote(ctx, note); err != nil {
		if note.FileKey != "" {
			s.removeBlob(ctx, note.FileKey)
		}
		return nil, err
	}

	s.search.IndexNote(note)
	s.logger.Info("note uploaded", zap.String("note_id", note.ID), zap.Bool("has_file", note.FileKey != ""))
	return map[string]any{"note": notePayload(note)}, nil
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.blobs.Remove(ctx, key); err != nil {
		s.logger.Warn("remove orphaned upload", zap.String("key", key), zap.Error(err))
	}
}

func trimNoteInput(input CreateNoteInput) CreateNoteInput {
	return CreateNoteInput{
		Name:        strings.TrimSpace(input.Name),
		CollegeName: strings.TrimSpace(input.CollegeName),
		Semester:    strings.TrimSpace(input.Semester),
		Subject:     strings.TrimSpace(input.Subject),
		Department:  strings.TrimSpace(input.Department),
		Description: strings.TrimSpace(input.Description),
	}
}

func (s *Service) validateUpload(input CreateNoteInput, file *UploadFile) map[string]string {
	details := map[string]string{}
	if input.Name == "" {
		details["name"] = "Note title is required"
	}
	if input.CollegeName == "" {
		details["collegeName"] = "College name is required"
	}
	if input.Semester == "" {
		details["semester"] = "Semester is required"
	} else if !validSemester(input.Semester) {
		details["semester"] = "Semester must be one of 1st..8th"
	}
	if input.Subject == "" {
		details["subject"] = "Subject is required"
	}
	if input.Department == "" {
		details["department"] = "Department is required"
	}
	if input.Description == "" {
		details["description"] = "Description is required"
	}

	switch {
	case file == nil || file.Size == 0:
		if s.blobs != nil {
			details["file"] = "Please select a file to upload"
		}
	case !allowedExtension(file.Name):
		details["file"] = "File type must be one of " + strings.Join(allowedExtensions, ", ")
	case s.cfg.MaxUploadBytes > 0 && file.Size > s.cfg.MaxUploadBytes:
		details["file"] = "File must be at most " + formatBytes(s.cfg.MaxUploadBytes)
	}
	return details
}

func validSemester(value string) bool {
	for _, semester := range Semesters {
		if value == semester {
			return true
		}
	}
	return false
}

func allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%d MB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}

// ToggleVote applies the voter's requested direction to a note.
func (s *Service) ToggleVote(ctx context.Context, noteID, voterID string, input VoteInput) (map[string]any, error) {
	direction, err := vote.Parse(input.Direction)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "direction must be 'up' or 'down'", nil)
	}
	result, err := s.store.ToggleVote(ctx, noteID, voterID, direction)
	if err != nil {
		return nil, err
	}
	s.search.IndexNote(result.Note)
	return map[string]any{
		"note":     notePayload(result.Note),
		"userVote": votePayload(result.Vote),
	}, nil
}

// RecordDownload counts a download. Notes with a stored file also get a
// presigned link.
func (s *Service) RecordDownload(ctx context.Context, noteID string) (map[string]any, error) {
	note, err := s.store.RecordDownload(ctx, noteID)
	if err != nil {
		return nil, err
	}
	s.search.IndexNote(note)

	payload := map[string]any{"note": notePayload(note)}
	if s.blobs == nil || note.FileKey == "" {
		return payload, nil
	}
	ttl := s.cfg.DownloadURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	link, err := s.blobs.PresignedURL(ctx, note.FileKey, note.FileName, ttl)
	if err != nil {
		s.logger.Warn("presign download", zap.String("note_id", note.ID), zap.Error(err))
		return payload, nil
	}
	payload["downloadUrl"] = link
	payload["expiresAt"] = s.now().UTC().Add(ttl).Format(time.RFC3339)
	return payload, nil
}

// AddComment appends a comment. Blank author or content is rejected without
// touching the store.
func (s *Service) AddComment(ctx context.Context, noteID string, input CommentInput) (map[string]any, error) {
	author := strings.TrimSpace(input.Author)
	content := strings.TrimSpace(input.Content)
	details := map[string]string{}
	if author == "" {
		details["author"] = "Name is required"
	}
	if content == "" {
		details["content"] = "Comment is required"
	}
	if len(details) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Comment is invalid", details)
	}

	result, err := s.store.AddComment(ctx, store.Comment{
		ID:        util.NewID("cmt"),
		NoteID:    noteID,
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"comment": commentPayload(result.Comment),
		"note":    notePayload(result.Note),
	}, nil
}

func (s *Service) ListComments(ctx context.Context, noteID string) (map[string]any, error) {
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"comments": commentsPayload(comments)}, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

// Export renders a note sheet with its comments.
func (s *Service) Export(ctx context.Context, noteID, rawFormat string) (*export.Result, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'html' or 'pdf'", nil)
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, noteID)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, export.Sheet{Note: note, Comments: comments}, format)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
		}
		return nil, fmt.Errorf("export note: %w", err)
	}
	return result, nil
}

// Reindex pushes the whole catalog to the search index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return 0, err
	}
	return s.search.ReindexAll(ctx, notes)
}

// Reconcile recomputes cached comment counts from the stored comments.
func (s *Service) Reconcile(ctx context.Context) ([]store.CountDrift, error) {
	return s.store.ReconcileCommentCounts(ctx)
}

func notePayload(n store.Note) map[string]any {
	payload := map[string]any{
		"id":          n.ID,
		"name":        n.Name,
		"collegeName": n.CollegeName,
		"semester":    n.Semester,
		"subject":     n.Subject,
		"department":  n.Department,
		"description": n.Description,
		"uploadDate":  n.UploadDate.UTC().Format(store.DateLayout),
		"upvotes":     n.Upvotes,
		"downvotes":   n.Downvotes,
		"comments":    n.Comments,
		"downloads":   n.Downloads,
		"hasFile":     n.FileKey != "",
	}
	if n.FileName != "" {
		payload["fileName"] = n.FileName
		payload["fileSize"] = n.FileSize
		payload["contentType"] = n.ContentType
	}
	return payload
}

func notesPayload(notes []store.Note) []map[string]any {
	items := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		items = append(items, notePayload(note))
	}
	return items
}

func commentPayload(c store.Comment) map[string]any {
	return map[string]any{
		"id":      c.ID,
		"noteId":  c.NoteID,
		"author":  c.Author,
		"content": c.Content,
		"date":    c.CreatedAt.UTC().Format(time.RFC3339),
		"upvotes": c.Upvotes,
	}
}

func commentsPayload(comments []store.Comment) []map[string]any {
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, commentPayload(comment))
	}
	return items
}

func votePayload(d vote.Direction) any {
	if d == vote.None {
		return nil
	}
	return string(d)
}
