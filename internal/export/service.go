package export

import (
	"context"
	"fmt"
	"time"

	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

// Sheet is everything printed on an exported note.
type Sheet struct {
	Note     store.Note
	Comments []store.Comment
}

// Service renders note sheets.
type Service struct {
	now       func() time.Time
	renderPDF func(ctx context.Context, html, title string) (*Result, error)
}

func NewService() *Service {
	return &Service{now: time.Now, renderPDF: exportPDF}
}

// Export renders the sheet in the requested format.
func (s *Service) Export(ctx context.Context, sheet Sheet, format Format) (*Result, error) {
	html, err := RenderNoteHTML(s.templateData(sheet))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(sheet.Note.Name) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return s.renderPDF(ctx, html, sheet.Note.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (s *Service) templateData(sheet Sheet) TemplateData {
	note := sheet.Note
	data := TemplateData{
		Title:        note.Name,
		CollegeName:  note.CollegeName,
		Department:   note.Department,
		Subject:      note.Subject,
		Semester:     note.Semester,
		Description:  note.Description,
		FileName:     note.FileName,
		UploadDate:   note.UploadDate,
		Upvotes:      note.Upvotes,
		Downvotes:    note.Downvotes,
		Score:        note.Score(),
		Downloads:    note.Downloads,
		CommentCount: note.Comments,
		Comments:     make([]TemplateComment, 0, len(sheet.Comments)),
		GeneratedAt:  s.now().UTC(),
	}
	for _, c := range sheet.Comments {
		data.Comments = append(data.Comments, TemplateComment{
			Author:  c.Author,
			Content: c.Content,
			Date:    c.CreatedAt,
		})
	}
	return data
}
