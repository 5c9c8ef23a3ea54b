package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var noteTemplate = template.Must(
	template.New("note.html").
		Funcs(template.FuncMap{
			"formatDate": func(t time.Time, layout string) string {
				return t.Format(layout)
			},
		}).
		ParseFS(templateFS, "templates/note.html"),
)

// TemplateData holds data for note sheet rendering
type TemplateData struct {
	Title        string
	CollegeName  string
	Department   string
	Subject      string
	Semester     string
	Description  string
	FileName     string
	UploadDate   time.Time
	Upvotes      int
	Downvotes    int
	Score        int
	Downloads    int
	CommentCount int
	Comments     []TemplateComment
	GeneratedAt  time.Time
}

type TemplateComment struct {
	Author  string
	Content string
	Date    time.Time
}

// RenderNoteHTML renders the note sheet template.
func RenderNoteHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := noteTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
