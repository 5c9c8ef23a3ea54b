package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Astrix-nita-01/anchor-notes/internal/config"
	"github.com/Astrix-nita-01/anchor-notes/internal/export"
	"github.com/Astrix-nita-01/anchor-notes/internal/store"
	"github.com/Astrix-nita-01/anchor-notes/internal/vote"
)

func serve(t *testing.T, server *HTTPServer, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") && rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, body
}

func catalogStore() *fakeStore {
	notes := []store.Note{
		testNote("1", 12, 2, 45, "2024-01-15"),
		testNote("2", 8, 1, 32, "2024-01-10"),
	}
	return &fakeStore{
		listNotesFn: func(context.Context) ([]store.Note, error) { return notes, nil },
		getNoteFn: func(_ context.Context, id string) (store.Note, error) {
			for _, note := range notes {
				if note.ID == id {
					return note, nil
				}
			}
			return store.Note{}, store.ErrNotFound
		},
	}
}

func TestHTTPListNotes(t *testing.T) {
	server := NewHTTPServer(newTestService(catalogStore()), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodGet, "/api/notes?sort=downloads&department=all", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	notes := body["notes"].([]any)
	if len(notes) != 2 || notes[0].(map[string]any)["id"] != "1" {
		t.Fatalf("unexpected notes: %+v", notes)
	}
	if body["sort"] != "downloads" {
		t.Fatalf("unexpected sort: %v", body["sort"])
	}
}

func TestHTTPNoteDetailNotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(catalogStore()), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodGet, "/api/notes/missing", nil))
	if rr.Code != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d %v", rr.Code, body)
	}
}

func TestHTTPUnknownRouteAndMethod(t *testing.T) {
	server := NewHTTPServer(newTestService(catalogStore()), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	if rr.Code != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %v", rr.Code, body)
	}

	rr, body = serve(t, server, httptest.NewRequest(http.MethodDelete, "/api/notes/1/vote", nil))
	if rr.Code != http.StatusMethodNotAllowed || body["code"] != "METHOD_NOT_ALLOWED" {
		t.Fatalf("expected 405, got %d %v", rr.Code, body)
	}
	if allow := rr.Header().Get("Allow"); allow != "POST" {
		t.Fatalf("unexpected Allow header %q", allow)
	}

	rr, _ = serve(t, server, httptest.NewRequest(http.MethodPut, "/api/notes", nil))
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "GET, POST" {
		t.Fatalf("expected 405 with GET, POST allowed, got %d %q", rr.Code, rr.Header().Get("Allow"))
	}
}

func TestHTTPVoteMintsVoterCookie(t *testing.T) {
	var gotVoter string
	fs := catalogStore()
	fs.toggleVoteFn = func(_ context.Context, noteID, voterID string, d vote.Direction) (store.VoteResult, error) {
		gotVoter = voterID
		note := testNote(noteID, 13, 2, 45, "2024-01-15")
		return store.VoteResult{Note: note, Vote: d}, nil
	}
	server := NewHTTPServer(newTestService(fs), "*", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/notes/1/vote", strings.NewReader(`{"direction":"up"}`))
	rr, body := serve(t, server, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body["userVote"] != "up" {
		t.Fatalf("unexpected userVote %v", body["userVote"])
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != voterCookie || cookies[0].Value != gotVoter || !cookies[0].HttpOnly {
		t.Fatalf("expected minted voter cookie for %q, got %+v", gotVoter, cookies)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/notes/1/vote", strings.NewReader(`{"direction":"up"}`))
	req.AddCookie(&http.Cookie{Name: voterCookie, Value: "returning-voter"})
	rr, _ = serve(t, server, req)
	if gotVoter != "returning-voter" || len(rr.Result().Cookies()) != 0 {
		t.Fatalf("expected cookie voter to be reused, got %q", gotVoter)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/notes/1/vote", strings.NewReader(`{"direction":"up"}`))
	req.Header.Set(voterHeader, "header-voter")
	req.AddCookie(&http.Cookie{Name: voterCookie, Value: "returning-voter"})
	serve(t, server, req)
	if gotVoter != "header-voter" {
		t.Fatalf("expected header voter to win, got %q", gotVoter)
	}
}

func TestHTTPVoteInvalidBodyAndDirection(t *testing.T) {
	server := NewHTTPServer(newTestService(catalogStore()), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodPost, "/api/notes/1/vote", strings.NewReader(`{`)))
	if rr.Code != http.StatusBadRequest || body["code"] != "INVALID_BODY" {
		t.Fatalf("expected 400 INVALID_BODY, got %d %v", rr.Code, body)
	}

	rr, body = serve(t, server, httptest.NewRequest(http.MethodPost, "/api/notes/1/vote", strings.NewReader(`{"direction":"left"}`)))
	if rr.Code != http.StatusUnprocessableEntity || body["error"] != "direction must be 'up' or 'down'" {
		t.Fatalf("expected 422, got %d %v", rr.Code, body)
	}
}

func TestHTTPCreateNoteJSON(t *testing.T) {
	var stored store.Note
	fs := catalogStore()
	fs.insertNoteFn = func(_ context.Context, note store.Note) error {
		stored = note
		return nil
	}
	server := NewHTTPServer(newTestService(fs), "*", nil)

	payload, _ := json.Marshal(validInput())
	rr, body := serve(t, server, httptest.NewRequest(http.MethodPost, "/api/notes", bytes.NewReader(payload)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	note := body["note"].(map[string]any)
	if note["id"] != stored.ID || note["uploadDate"] != "2026-03-14" || note["upvotes"] != float64(0) {
		t.Fatalf("unexpected created note: %+v", note)
	}
}

func TestHTTPCreateNoteMultipart(t *testing.T) {
	var stored store.Note
	fs := catalogStore()
	fs.insertNoteFn = func(_ context.Context, note store.Note) error {
		stored = note
		return nil
	}
	blobs := &fakeBlob{}
	server := NewHTTPServer(newTestService(fs, WithBlobStore(blobs)), "*", nil)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	input := validInput()
	for key, value := range map[string]string{
		"name":        input.Name,
		"collegeName": input.CollegeName,
		"semester":    input.Semester,
		"subject":     input.Subject,
		"department":  input.Department,
		"description": input.Description,
	} {
		_ = form.WriteField(key, value)
	}
	part, _ := form.CreateFormFile("file", "lecture 1.pdf")
	_, _ = part.Write([]byte("%PDF-1.4 fake"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/notes", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rr, body := serve(t, server, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(blobs.puts) != 1 || stored.FileKey != blobs.puts[0] || stored.FileSize != int64(len("%PDF-1.4 fake")) {
		t.Fatalf("expected stored file, got note=%+v puts=%v", stored, blobs.puts)
	}
	if body["note"].(map[string]any)["hasFile"] != true {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestHTTPCreateNoteMultipartTooLarge(t *testing.T) {
	svc := New(config.Config{MaxUploadBytes: 16}, catalogStore(), nil, WithBlobStore(&fakeBlob{}))
	server := NewHTTPServer(svc, "*", nil)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, _ := form.CreateFormFile("file", "big.pdf")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 2<<20))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/notes", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rr, body := serve(t, server, req)
	if rr.Code != http.StatusRequestEntityTooLarge || body["code"] != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("expected 413, got %d %v", rr.Code, body)
	}
}

func TestHTTPDownload(t *testing.T) {
	fs := catalogStore()
	fs.recordDownloadFn = func(_ context.Context, id string) (store.Note, error) {
		return testNote(id, 12, 2, 46, "2024-01-15"), nil
	}
	server := NewHTTPServer(newTestService(fs), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodPost, "/api/notes/1/download", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["note"].(map[string]any)["downloads"] != float64(46) {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if _, ok := body["downloadUrl"]; ok {
		t.Fatal("no blob store means no download url")
	}
}

func TestHTTPComments(t *testing.T) {
	fs := catalogStore()
	fs.addCommentFn = func(_ context.Context, c store.Comment) (store.CommentResult, error) {
		note := testNote(c.NoteID, 0, 0, 0, "2024-01-15")
		note.Comments = 1
		return store.CommentResult{Comment: c, Note: note}, nil
	}
	fs.listCommentsFn = func(context.Context, string) ([]store.Comment, error) {
		return []store.Comment{{ID: "c1", NoteID: "1", Author: "Ada", Content: "hi", CreatedAt: time.Now()}}, nil
	}
	server := NewHTTPServer(newTestService(fs), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodPost, "/api/notes/1/comments", strings.NewReader(`{"author":"Ada","content":"hi"}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if body["comment"].(map[string]any)["author"] != "Ada" {
		t.Fatalf("unexpected comment: %+v", body)
	}

	rr, body = serve(t, server, httptest.NewRequest(http.MethodPost, "/api/notes/1/comments", strings.NewReader(`{"author":"","content":""}`)))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	details := body["details"].(map[string]any)
	if details["author"] != "Name is required" || details["content"] != "Comment is required" {
		t.Fatalf("unexpected details: %+v", details)
	}

	rr, body = serve(t, server, httptest.NewRequest(http.MethodGet, "/api/notes/1/comments", nil))
	if rr.Code != http.StatusOK || len(body["comments"].([]any)) != 1 {
		t.Fatalf("unexpected listing %d %+v", rr.Code, body)
	}

	rr, _ = serve(t, server, httptest.NewRequest(http.MethodGet, "/api/notes/missing/comments", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown note, got %d", rr.Code)
	}
}

func TestHTTPExport(t *testing.T) {
	exp := &fakeExporter{
		exportFn: func(_ context.Context, sheet export.Sheet, format export.Format) (*export.Result, error) {
			if format != export.FormatHTML {
				t.Fatalf("unexpected format %s", format)
			}
			return &export.Result{Data: []byte("<html></html>"), Filename: "Note-1.html", MimeType: "text/html; charset=utf-8"}, nil
		},
	}
	server := NewHTTPServer(newTestService(catalogStore(), WithExporter(exp)), "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/notes/1/export?format=html", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("Content-Disposition") != `attachment; filename="Note-1.html"` {
		t.Fatalf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
	if rr.Body.String() != "<html></html>" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestHTTPSearchValidatesPaging(t *testing.T) {
	server := NewHTTPServer(newTestService(catalogStore()), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodGet, "/api/search?q=algo&limit=500", nil))
	if rr.Code != http.StatusUnprocessableEntity || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected 422, got %d %v", rr.Code, body)
	}

	rr, body = serve(t, server, httptest.NewRequest(http.MethodGet, "/api/search?q=algorithms&limit=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["total"] != float64(2) || len(body["results"].([]any)) != 1 || body["query"] != "algorithms" {
		t.Fatalf("unexpected search response: %+v", body)
	}
}

func TestHTTPHome(t *testing.T) {
	server := NewHTTPServer(newTestService(catalogStore()), "*", nil)

	rr, body := serve(t, server, httptest.NewRequest(http.MethodGet, "/api/home", nil))
	if rr.Code != http.StatusOK || body["total"] != float64(2) {
		t.Fatalf("unexpected home %d %+v", rr.Code, body)
	}
	if len(body["featured"].([]any)) != 2 {
		t.Fatalf("unexpected featured: %+v", body["featured"])
	}
}

func TestCleanVoterID(t *testing.T) {
	cases := map[string]string{
		" voter-1 ":                "voter-1",
		"":                         "",
		"has space":                "",
		strings.Repeat("a", 129):   "",
		"voter_018f0a2b-7c3d-7e4f": "voter_018f0a2b-7c3d-7e4f",
	}
	for input, want := range cases {
		if got := cleanVoterID(input); got != want {
			t.Errorf("cleanVoterID(%q) = %q, want %q", input, got, want)
		}
	}
}
