package blob

import "testing"

func TestObjectKey(t *testing.T) {
	cases := map[string]string{
		"lecture notes.pdf":       "notes/n1/lecture_notes.pdf",
		"../../etc/passwd":        "notes/n1/passwd",
		`C:\Users\me\Week 1.docx`: "notes/n1/Week_1.docx",
		"":                        "notes/n1/file",
		"...":                     "notes/n1/file",
	}
	for input, want := range cases {
		if got := ObjectKey("n1", input); got != want {
			t.Errorf("ObjectKey(%q) = %q, want %q", input, got, want)
		}
	}
}
