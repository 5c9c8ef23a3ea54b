// Package catalog filters and orders the note listing.
package catalog

import (
	"sort"
	"strings"

	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

type SortKey string

const (
	SortRecent    SortKey = "recent"
	SortPopular   SortKey = "popular"
	SortDownloads SortKey = "downloads"
)

// All is the filter value meaning "no filter" for department and semester.
const All = "all"

const (
	featuredCount = 3
	recentCount   = 6
)

type Query struct {
	Search     string
	Department string
	Semester   string
	Sort       SortKey
}

// ParseSort maps a request value onto a sort key. Anything unknown sorts by
// most recent.
func ParseSort(raw string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(raw))) {
	case SortPopular:
		return SortPopular
	case SortDownloads:
		return SortDownloads
	default:
		return SortRecent
	}
}

// Apply returns the notes that match q, sorted by q.Sort. The input slice is
// not modified and notes with equal keys keep their input order.
func Apply(notes []store.Note, q Query) []store.Note {
	out := Filter(notes, q)
	sort.SliceStable(out, lessFunc(out, ParseSort(string(q.Sort))))
	return out
}

// Filter returns the notes that match q's search and filters, in input
// order. q.Sort is ignored.
func Filter(notes []store.Note, q Query) []store.Note {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	department := normalizeFilter(q.Department)
	semester := normalizeFilter(q.Semester)

	out := make([]store.Note, 0, len(notes))
	for _, note := range notes {
		if !Matches(note, needle) {
			continue
		}
		if department != "" && note.Department != department {
			continue
		}
		if semester != "" && note.Semester != semester {
			continue
		}
		out = append(out, note)
	}
	return out
}

// Matches reports whether needle (already lower-cased) occurs in the title,
// subject, institution or description.
func Matches(note store.Note, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range []string{note.Name, note.Subject, note.CollegeName, note.Description} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func lessFunc(notes []store.Note, key SortKey) func(i, j int) bool {
	switch key {
	case SortPopular:
		return func(i, j int) bool { return notes[i].Score() > notes[j].Score() }
	case SortDownloads:
		return func(i, j int) bool { return notes[i].Downloads > notes[j].Downloads }
	default:
		return func(i, j int) bool { return notes[i].UploadDate.After(notes[j].UploadDate) }
	}
}

func normalizeFilter(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, All) {
		return ""
	}
	return value
}

// Facets are the distinct filter values present in the catalog.
type Facets struct {
	Departments []string
	Semesters   []string
}

func BuildFacets(notes []store.Note) Facets {
	departments := map[string]struct{}{}
	semesters := map[string]struct{}{}
	for _, note := range notes {
		if note.Department != "" {
			departments[note.Department] = struct{}{}
		}
		if note.Semester != "" {
			semesters[note.Semester] = struct{}{}
		}
	}
	return Facets{
		Departments: sortedKeys(departments),
		Semesters:   sortedKeys(semesters),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Home is the landing page selection, taken in store order.
type Home struct {
	Featured []store.Note
	Recent   []store.Note
}

func BuildHome(notes []store.Note) Home {
	return Home{
		Featured: head(notes, featuredCount),
		Recent:   head(notes, recentCount),
	}
}

func head(notes []store.Note, n int) []store.Note {
	if len(notes) < n {
		n = len(notes)
	}
	out := make([]store.Note, n)
	copy(out, notes[:n])
	return out
}
