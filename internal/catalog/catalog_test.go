package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

func day(value string) time.Time {
	parsed, err := time.Parse(store.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func sampleNotes() []store.Note {
	return []store.Note{
		{ID: "1", Name: "Data Structures Complete Guide", CollegeName: "MIT", Semester: "3rd", Subject: "Data Structures", Department: "Computer Science", Description: "Arrays, linked lists, trees and graphs.", UploadDate: day("2024-01-15"), Upvotes: 234, Downvotes: 12, Downloads: 10},
		{ID: "2", Name: "Calculus Integration Techniques", CollegeName: "Stanford University", Semester: "2nd", Subject: "Mathematics", Department: "Mathematics", Description: "Step-by-step solutions.", UploadDate: day("2024-01-12"), Upvotes: 189, Downvotes: 8, Downloads: 50},
		{ID: "3", Name: "Organic Chemistry Mechanisms", CollegeName: "Harvard University", Semester: "4th", Subject: "Organic Chemistry", Department: "Chemistry", Description: "Reaction pathways with diagrams.", UploadDate: day("2024-01-10"), Upvotes: 156, Downvotes: 5, Downloads: 30},
	}
}

func ids(notes []store.Note) []string {
	out := make([]string, 0, len(notes))
	for _, note := range notes {
		out = append(out, note.ID)
	}
	return out
}

func TestApplyEmptyQueryReturnsEverything(t *testing.T) {
	notes := sampleNotes()
	for _, key := range []SortKey{SortRecent, SortPopular, SortDownloads} {
		got := Apply(notes, Query{Department: All, Semester: All, Sort: key})
		assert.Len(t, got, len(notes), "sort %s", key)
	}
}

func TestApplySortByDownloads(t *testing.T) {
	got := Apply(sampleNotes(), Query{Sort: SortDownloads})
	require.Len(t, got, 3)
	assert.Equal(t, []int{50, 30, 10}, []int{got[0].Downloads, got[1].Downloads, got[2].Downloads})
}

func TestApplySortByPopularity(t *testing.T) {
	notes := sampleNotes()
	notes[2].Upvotes = 500
	got := Apply(notes, Query{Sort: SortPopular})
	assert.Equal(t, []string{"3", "1", "2"}, ids(got))
}

func TestApplySortByRecent(t *testing.T) {
	notes := sampleNotes()
	notes[0], notes[2] = notes[2], notes[0]
	got := Apply(notes, Query{Sort: SortRecent})
	assert.Equal(t, []string{"1", "2", "3"}, ids(got))
}

func TestApplyIsStableForEqualKeys(t *testing.T) {
	notes := []store.Note{
		{ID: "a", UploadDate: day("2024-02-01"), Downloads: 5},
		{ID: "b", UploadDate: day("2024-02-01"), Downloads: 5},
		{ID: "c", UploadDate: day("2024-02-01"), Downloads: 5},
	}
	for _, key := range []SortKey{SortRecent, SortPopular, SortDownloads} {
		assert.Equal(t, []string{"a", "b", "c"}, ids(Apply(notes, Query{Sort: key})), "sort %s", key)
	}
}

func TestApplySearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	notes := sampleNotes()

	assert.Equal(t, []string{"1"}, ids(Apply(notes, Query{Search: "LINKED"})), "description")
	assert.Equal(t, []string{"2"}, ids(Apply(notes, Query{Search: "stanford"})), "institution")
	assert.Equal(t, []string{"3"}, ids(Apply(notes, Query{Search: "organic chem"})), "subject")
	assert.Equal(t, []string{"2"}, ids(Apply(notes, Query{Search: "integration"})), "title")
}

func TestApplySearchIgnoresDepartment(t *testing.T) {
	// Department is a filter, not a search field.
	got := Apply(sampleNotes(), Query{Search: "computer science"})
	assert.Empty(t, got)
}

func TestApplyFilters(t *testing.T) {
	notes := sampleNotes()
	assert.Equal(t, []string{"2"}, ids(Apply(notes, Query{Department: "Mathematics"})))
	assert.Equal(t, []string{"3"}, ids(Apply(notes, Query{Semester: "4th"})))
	assert.Empty(t, Apply(notes, Query{Department: "Mathematics", Semester: "4th"}))
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	notes := sampleNotes()
	_ = Apply(notes, Query{Sort: SortDownloads})
	assert.Equal(t, []string{"1", "2", "3"}, ids(notes))
}

func TestParseSortFallsBackToRecent(t *testing.T) {
	assert.Equal(t, SortPopular, ParseSort("Popular"))
	assert.Equal(t, SortDownloads, ParseSort("downloads"))
	assert.Equal(t, SortRecent, ParseSort("rating"))
	assert.Equal(t, SortRecent, ParseSort(""))
}

func TestBuildFacets(t *testing.T) {
	notes := append(sampleNotes(), store.Note{ID: "4", Department: "Mathematics", Semester: "1st"})
	facets := BuildFacets(notes)
	assert.Equal(t, []string{"Chemistry", "Computer Science", "Mathematics"}, facets.Departments)
	assert.Equal(t, []string{"1st", "2nd", "3rd", "4th"}, facets.Semesters)
}

func TestBuildHome(t *testing.T) {
	notes := sampleNotes()
	for i := 4; i <= 8; i++ {
		notes = append(notes, store.Note{ID: string(rune('0' + i))})
	}
	home := BuildHome(notes)
	assert.Equal(t, []string{"1", "2", "3"}, ids(home.Featured))
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, ids(home.Recent))

	short := BuildHome(notes[:2])
	assert.Len(t, short.Featured, 2)
	assert.Len(t, short.Recent, 2)
}
