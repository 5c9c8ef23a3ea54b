// Package seed provides the sample catalogue used to initialize an empty store.
package seed

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

//go:embed notes.yaml
var defaultCatalogue []byte

type file struct {
	Notes []entry `yaml:"notes"`
}

type entry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	CollegeName string `yaml:"college_name"`
	Semester    string `yaml:"semester"`
	Subject     string `yaml:"subject"`
	Department  string `yaml:"department"`
	Description string `yaml:"description"`
	UploadDate  string `yaml:"upload_date"`
	Upvotes     int    `yaml:"upvotes"`
	Downvotes   int    `yaml:"downvotes"`
	Comments    int    `yaml:"comments"`
	Downloads   int    `yaml:"downloads"`
}

// Notes returns the embedded sample catalogue in store order.
func Notes() ([]store.Note, error) {
	return Parse(defaultCatalogue)
}

// Parse decodes a seed catalogue. Every note needs an id, a name and a valid
// upload date.
func Parse(data []byte) ([]store.Note, error) {
	var parsed file
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode seed catalogue: %w", err)
	}

	notes := make([]store.Note, 0, len(parsed.Notes))
	seen := make(map[string]struct{}, len(parsed.Notes))
	for i, item := range parsed.Notes {
		id := strings.TrimSpace(item.ID)
		if id == "" || strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("seed note %d: id and name are required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("seed note %d: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}

		uploaded, err := time.Parse(store.DateLayout, item.UploadDate)
		if err != nil {
			return nil, fmt.Errorf("seed note %q: upload_date: %w", id, err)
		}
		notes = append(notes, store.Note{
			ID:          id,
			Name:        item.Name,
			CollegeName: item.CollegeName,
			Semester:    item.Semester,
			Subject:     item.Subject,
			Department:  item.Department,
			Description: item.Description,
			UploadDate:  uploaded,
			Upvotes:     item.Upvotes,
			Downvotes:   item.Downvotes,
			Comments:    item.Comments,
			Downloads:   item.Downloads,
		})
	}
	return notes, nil
}
