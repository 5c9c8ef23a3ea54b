package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches notes.search_vector with plainto_tsquery, ranks with
// ts_rank and builds the snippet with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	q = normalize(q)

	tsQuery := "plainto_tsquery('simple', $1)"
	where := "n.search_vector @@ " + tsQuery
	args := []any{q.Text}
	argN := 2
	if v := strings.TrimSpace(q.Department); v != "" && !strings.EqualFold(v, "all") {
		where += fmt.Sprintf(" AND n.department = $%d", argN)
		args = append(args, v)
		argN++
	}
	if v := strings.TrimSpace(q.Semester); v != "" && !strings.EqualFold(v, "all") {
		where += fmt.Sprintf(" AND n.semester = $%d", argN)
		args = append(args, v)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM notes n WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT n.id, n.name,
			ts_headline('simple', coalesce(n.description, ''), %s, 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>') AS snippet,
			n.college_name, n.subject, n.department, n.semester
		FROM notes n
		WHERE %s
		ORDER BY ts_rank(n.search_vector, %s) DESC, n.position DESC
		LIMIT %d OFFSET %d`,
		tsQuery, where, tsQuery, q.Limit, q.Offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.CollegeName, &r.Subject, &r.Department, &r.Semester); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}
