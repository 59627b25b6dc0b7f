package db

import (
	"context"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// BuildFTSQuery preprocesses a natural language query for FTS5.
// Splits on whitespace, removes stopwords and words < 3 chars, trims punctuation,
// quotes each term as an FTS5 string and joins with " OR ".
func BuildFTSQuery(query string) string {
	words := strings.Fields(query)
	var filtered []string
	for _, w := range words {
		// Trim non-letter/digit chars from both ends
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if len(trimmed) < 3 {
			continue
		}
		if stopwords[strings.ToLower(trimmed)] {
			continue
		}
		filtered = append(filtered, `"`+strings.ReplaceAll(trimmed, `"`, `""`)+`"`)
	}
	return strings.Join(filtered, " OR ")
}

// SearchPages performs FTS5 search over title, summary and content, best match first.
// Returns empty slice if the preprocessed query is empty.
func (d *DB) SearchPages(ctx context.Context, query string, limit int) ([]Page, error) {
	ftsQuery := BuildFTSQuery(query)
	if ftsQuery == "" {
		return []Page{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	return d.queryPages(ctx, `
		SELECT `+qualifiedPageColumns("p")+`
		FROM pages p
		JOIN pages_fts fts ON p.rowid = fts.rowid
		WHERE pages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery, limit)
}
