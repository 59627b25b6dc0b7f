package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var pageColumnNames = []string{
	"id", "title", "url", "timestamp", "summary", "content", "content_hash",
	"embedding", "embedding_dim", "notes", "tags", "metadata", "created_at", "updated_at",
}

var pageColumns = strings.Join(pageColumnNames, ", ")

// qualifiedPageColumns returns the page column list prefixed with a table alias.
func qualifiedPageColumns(alias string) string {
	cols := make([]string, len(pageColumnNames))
	for i, c := range pageColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// scanPage scans a row into a Page. Columns must follow pageColumnNames order.
func scanPage(scanner interface{ Scan(dest ...any) error }) (Page, error) {
	var (
		p                     Page
		hash                  sql.NullString
		blob                  []byte
		notes, tags, metadata string
	)
	err := scanner.Scan(
		&p.ID, &p.Title, &p.URL, &p.Timestamp, &p.Summary, &p.Content, &hash,
		&blob, &p.EmbeddingDim, &notes, &tags, &metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.ContentHash = hash.String
	if blob != nil {
		p.Embedding = bytesToEmbedding(blob)
	}
	if err := decodeJSON(notes, &p.Notes); err != nil {
		return p, fmt.Errorf("decoding notes of page %s: %w", p.ID, err)
	}
	if err := decodeJSON(tags, &p.Tags); err != nil {
		return p, fmt.Errorf("decoding tags of page %s: %w", p.ID, err)
	}
	if err := decodeJSON(metadata, &p.Metadata); err != nil {
		return p, fmt.Errorf("decoding metadata of page %s: %w", p.ID, err)
	}
	normalizeCollections(&p)
	return p, nil
}

func normalizeCollections(p *Page) {
	if p.Notes == nil {
		p.Notes = []Note{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
}

// MergePage applies patch on top of existing (nil for a new page) and
// normalizes defaults. It does not touch the database.
func MergePage(existing *Page, patch PagePatch, now int64) Page {
	var p Page
	if existing != nil {
		p = *existing
		p.Notes = append([]Note(nil), existing.Notes...)
		p.Tags = append([]string(nil), existing.Tags...)
		p.Metadata = make(map[string]any, len(existing.Metadata))
		for k, v := range existing.Metadata {
			p.Metadata[k] = v
		}
	}
	p.ID = patch.ID

	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.URL != nil {
		p.URL = *patch.URL
	}
	if patch.Timestamp != nil {
		p.Timestamp = *patch.Timestamp
	}
	if patch.Summary != nil {
		p.Summary = *patch.Summary
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.ContentHash != nil {
		p.ContentHash = *patch.ContentHash
	}
	if patch.Embedding != nil {
		p.Embedding = append([]float32(nil), patch.Embedding...)
		p.EmbeddingDim = len(patch.Embedding)
	}
	if patch.Notes != nil {
		p.Notes = append([]Note(nil), (*patch.Notes)...)
	}
	if patch.Tags != nil {
		p.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if len(patch.Metadata) > 0 && p.Metadata == nil {
		p.Metadata = make(map[string]any, len(patch.Metadata))
	}
	for k, v := range patch.Metadata {
		p.Metadata[k] = v
	}

	if p.Timestamp == 0 {
		p.Timestamp = now
	}
	if p.EmbeddingDim == 0 {
		p.EmbeddingDim = DefaultEmbeddingDim
	}
	for i := range p.Notes {
		if p.Notes[i].ID == "" {
			p.Notes[i].ID = uuid.NewString()
		}
		if p.Notes[i].Timestamp == 0 {
			p.Notes[i].Timestamp = now
		}
	}
	normalizeCollections(&p)
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return p
}

// UpsertPage merges patch into the stored page with the same id (if any)
// and writes the result. Returns the stored record.
func (d *DB) UpsertPage(ctx context.Context, patch PagePatch) (*Page, error) {
	if patch.ID == "" {
		return nil, errors.New("upserting page: id is required")
	}

	var merged Page
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getPage(ctx, tx, patch.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		merged = MergePage(existing, patch, d.NowMillis())
		if strings.TrimSpace(merged.URL) == "" {
			return fmt.Errorf("upserting page %s: url is required", patch.ID)
		}
		return writePage(ctx, tx, &merged)
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func writePage(ctx context.Context, q queryer, p *Page) error {
	notes, err := json.Marshal(p.Notes)
	if err != nil {
		return fmt.Errorf("encoding notes: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	var blob []byte
	if p.Embedding != nil {
		blob = embeddingToBytes(p.Embedding)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			url=excluded.url,
			timestamp=excluded.timestamp,
			summary=excluded.summary,
			content=excluded.content,
			content_hash=excluded.content_hash,
			embedding=excluded.embedding,
			embedding_dim=excluded.embedding_dim,
			notes=excluded.notes,
			tags=excluded.tags,
			metadata=excluded.metadata,
			updated_at=excluded.updated_at
	`, p.ID, p.Title, p.URL, p.Timestamp, p.Summary, p.Content, nullableString(p.ContentHash),
		blob, p.EmbeddingDim, string(notes), string(tags), string(metadata), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("writing page %s: %w", p.ID, err)
	}
	return nil
}

func getPage(ctx context.Context, q queryer, id string) (*Page, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPage returns a single page by ID, or ErrNotFound.
func (d *DB) GetPage(ctx context.Context, id string) (*Page, error) {
	return getPage(ctx, d.conn, id)
}

// GetPageByURL returns the page stored for url, or ErrNotFound.
func (d *DB) GetPageByURL(ctx context.Context, url string) (*Page, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE url = ?`, url)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPagesByIDs returns the pages that exist among ids. Missing ids are skipped.
func (d *DB) GetPagesByIDs(ctx context.Context, ids []string) ([]Page, error) {
	if len(ids) == 0 {
		return []Page{}, nil
	}
	return d.queryPages(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
}

// AllPages returns all pages ordered by capture time, newest first.
func (d *DB) AllPages(ctx context.Context) ([]Page, error) {
	return d.queryPages(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY timestamp DESC`)
}

// SearchPagesByIDPrefix finds pages whose ID starts with the given prefix.
func (d *DB) SearchPagesByIDPrefix(ctx context.Context, prefix string, limit int) ([]Page, error) {
	return d.queryPages(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id LIKE ? LIMIT ?`, prefix+"%", limit)
}

func (d *DB) queryPages(ctx context.Context, query string, args ...any) ([]Page, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// AddNote appends a note to a page and returns it.
func (d *DB) AddNote(ctx context.Context, pageID, text string) (*Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("note text is empty")
	}

	var note Note
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getPage(ctx, tx, pageID)
		if err != nil {
			return err
		}
		now := d.NowMillis()
		note = Note{ID: uuid.NewString(), Text: text, Timestamp: now}
		notes := append(append([]Note(nil), existing.Notes...), note)
		merged := MergePage(existing, PagePatch{ID: pageID, Notes: &notes}, now)
		return writePage(ctx, tx, &merged)
	})
	if err != nil {
		return nil, fmt.Errorf("adding note to page %s: %w", pageID, err)
	}
	return &note, nil
}

func decodeJSON(raw string, dest any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

// nullableString converts an empty string to nil so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
