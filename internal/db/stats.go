package db

import "context"

// Counts summarizes store contents.
type Counts struct {
	Pages         int            `json:"pages"`
	EmbeddedPages int            `json:"embedded_pages"`
	Entities      int            `json:"entities"`
	Relations     map[string]int `json:"relations"`
	QueuedTasks   int            `json:"queued_tasks"`
}

// Counts returns row counts for pages, entities, relations by type and queued tasks.
func (d *DB) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{Relations: map[string]int{}}

	for _, q := range []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM pages", &c.Pages},
		{"SELECT COUNT(*) FROM pages WHERE embedding IS NOT NULL", &c.EmbeddedPages},
		{"SELECT COUNT(*) FROM entities", &c.Entities},
		{"SELECT COUNT(*) FROM task_queue", &c.QueuedTasks},
	} {
		if err := d.conn.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	rows, err := d.conn.QueryContext(ctx, "SELECT rel_type, COUNT(*) FROM relations GROUP BY rel_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var relType string
		var n int
		if err := rows.Scan(&relType, &n); err != nil {
			return nil, err
		}
		c.Relations[relType] = n
	}
	return c, rows.Err()
}
