package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const entityColumns = `id, name, name_lower, type, aliases, weight, metadata, created_at, updated_at`

func scanEntity(scanner interface{ Scan(dest ...any) error }) (Entity, error) {
	var (
		e                 Entity
		aliases, metadata string
	)
	err := scanner.Scan(&e.ID, &e.Name, &e.NameLower, &e.Type, &aliases, &e.Weight,
		&metadata, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	if err := decodeJSON(aliases, &e.Aliases); err != nil {
		return e, fmt.Errorf("decoding aliases of entity %s: %w", e.ID, err)
	}
	if err := decodeJSON(metadata, &e.Metadata); err != nil {
		return e, fmt.Errorf("decoding metadata of entity %s: %w", e.ID, err)
	}
	if e.Aliases == nil {
		e.Aliases = []string{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e, nil
}

// MergeEntity applies patch on top of existing (nil for a new entity).
// Aliases are unioned; name_lower is always recomputed from the name.
func MergeEntity(existing *Entity, patch EntityPatch, now int64) Entity {
	var e Entity
	if existing != nil {
		e = *existing
		e.Aliases = append([]string(nil), existing.Aliases...)
		e.Metadata = make(map[string]any, len(existing.Metadata))
		for k, v := range existing.Metadata {
			e.Metadata[k] = v
		}
	}
	e.ID = patch.ID

	if patch.Name != nil {
		e.Name = strings.TrimSpace(*patch.Name)
	}
	e.NameLower = strings.ToLower(e.Name)
	if patch.Type != nil {
		e.Type = *patch.Type
	}
	if e.Type == "" {
		e.Type = EntityUnknown
	}
	if patch.Weight != nil {
		e.Weight = *patch.Weight
	}
	e.Aliases = unionStrings(e.Aliases, patch.Aliases)
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	for k, v := range patch.Metadata {
		e.Metadata[k] = v
	}

	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	return e
}

// unionStrings appends the members of add missing from base, keeping first-seen order.
func unionStrings(base, add []string) []string {
	seen := make(map[string]bool, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// UpsertEntity merges patch into the stored entity with the same id and writes it.
func (d *DB) UpsertEntity(ctx context.Context, patch EntityPatch) (*Entity, error) {
	if patch.ID == "" {
		return nil, errors.New("upserting entity: id is required")
	}

	var merged Entity
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getEntity(ctx, tx, patch.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		merged = MergeEntity(existing, patch, d.NowMillis())
		if merged.Name == "" {
			return fmt.Errorf("upserting entity %s: name is required", patch.ID)
		}

		aliases, err := json.Marshal(merged.Aliases)
		if err != nil {
			return fmt.Errorf("encoding aliases: %w", err)
		}
		metadata, err := json.Marshal(merged.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities (`+entityColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name=excluded.name,
				name_lower=excluded.name_lower,
				type=excluded.type,
				aliases=excluded.aliases,
				weight=excluded.weight,
				metadata=excluded.metadata,
				updated_at=excluded.updated_at
		`, merged.ID, merged.Name, merged.NameLower, merged.Type, string(aliases), merged.Weight,
			string(metadata), merged.CreatedAt, merged.UpdatedAt)
		if err != nil {
			return fmt.Errorf("writing entity %s: %w", merged.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func getEntity(ctx context.Context, q queryer, id string) (*Entity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEntity returns a single entity by ID, or ErrNotFound.
func (d *DB) GetEntity(ctx context.Context, id string) (*Entity, error) {
	return getEntity(ctx, d.conn, id)
}

// GetEntitiesByIDs returns the entities that exist among ids.
func (d *DB) GetEntitiesByIDs(ctx context.Context, ids []string) ([]Entity, error) {
	if len(ids) == 0 {
		return []Entity{}, nil
	}
	return d.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
}

// AllEntities returns every entity, heaviest first.
func (d *DB) AllEntities(ctx context.Context) ([]Entity, error) {
	return d.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY weight DESC, name_lower`)
}

// FindEntitiesByNameLower returns entities whose lowercase name equals nameLower.
func (d *DB) FindEntitiesByNameLower(ctx context.Context, nameLower string) ([]Entity, error) {
	return d.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE name_lower = ? ORDER BY created_at`,
		strings.ToLower(strings.TrimSpace(nameLower)))
}

// FindEntitiesByType returns entities of the given type.
func (d *DB) FindEntitiesByType(ctx context.Context, entityType string) ([]Entity, error) {
	return d.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE type = ? ORDER BY weight DESC, name_lower`, entityType)
}

func (d *DB) queryEntities(ctx context.Context, query string, args ...any) ([]Entity, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := []Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
