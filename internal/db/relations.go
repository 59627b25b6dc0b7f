package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const relationColumns = `id, source_type, source_id, source_key, target_type, target_id, target_key,
	rel_type, weight, metadata, created_at, updated_at`

func scanRelation(scanner interface{ Scan(dest ...any) error }) (Relation, error) {
	var (
		r        Relation
		metadata string
	)
	err := scanner.Scan(&r.ID, &r.SourceType, &r.SourceID, &r.SourceKey, &r.TargetType, &r.TargetID,
		&r.TargetKey, &r.RelType, &r.Weight, &metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if err := decodeJSON(metadata, &r.Metadata); err != nil {
		return r, fmt.Errorf("decoding metadata of relation %s: %w", r.ID, err)
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	return r, nil
}

// NormalizeRelation fills defaults, computes endpoint keys, puts symmetric
// relations into canonical orientation and derives the id. Any id set by
// the caller is replaced.
func NormalizeRelation(r Relation) (Relation, error) {
	if r.SourceType == "" || r.SourceID == "" || r.TargetType == "" || r.TargetID == "" {
		return r, fmt.Errorf("relation endpoints incomplete: %s:%s -> %s:%s",
			r.SourceType, r.SourceID, r.TargetType, r.TargetID)
	}
	if r.RelType == "" {
		r.RelType = RelRelatedTo
	}
	if r.Weight == 0 {
		r.Weight = 1
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}

	r.SourceKey = NodeKey(r.SourceType, r.SourceID)
	r.TargetKey = NodeKey(r.TargetType, r.TargetID)
	if IsSymmetric(r.RelType) && r.SourceType == r.TargetType && r.TargetKey < r.SourceKey {
		r.SourceType, r.TargetType = r.TargetType, r.SourceType
		r.SourceID, r.TargetID = r.TargetID, r.SourceID
		r.SourceKey, r.TargetKey = r.TargetKey, r.SourceKey
	}
	r.ID = RelationID(r.SourceType, r.SourceID, r.RelType, r.TargetType, r.TargetID)
	return r, nil
}

const upsertRelationSQL = `
	INSERT INTO relations (` + relationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		weight=excluded.weight,
		metadata=excluded.metadata,
		updated_at=excluded.updated_at
`

func relationArgs(r Relation, now int64) ([]any, error) {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata of relation %s: %w", r.ID, err)
	}
	return []any{r.ID, r.SourceType, r.SourceID, r.SourceKey, r.TargetType, r.TargetID, r.TargetKey,
		r.RelType, r.Weight, string(metadata), now, now}, nil
}

// UpsertRelation normalizes and writes a relation, returning the stored row.
// created_at survives repeated upserts of the same relation.
func (d *DB) UpsertRelation(ctx context.Context, r Relation) (*Relation, error) {
	norm, err := NormalizeRelation(r)
	if err != nil {
		return nil, err
	}
	args, err := relationArgs(norm, d.NowMillis())
	if err != nil {
		return nil, err
	}

	var stored Relation
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertRelationSQL, args...); err != nil {
			return fmt.Errorf("writing relation %s: %w", norm.ID, err)
		}
		row := tx.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE id = ?`, norm.ID)
		stored, err = scanRelation(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// BulkUpsertRelations writes all relations in a single transaction.
// Either every relation is stored or none is.
func (d *DB) BulkUpsertRelations(ctx context.Context, rels []Relation) error {
	if len(rels) == 0 {
		return nil
	}
	now := d.NowMillis()
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertRelationSQL)
		if err != nil {
			return fmt.Errorf("preparing relation upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rels {
			norm, err := NormalizeRelation(r)
			if err != nil {
				return err
			}
			args, err := relationArgs(norm, now)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("writing relation %s: %w", norm.ID, err)
			}
		}
		return nil
	})
}

// GetRelation returns a single relation by id, or ErrNotFound.
func (d *DB) GetRelation(ctx context.Context, id string) (*Relation, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relations WHERE id = ?`, id)
	r, err := scanRelation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRelationsBySource returns relations whose source is the given node.
// An empty relType matches every type.
func (d *DB) GetRelationsBySource(ctx context.Context, sourceType, sourceID, relType string) ([]Relation, error) {
	return d.relationsByEndpoint(ctx, "source_key", NodeKey(sourceType, sourceID), relType)
}

// GetRelationsByTarget returns relations whose target is the given node.
func (d *DB) GetRelationsByTarget(ctx context.Context, targetType, targetID, relType string) ([]Relation, error) {
	return d.relationsByEndpoint(ctx, "target_key", NodeKey(targetType, targetID), relType)
}

func (d *DB) relationsByEndpoint(ctx context.Context, column, key, relType string) ([]Relation, error) {
	query := `SELECT ` + relationColumns + ` FROM relations WHERE ` + column + ` = ?`
	args := []any{key}
	if relType != "" {
		query += ` AND rel_type = ?`
		args = append(args, relType)
	}
	query += ` ORDER BY weight DESC, id`
	return d.queryRelations(ctx, query, args...)
}

// GetRelationsBetween returns relations connecting the two nodes in either direction.
func (d *DB) GetRelationsBetween(ctx context.Context, aType, aID, bType, bID string) ([]Relation, error) {
	a, b := NodeKey(aType, aID), NodeKey(bType, bID)
	return d.queryRelations(ctx, `
		SELECT `+relationColumns+` FROM relations
		WHERE (source_key = ? AND target_key = ?) OR (source_key = ? AND target_key = ?)
		ORDER BY id
	`, a, b, b, a)
}

// AllRelations returns every relation, optionally restricted to one type.
func (d *DB) AllRelations(ctx context.Context, relType string) ([]Relation, error) {
	if relType == "" {
		return d.queryRelations(ctx, `SELECT `+relationColumns+` FROM relations ORDER BY id`)
	}
	return d.queryRelations(ctx,
		`SELECT `+relationColumns+` FROM relations WHERE rel_type = ? ORDER BY id`, relType)
}

func (d *DB) queryRelations(ctx context.Context, query string, args ...any) ([]Relation, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rels := []Relation{}
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// DeleteRelationsBySource removes relations sourced at the given node.
// An empty relType deletes every type. Returns the number removed.
func (d *DB) DeleteRelationsBySource(ctx context.Context, sourceType, sourceID, relType string) (int64, error) {
	return d.deleteByEndpoint(ctx, "source_key", NodeKey(sourceType, sourceID), relType)
}

// DeleteRelationsByTarget removes relations pointing at the given node.
func (d *DB) DeleteRelationsByTarget(ctx context.Context, targetType, targetID, relType string) (int64, error) {
	return d.deleteByEndpoint(ctx, "target_key", NodeKey(targetType, targetID), relType)
}

func (d *DB) deleteByEndpoint(ctx context.Context, column, key, relType string) (int64, error) {
	query := `DELETE FROM relations WHERE ` + column + ` = ?`
	args := []any{key}
	if relType != "" {
		query += ` AND rel_type = ?`
		args = append(args, relType)
	}
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting relations of %s: %w", key, err)
	}
	return res.RowsAffected()
}
