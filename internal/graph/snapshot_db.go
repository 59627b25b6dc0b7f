package graph

import (
	"context"

	"memorypal/keeper/internal/db"
)

// SnapshotFromDB loads pages, entities and relations into a Snapshot
func SnapshotFromDB(ctx context.Context, d *db.DB) (*Snapshot, error) {
	pages, err := d.AllPages(ctx)
	if err != nil {
		return nil, err
	}
	entities, err := d.AllEntities(ctx)
	if err != nil {
		return nil, err
	}
	relations, err := d.AllRelations(ctx, "")
	if err != nil {
		return nil, err
	}

	nodes := make([]*NodeInfo, 0, len(pages)+len(entities))
	for _, p := range pages {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		nodes = append(nodes, &NodeInfo{
			Key:       db.NodeKey(db.KindPage, p.ID),
			ID:        p.ID,
			Kind:      db.KindPage,
			Title:     title,
			Embedded:  len(p.Embedding) > 0,
			Weight:    1,
			Timestamp: p.Timestamp,
		})
	}
	for _, e := range entities {
		nodes = append(nodes, &NodeInfo{
			Key:        db.NodeKey(db.KindEntity, e.ID),
			ID:         e.ID,
			Kind:       db.KindEntity,
			Title:      e.Name,
			EntityType: e.Type,
			Weight:     e.Weight,
			Timestamp:  e.UpdatedAt,
		})
	}

	edges := make([]EdgeInfo, 0, len(relations))
	for _, r := range relations {
		edges = append(edges, EdgeInfo{
			ID:      r.ID,
			Source:  r.SourceKey,
			Target:  r.TargetKey,
			RelType: r.RelType,
			Weight:  r.Weight,
		})
	}

	return NewSnapshot(nodes, edges), nil
}
