package graph

import (
	"context"
	"fmt"
	"math"
	"sort"

	"memorypal/keeper/internal/db"
)

// Neighborhood limits.
const (
	maxMentions      = 8
	maxSharedPages   = 4
	maxCoMentions    = 4
	maxSimilarPages  = 8
	minEdgeStrength  = 0.05
	sharedPageWeight = 0.35
)

// RelMentionShared links an entity to another page that mentions it. It only
// exists in neighborhood views, never in the store.
const RelMentionShared = "MENTION_SHARED"

// Node types in a neighborhood.
const (
	NodeCurrentPage = "page-current"
	NodePage        = "page"
	NodeEntity      = "entity"
)

// NeighborhoodStore is the read access Neighborhood needs.
type NeighborhoodStore interface {
	GetRelationsBySource(ctx context.Context, sourceType, sourceID, relType string) ([]db.Relation, error)
	GetRelationsByTarget(ctx context.Context, targetType, targetID, relType string) ([]db.Relation, error)
	GetEntitiesByIDs(ctx context.Context, ids []string) ([]db.Entity, error)
	GetPagesByIDs(ctx context.Context, ids []string) ([]db.Page, error)
}

type NeighborNode struct {
	Key        string `json:"id"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	EntityType string `json:"entityType,omitempty"`
	URL        string `json:"url,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

type NeighborEdge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"similarity"` // in [0.05, 1]
	RelType  string  `json:"relType"`
}

// NeighborhoodGraph is the local graph around one page.
type NeighborhoodGraph struct {
	Nodes []NeighborNode `json:"nodes"`
	Edges []NeighborEdge `json:"edges"`
}

type neighborhoodBuilder struct {
	graph    NeighborhoodGraph
	index    map[string]int
	edgeSeen map[string]bool
}

func (b *neighborhoodBuilder) addNode(n NeighborNode) {
	if i, ok := b.index[n.Key]; ok {
		existing := &b.graph.Nodes[i]
		if n.Label != "" {
			existing.Label = n.Label
		}
		if n.EntityType != "" {
			existing.EntityType = n.EntityType
		}
		return
	}
	b.index[n.Key] = len(b.graph.Nodes)
	b.graph.Nodes = append(b.graph.Nodes, n)
}

func (b *neighborhoodBuilder) addEdge(source, target, relType string, strength float64) {
	id := source + "|" + relType + "|" + target
	if b.edgeSeen[id] {
		return
	}
	b.edgeSeen[id] = true
	b.graph.Edges = append(b.graph.Edges, NeighborEdge{
		Source:   source,
		Target:   target,
		Strength: clamp(strength, minEdgeStrength, 1),
		RelType:  relType,
	})
}

func pageNode(p db.Page, typ string) NeighborNode {
	label := p.Title
	if label == "" {
		label = p.URL
	}
	return NeighborNode{Key: db.NodeKey(db.KindPage, p.ID), Label: label, Type: typ, URL: p.URL, Summary: p.Summary}
}

func entityNode(e db.Entity) NeighborNode {
	return NeighborNode{Key: db.NodeKey(db.KindEntity, e.ID), Label: e.Name, Type: NodeEntity, EntityType: e.Type}
}

// byWeightDesc sorts relations by weight, treating zero as 1.
func byWeightDesc(rels []db.Relation) {
	w := func(r db.Relation) float64 {
		if r.Weight == 0 {
			return 1
		}
		return r.Weight
	}
	sort.SliceStable(rels, func(i, j int) bool { return w(rels[i]) > w(rels[j]) })
}

// bothSides returns relations of relType touching (kind, id) from either
// end, each with the far endpoint's id.
func bothSides(ctx context.Context, store NeighborhoodStore, kind, id, relType string) ([]db.Relation, []string, error) {
	out, err := store.GetRelationsBySource(ctx, kind, id, relType)
	if err != nil {
		return nil, nil, err
	}
	in, err := store.GetRelationsByTarget(ctx, kind, id, relType)
	if err != nil {
		return nil, nil, err
	}
	rels := append(out, in...)
	byWeightDesc(rels)
	partners := make([]string, len(rels))
	for i, r := range rels {
		if r.SourceType == kind && r.SourceID == id {
			partners[i] = r.TargetID
		} else {
			partners[i] = r.SourceID
		}
	}
	return rels, partners, nil
}

// Neighborhood builds the local graph of page: its strongest mentioned
// entities, other pages sharing those entities, co-mentioned entities and
// the most similar pages.
func Neighborhood(ctx context.Context, store NeighborhoodStore, page *db.Page) (*NeighborhoodGraph, error) {
	b := &neighborhoodBuilder{index: map[string]int{}, edgeSeen: map[string]bool{}}
	current := db.NodeKey(db.KindPage, page.ID)
	b.addNode(pageNode(*page, NodeCurrentPage))

	mentions, err := store.GetRelationsBySource(ctx, db.KindPage, page.ID, db.RelMentions)
	if err != nil {
		return nil, fmt.Errorf("loading mentions: %w", err)
	}
	byWeightDesc(mentions)
	if len(mentions) > maxMentions {
		mentions = mentions[:maxMentions]
	}
	ids := make([]string, len(mentions))
	for i, m := range mentions {
		ids[i] = m.TargetID
	}
	entities, err := store.GetEntitiesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}
	cache := make(map[string]db.Entity, len(entities))
	for _, e := range entities {
		cache[e.ID] = e
	}

	var missing []string
	for _, m := range mentions {
		ent, ok := cache[m.TargetID]
		if !ok {
			continue
		}
		entKey := db.NodeKey(db.KindEntity, ent.ID)
		b.addNode(entityNode(ent))
		weight := m.Weight
		if weight == 0 {
			weight = 1
		}
		b.addEdge(current, entKey, db.RelMentions, 0.25+math.Log1p(weight))

		incoming, err := store.GetRelationsByTarget(ctx, db.KindEntity, ent.ID, db.RelMentions)
		if err != nil {
			return nil, fmt.Errorf("loading pages mentioning %s: %w", ent.ID, err)
		}
		var shared []string
		seen := map[string]bool{}
		for _, r := range incoming {
			if r.SourceType != db.KindPage || r.SourceID == page.ID || seen[r.SourceID] {
				continue
			}
			seen[r.SourceID] = true
			shared = append(shared, r.SourceID)
			if len(shared) == maxSharedPages {
				break
			}
		}
		if len(shared) > 0 {
			pages, err := store.GetPagesByIDs(ctx, shared)
			if err != nil {
				return nil, fmt.Errorf("loading shared pages: %w", err)
			}
			for _, p := range pages {
				b.addNode(pageNode(p, NodePage))
				b.addEdge(entKey, db.NodeKey(db.KindPage, p.ID), RelMentionShared, sharedPageWeight)
			}
		}

		co, partners, err := bothSides(ctx, store, db.KindEntity, ent.ID, db.RelCoMention)
		if err != nil {
			return nil, fmt.Errorf("loading co-mentions of %s: %w", ent.ID, err)
		}
		if len(co) > maxCoMentions {
			co, partners = co[:maxCoMentions], partners[:maxCoMentions]
		}
		for i, rel := range co {
			partner := partners[i]
			node := NeighborNode{Key: db.NodeKey(db.KindEntity, partner), Label: partner, Type: NodeEntity}
			if known, ok := cache[partner]; ok {
				node = entityNode(known)
			} else {
				missing = append(missing, partner)
			}
			b.addNode(node)
			b.addEdge(entKey, node.Key, db.RelCoMention, 0.25+rel.Weight/5)
		}
	}

	if len(missing) > 0 {
		extras, err := store.GetEntitiesByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("loading co-mentioned entities: %w", err)
		}
		for _, e := range extras {
			b.addNode(entityNode(e))
		}
	}

	similar, partners, err := bothSides(ctx, store, db.KindPage, page.ID, db.RelPageSimilar)
	if err != nil {
		return nil, fmt.Errorf("loading similar pages: %w", err)
	}
	if len(similar) > maxSimilarPages {
		similar, partners = similar[:maxSimilarPages], partners[:maxSimilarPages]
	}
	if len(similar) > 0 {
		pages, err := store.GetPagesByIDs(ctx, partners)
		if err != nil {
			return nil, fmt.Errorf("loading similar pages: %w", err)
		}
		byID := make(map[string]db.Page, len(pages))
		for _, p := range pages {
			byID[p.ID] = p
		}
		for i, rel := range similar {
			p, ok := byID[partners[i]]
			if !ok {
				continue
			}
			b.addNode(pageNode(p, NodePage))
			b.addEdge(current, db.NodeKey(db.KindPage, p.ID), db.RelPageSimilar, rel.Weight)
		}
	}

	return &b.graph, nil
}
