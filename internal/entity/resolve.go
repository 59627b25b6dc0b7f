package entity

import (
	"context"
	"strings"

	"memorypal/keeper/internal/db"
	"memorypal/keeper/internal/logger"
)

// Lookup finds stored entities by lowercase name.
type Lookup interface {
	FindEntitiesByNameLower(ctx context.Context, nameLower string) ([]db.Entity, error)
}

// Resolved is a candidate bound to an entity id.
type Resolved struct {
	Candidate
	ID string
}

// Resolver assigns ids to candidates, reusing stored entities with the same name.
type Resolver struct {
	store Lookup
	log   *logger.Logger
}

func NewResolver(store Lookup, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{store: store, log: log}
}

// Resolve keeps candidate order. A failed lookup is logged and treated as no match.
func (r *Resolver) Resolve(ctx context.Context, candidates []Candidate) []Resolved {
	out := make([]Resolved, 0, len(candidates))
	for _, c := range candidates {
		nameLower := strings.ToLower(c.Name)
		id := ""
		if r.store != nil {
			matches, err := r.store.FindEntitiesByNameLower(ctx, nameLower)
			if err != nil {
				r.log.Warn("entity lookup failed", "name", nameLower, "error", err)
			} else if len(matches) > 0 {
				id = matches[0].ID
			}
		}
		if id == "" {
			id = db.EntityID(c.Name, c.Type)
		}
		out = append(out, Resolved{Candidate: c, ID: id})
	}
	return out
}
