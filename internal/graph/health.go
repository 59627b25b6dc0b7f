package graph

import (
	"math"

	"memorypal/keeper/internal/db"
)

// HealthBreakdown shows the sub-scores of the health formula
type HealthBreakdown struct {
	Connectivity      float64 `json:"connectivity"`
	Components        float64 `json:"components"`
	EmbeddingCoverage float64 `json:"embedding_coverage"`
	EntityCoverage    float64 `json:"entity_coverage"`
	Fragility         float64 `json:"fragility"`
}

// AnalysisReport is the full knowledge-graph analysis result
type AnalysisReport struct {
	Pages           int             `json:"pages"`
	EmbeddedPages   int             `json:"embedded_pages"`
	Entities        int             `json:"entities"`
	Relations       map[string]int  `json:"relations"`
	HealthScore     float64         `json:"health_score"`
	HealthBreakdown HealthBreakdown `json:"health_breakdown"`
	Topology        *TopologyReport `json:"topology"`
	Bridges         *BridgeReport   `json:"bridges"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 10,
		TopN:         50,
	}
}

// Analyze runs all analyses and computes a composite health score in [0, 1].
// An empty graph scores 0.
func Analyze(snap *Snapshot, config *AnalyzerConfig) *AnalysisReport {
	if config == nil {
		config = DefaultConfig()
	}
	topology := ComputeTopology(snap, config.HubThreshold, config.TopN)
	bridges := ComputeBridges(snap)

	pages := snap.CountKind(db.KindPage)
	embedded, withEntities := 0, 0
	for key, node := range snap.Nodes {
		if node.Kind != db.KindPage {
			continue
		}
		if node.Embedded {
			embedded++
		}
		for _, target := range snap.OutAdj[key] {
			if snap.Nodes[target].Kind == db.KindEntity {
				withEntities++
				break
			}
		}
	}

	total := float64(topology.TotalNodes)
	var b HealthBreakdown
	if total > 0 {
		b.Connectivity = clamp(1.0-math.Min(float64(topology.OrphanCount)/total, 0.2)*5.0, 0, 1)
		b.Fragility = clamp(1.0-math.Min(float64(bridges.APCount)/total, 0.05)*20.0, 0, 1)
	}
	if topology.NumComponents > 0 {
		b.Components = clamp(1.0/float64(topology.NumComponents), 0, 1)
	}
	if pages > 0 {
		b.EmbeddingCoverage = float64(embedded) / float64(pages)
		b.EntityCoverage = float64(withEntities) / float64(pages)
	}

	score := 0.30*b.Connectivity + 0.20*b.Components + 0.20*b.EmbeddingCoverage +
		0.15*b.EntityCoverage + 0.15*b.Fragility

	return &AnalysisReport{
		Pages:           pages,
		EmbeddedPages:   embedded,
		Entities:        snap.CountKind(db.KindEntity),
		Relations:       snap.RelCounts(),
		HealthScore:     score,
		HealthBreakdown: b,
		Topology:        topology,
		Bridges:         bridges,
	}
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
