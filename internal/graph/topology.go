package graph

import (
	"sort"

	"memorypal/keeper/internal/db"
)

// HubNode is a node with high connectivity
type HubNode struct {
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport contains topology analysis results
type TopologyReport struct {
	TotalNodes        int            `json:"total_nodes"`
	TotalEdges        int            `json:"total_edges"`
	NumComponents     int            `json:"num_components"`
	LargestComponent  int            `json:"largest_component"`
	SmallestComponent int            `json:"smallest_component"`
	OrphanCount       int            `json:"orphan_count"`
	OrphanPages       int            `json:"orphan_pages"`
	OrphanKeys        []string       `json:"orphan_keys"`
	DegreeHistogram   []DegreeBucket `json:"degree_histogram"`
	Hubs              []HubNode      `json:"hubs"`
}

// ComputeTopology analyzes graph topology: components, orphans, degree distribution, hubs
func ComputeTopology(snap *Snapshot, hubThreshold, topN int) *TopologyReport {
	totalNodes := len(snap.Nodes)
	if totalNodes == 0 {
		return &TopologyReport{DegreeHistogram: defaultHistogram()}
	}

	keys := snap.NodeKeys()
	uf := NewUnionFind(keys)
	for _, e := range snap.Edges {
		uf.Union(e.Source, e.Target)
	}

	components := uf.Components()
	largest, smallest := 0, totalNodes
	for _, c := range components {
		if len(c) > largest {
			largest = len(c)
		}
		if len(c) < smallest {
			smallest = len(c)
		}
	}

	var orphans []string
	orphanPages := 0
	for _, key := range keys {
		if len(snap.Adj[key]) == 0 {
			orphans = append(orphans, key)
			if snap.Nodes[key].Kind == db.KindPage {
				orphanPages++
			}
		}
	}
	orphanCount := len(orphans)
	if len(orphans) > topN {
		orphans = orphans[:topN]
	}

	// log-scale buckets
	buckets := [7]int{}
	for _, key := range keys {
		buckets[degreeBucket(len(snap.Adj[key]))]++
	}
	histogram := defaultHistogram()
	for i := range histogram {
		histogram[i].Count = buckets[i]
	}

	var hubs []HubNode
	for _, key := range keys {
		degree := len(snap.Adj[key])
		if degree > hubThreshold {
			node := snap.Nodes[key]
			hubs = append(hubs, HubNode{
				Key:       key,
				Kind:      node.Kind,
				Title:     node.Title,
				Degree:    degree,
				InDegree:  len(snap.InAdj[key]),
				OutDegree: len(snap.OutAdj[key]),
			})
		}
	}
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}

	return &TopologyReport{
		TotalNodes:        totalNodes,
		TotalEdges:        len(snap.Edges),
		NumComponents:     len(components),
		LargestComponent:  largest,
		SmallestComponent: smallest,
		OrphanCount:       orphanCount,
		OrphanPages:       orphanPages,
		OrphanKeys:        orphans,
		DegreeHistogram:   histogram,
		Hubs:              hubs,
	}
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
