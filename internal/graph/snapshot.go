package graph

import "sort"

// NodeInfo is a lightweight node representation decoupled from DB types.
// Key is the node key ("page:<id>" or "entity:<id>").
type NodeInfo struct {
	Key        string
	ID         string
	Kind       string // page or entity
	Title      string
	EntityType string // entities only
	Embedded   bool   // pages only
	Weight     float64
	Timestamp  int64
}

// EdgeInfo is a relation between two node keys
type EdgeInfo struct {
	ID      string
	Source  string
	Target  string
	RelType string
	Weight  float64
}

// Snapshot holds the knowledge graph with precomputed adjacency lists
type Snapshot struct {
	Nodes  map[string]*NodeInfo
	Edges  []EdgeInfo
	Adj    map[string][]string // undirected
	OutAdj map[string][]string // directed: source -> targets
	InAdj  map[string][]string // directed: target -> sources
}

// NewSnapshot builds a Snapshot from raw nodes and edges. Edges with an
// endpoint outside nodes are dropped.
func NewSnapshot(nodes []*NodeInfo, edges []EdgeInfo) *Snapshot {
	nodeMap := make(map[string]*NodeInfo, len(nodes))
	adj := make(map[string][]string)
	outAdj := make(map[string][]string)
	inAdj := make(map[string][]string)

	for _, n := range nodes {
		nodeMap[n.Key] = n
		adj[n.Key] = nil
		outAdj[n.Key] = nil
		inAdj[n.Key] = nil
	}

	kept := make([]EdgeInfo, 0, len(edges))
	for _, e := range edges {
		if _, ok := nodeMap[e.Source]; !ok {
			continue
		}
		if _, ok := nodeMap[e.Target]; !ok {
			continue
		}
		kept = append(kept, e)
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
		inAdj[e.Target] = append(inAdj[e.Target], e.Source)
	}

	return &Snapshot{
		Nodes:  nodeMap,
		Edges:  kept,
		Adj:    adj,
		OutAdj: outAdj,
		InAdj:  inAdj,
	}
}

// FilterRelTypes returns a snapshot with every node but only edges of the
// given relation types. No types keeps everything.
func (s *Snapshot) FilterRelTypes(relTypes ...string) *Snapshot {
	if len(relTypes) == 0 {
		return s
	}
	allowed := make(map[string]bool, len(relTypes))
	for _, t := range relTypes {
		allowed[t] = true
	}
	nodes := make([]*NodeInfo, 0, len(s.Nodes))
	for _, key := range s.NodeKeys() {
		nodes = append(nodes, s.Nodes[key])
	}
	var edges []EdgeInfo
	for _, e := range s.Edges {
		if allowed[e.RelType] {
			edges = append(edges, e)
		}
	}
	return NewSnapshot(nodes, edges)
}

// NodeKeys returns a sorted list of all node keys (for deterministic output)
func (s *Snapshot) NodeKeys() []string {
	keys := make([]string, 0, len(s.Nodes))
	for key := range s.Nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// CountKind returns the number of nodes of kind.
func (s *Snapshot) CountKind(kind string) int {
	n := 0
	for _, node := range s.Nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

// RelCounts returns the number of edges per relation type.
func (s *Snapshot) RelCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range s.Edges {
		counts[e.RelType]++
	}
	return counts
}
