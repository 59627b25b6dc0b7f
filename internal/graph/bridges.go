package graph

// ArticulationPoint is a node whose removal disconnects part of the graph,
// such as an entity that is the only link between two groups of pages.
type ArticulationPoint struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Degree int    `json:"degree"`
}

// BridgeEdge is an edge whose removal disconnects the graph
type BridgeEdge struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	SourceTitle string `json:"source_title"`
	TargetTitle string `json:"target_title"`
}

// BridgeReport contains bridge analysis results
type BridgeReport struct {
	ArticulationPoints []ArticulationPoint `json:"articulation_points"`
	BridgeEdges        []BridgeEdge        `json:"bridge_edges"`
	APCount            int                 `json:"ap_count"`
	BridgeCount        int                 `json:"bridge_count"`
}

// ComputeBridges finds articulation points and bridge edges of the
// undirected graph, ignoring duplicate edges and self-loops.
func ComputeBridges(snap *Snapshot) *BridgeReport {
	if len(snap.Nodes) == 0 {
		return &BridgeReport{}
	}

	keys := snap.NodeKeys()
	index := make(map[string]int, len(keys))
	for i, key := range keys {
		index[key] = i
	}
	adj := dedupAdjacency(snap.Edges, index, len(keys))
	isAP, bridgePairs := tarjan(adj)

	report := &BridgeReport{}
	for i, ap := range isAP {
		if !ap {
			continue
		}
		node := snap.Nodes[keys[i]]
		report.ArticulationPoints = append(report.ArticulationPoints, ArticulationPoint{
			Key:    node.Key,
			Kind:   node.Kind,
			Title:  node.Title,
			Degree: len(adj[i]),
		})
	}
	for _, pair := range bridgePairs {
		u, v := snap.Nodes[keys[pair[0]]], snap.Nodes[keys[pair[1]]]
		report.BridgeEdges = append(report.BridgeEdges, BridgeEdge{
			Source:      u.Key,
			Target:      v.Key,
			SourceTitle: u.Title,
			TargetTitle: v.Title,
		})
	}
	report.APCount = len(report.ArticulationPoints)
	report.BridgeCount = len(report.BridgeEdges)
	return report
}

func dedupAdjacency(edges []EdgeInfo, index map[string]int, n int) [][]int {
	type pair struct{ u, v int }
	adj := make([][]int, n)
	seen := make(map[pair]bool)
	for _, e := range edges {
		u, okU := index[e.Source]
		v, okV := index[e.Target]
		if !okU || !okV || u == v {
			continue
		}
		key := pair{u, v}
		if u > v {
			key = pair{v, u}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		adj[u] = append(adj[u], v)
		adj[v] = append(adj[v], u)
	}
	return adj
}

// tarjan runs an iterative lowlink DFS over every component.
func tarjan(adj [][]int) ([]bool, [][2]int) {
	n := len(adj)
	disc := make([]int, n)
	low := make([]int, n)
	isAP := make([]bool, n)
	var bridges [][2]int
	counter := 1

	type frame struct{ node, parent, next int }

	for start := 0; start < n; start++ {
		if disc[start] != 0 {
			continue
		}
		disc[start], low[start] = counter, counter
		counter++
		stack := []frame{{start, -1, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node

			if top.next < len(adj[node]) {
				child := adj[node][top.next]
				top.next++
				if child == top.parent {
					continue
				}
				if disc[child] != 0 {
					low[node] = min(low[node], disc[child])
					continue
				}
				disc[child], low[child] = counter, counter
				counter++
				if node == start {
					rootChildren++
				}
				stack = append(stack, frame{child, node, 0})
				continue
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				break
			}
			parent := stack[len(stack)-1].node
			low[parent] = min(low[parent], low[node])
			if low[node] > disc[parent] {
				bridges = append(bridges, [2]int{parent, node})
			}
			if parent != start && low[node] >= disc[parent] {
				isAP[parent] = true
			}
		}

		if rootChildren >= 2 {
			isAP[start] = true
		}
	}
	return isAP, bridges
}
