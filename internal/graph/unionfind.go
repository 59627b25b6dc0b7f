package graph

import "sort"

// UnionFind implements union-find with path compression and union by size
type UnionFind struct {
	parent map[string]string
	size   map[string]int
}

// NewUnionFind creates a new UnionFind where each key is its own component
func NewUnionFind(keys []string) *UnionFind {
	uf := &UnionFind{
		parent: make(map[string]string, len(keys)),
		size:   make(map[string]int, len(keys)),
	}
	for _, key := range keys {
		uf.parent[key] = key
		uf.size[key] = 1
	}
	return uf
}

// Find returns the root of the component containing key, with path compression.
// Unknown keys are their own root.
func (uf *UnionFind) Find(key string) string {
	parent, ok := uf.parent[key]
	if !ok {
		return key
	}
	if parent != key {
		root := uf.Find(parent)
		uf.parent[key] = root
		return root
	}
	return key
}

// Union merges the components containing a and b. Returns true if they were separate.
func (uf *UnionFind) Union(a, b string) bool {
	rootA, rootB := uf.Find(a), uf.Find(b)
	if rootA == rootB {
		return false
	}
	if uf.size[rootA] < uf.size[rootB] {
		rootA, rootB = rootB, rootA
	}
	uf.parent[rootB] = rootA
	uf.size[rootA] += uf.size[rootB]
	return true
}

// Size returns the number of keys in key's component.
func (uf *UnionFind) Size(key string) int {
	if s, ok := uf.size[uf.Find(key)]; ok {
		return s
	}
	return 1
}

// Components returns all connected components, largest first. Members are
// sorted, and equal-size components are ordered by their first member.
func (uf *UnionFind) Components() [][]string {
	groups := make(map[string][]string)
	for key := range uf.parent {
		root := uf.Find(key)
		groups[root] = append(groups[root], key)
	}
	result := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		result = append(result, members)
	}
	sort.Slice(result, func(i, j int) bool {
		if len(result[i]) != len(result[j]) {
			return len(result[i]) > len(result[j])
		}
		return result[i][0] < result[j][0]
	})
	return result
}
