package sched

import "sort"

// conflictGraph is a DAG over instruction indices. An edge i -> j (i < j)
// means j conflicts with i and must observe i's effects.
type conflictGraph struct {
	n       int
	edges   map[int][]int // earlier -> later
	parents map[int][]int // later -> earlier
}

func buildConflictGraph(accesses []Access) *conflictGraph {
	g := &conflictGraph{
		n:       len(accesses),
		edges:   make(map[int][]int),
		parents: make(map[int][]int),
	}
	for j := range accesses {
		for i := 0; i < j; i++ {
			if accesses[i].Conflicts(accesses[j]) {
				g.edges[i] = append(g.edges[i], j)
				g.parents[j] = append(g.parents[j], i)
			}
		}
	}
	return g
}

// edgeCount returns the number of conflict edges.
func (g *conflictGraph) edgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// components groups indices into weakly connected components. Each component
// is sorted ascending; components are ordered by their smallest index.
func (g *conflictGraph) components() [][]int {
	parent := make([]int, g.n)
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for i, children := range g.edges {
		for _, j := range children {
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			// Keep the smallest index as root for stable ordering
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < g.n; i++ {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	sort.Ints(roots)

	result := make([][]int, 0, len(roots))
	for _, r := range roots {
		result = append(result, groups[r])
	}
	return result
}

// levels groups indices by execution level. Level 0 has no conflicting
// predecessor; level N depends only on levels below N.
func (g *conflictGraph) levels() [][]int {
	level := make([]int, g.n)
	maxLevel := -1
	// Indices are already a topological order since edges only point forward
	for j := 0; j < g.n; j++ {
		for _, i := range g.parents[j] {
			if level[i]+1 > level[j] {
				level[j] = level[i] + 1
			}
		}
		if level[j] > maxLevel {
			maxLevel = level[j]
		}
	}

	result := make([][]int, maxLevel+1)
	for i := 0; i < g.n; i++ {
		result[level[i]] = append(result[level[i]], i)
	}
	return result
}
