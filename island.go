package ligament

import "slices"

// islandBody is the part of a body the island builder looks at
type islandBody struct {
	static      bool
	equilibrium bool
}

// islandPartition orders the bodies of a step. order[k] is an index into
// the builder's input; the groups follow each other in this order: active
// constrained, resting constrained, unconstrained dynamic, static.
type islandPartition struct {
	order []int
	// island is the island key of every input body: the smallest input
	// index of its island, -1 for static and unconstrained bodies
	island []int
	resting []bool

	activeCount        int
	restingCount       int
	unconstrainedCount int
	staticCount        int
	islands            int

	jointResting []bool
	activeJoints int

	parent []int
	rank   []int8
}

func (p *islandPartition) find(i int) int {
	for p.parent[i] != i {
		p.parent[i] = p.parent[p.parent[i]]
		i = p.parent[i]
	}

	return i
}

func (p *islandPartition) union(a, b int) {
	a = p.find(a)
	b = p.find(b)
	if a == b {
		return
	}

	switch {
	case p.rank[a] < p.rank[b]:
		p.parent[a] = b
	case p.rank[a] > p.rank[b]:
		p.parent[b] = a
	default:
		p.parent[b] = a
		p.rank[a]++
	}
}

// build partitions bodies into islands connected by edges. Static bodies
// never join an island. It runs on a single goroutine and never fails.
func (p *islandPartition) build(bodies []islandBody, edges [][2]int) {
	n := len(bodies)
	p.parent = resize(p.parent, n)
	p.rank = resize(p.rank, n)
	p.island = resize(p.island, n)
	p.resting = resize(p.resting, n)
	p.jointResting = resize(p.jointResting, len(edges))

	for i := range n {
		p.parent[i] = i
		p.rank[i] = 0
		p.island[i] = -1
	}

	constrained := make([]bool, n)
	for _, edge := range edges {
		a, b := edge[0], edge[1]
		if !bodies[a].static {
			constrained[a] = true
		}
		if !bodies[b].static {
			constrained[b] = true
		}
		if !bodies[a].static && !bodies[b].static {
			p.union(a, b)
		}
	}

	// island key and equilibrium, keyed by root
	key := make(map[int]int)
	equilibrium := make(map[int]bool)
	for i := range n {
		if !constrained[i] {
			continue
		}
		root := p.find(i)
		if _, ok := key[root]; !ok {
			key[root] = i
			equilibrium[root] = true
		}
		equilibrium[root] = equilibrium[root] && bodies[i].equilibrium
	}
	p.islands = len(key)

	p.order = p.order[:0]
	p.activeCount, p.restingCount, p.unconstrainedCount, p.staticCount = 0, 0, 0, 0
	for i := range n {
		switch {
		case bodies[i].static:
			p.resting[i] = true
			p.staticCount++
		case constrained[i]:
			root := p.find(i)
			p.island[i] = key[root]
			p.resting[i] = bodies[i].equilibrium && equilibrium[root]
			if p.resting[i] {
				p.restingCount++
			} else {
				p.activeCount++
			}
		default:
			p.resting[i] = bodies[i].equilibrium
			p.unconstrainedCount++
		}
		p.order = append(p.order, i)
	}

	slices.SortStableFunc(p.order, func(a, b int) int {
		if ga, gb := p.group(bodies, constrained, a), p.group(bodies, constrained, b); ga != gb {
			return ga - gb
		}
		if p.island[a] != p.island[b] {
			return p.island[a] - p.island[b]
		}
		return a - b
	})

	p.activeJoints = 0
	for k, edge := range edges {
		p.jointResting[k] = p.resting[edge[0]] && p.resting[edge[1]]
		if !p.jointResting[k] {
			p.activeJoints++
		}
	}
}

func (p *islandPartition) group(bodies []islandBody, constrained []bool, i int) int {
	switch {
	case bodies[i].static:
		return 3
	case !constrained[i]:
		return 2
	case p.resting[i]:
		return 1
	}

	return 0
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}

	return s[:n]
}
