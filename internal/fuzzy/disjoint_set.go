package fuzzy

import "sort"

// disjointSet is a union-find over strings backed by an integer arena.
//
// Values get a node only when first referenced, so memory is bounded by the
// values that actually appear in a pair. Path halving plus union-by-size keep
// find/union amortized near-constant.
type disjointSet struct {
	index  map[string]int
	names  []string
	parent []int
	size   []int
}

func newDisjointSet(hint int) *disjointSet {
	return &disjointSet{
		index:  make(map[string]int, hint),
		names:  make([]string, 0, hint),
		parent: make([]int, 0, hint),
		size:   make([]int, 0, hint),
	}
}

// node returns the arena index for v, allocating it on first use.
func (d *disjointSet) node(v string) int {
	if i, ok := d.index[v]; ok {
		return i
	}
	i := len(d.names)
	d.index[v] = i
	d.names = append(d.names, v)
	d.parent = append(d.parent, i)
	d.size = append(d.size, 1)
	return i
}

func (d *disjointSet) find(i int) int {
	for d.parent[i] != i {
		d.parent[i] = d.parent[d.parent[i]]
		i = d.parent[i]
	}
	return i
}

func (d *disjointSet) union(a, b string) {
	ra, rb := d.find(d.node(a)), d.find(d.node(b))
	if ra == rb {
		return
	}
	if d.size[ra] < d.size[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	d.size[ra] += d.size[rb]
}

func (d *disjointSet) len() int { return len(d.names) }

// groups returns every set as a sorted member list. Groups are ordered by their
// smallest member so the output does not depend on union order.
func (d *disjointSet) groups() [][]string {
	byRoot := make(map[int][]string)
	for i, name := range d.names {
		r := d.find(i)
		byRoot[r] = append(byRoot[r], name)
	}

	out := make([][]string, 0, len(byRoot))
	for _, members := range byRoot {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
