package fuzzy

// scoreMemo holds one lazily computed per-value aggregate.
type scoreMemo struct {
	computed bool
	values   map[string]float64
}

// clusterScores carries the pairs of one cluster and the aggregates derived
// from them. Both aggregates are computed on first access only: length and
// frequency policies usually settle without ever reaching the tie-break.
type clusterScores struct {
	pairs []Pair // sorted by (Left, Right)

	sum scoreMemo
	max scoreMemo
}

// Sum is the total score of all in-cluster pairs involving v.
func (c *clusterScores) Sum(v string) float64 {
	if !c.sum.computed {
		c.sum.values = make(map[string]float64)
		for _, p := range c.pairs {
			c.sum.values[p.Left] += p.Score
			c.sum.values[p.Right] += p.Score
		}
		c.sum.computed = true
	}
	return c.sum.values[v]
}

// Max is the best single in-cluster pair score involving v.
func (c *clusterScores) Max(v string) float64 {
	if !c.max.computed {
		c.max.values = make(map[string]float64)
		for _, p := range c.pairs {
			if cur, ok := c.max.values[p.Left]; !ok || p.Score > cur {
				c.max.values[p.Left] = p.Score
			}
			if cur, ok := c.max.values[p.Right]; !ok || p.Score > cur {
				c.max.values[p.Right] = p.Score
			}
		}
		c.max.computed = true
	}
	return c.max.values[v]
}
