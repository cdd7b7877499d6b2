package cluster

import (
	"context"
	"math"

	"github.com/poiesic/masterdb/core"
)

// step records one dendrogram merge between the clusters held in two slots.
// Each slot index is also a member of the cluster it holds.
type step struct {
	a, b     int
	distance float64
}

// condensed is the upper triangle of a symmetric distance matrix.
// Distances are stored as float32 to halve memory; arithmetic uses float64.
type condensed struct {
	n int
	d []float32
}

func newCondensed(vectors [][]float32) *condensed {
	n := len(vectors)
	m := &condensed{n: n, d: make([]float32, n*(n-1)/2)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.d[m.offset(i, j)] = float32(core.CosineDistance(vectors[i], vectors[j]))
		}
	}
	return m
}

// offset maps i < j to the position of (i, j) in the condensed array.
func (m *condensed) offset(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return m.n*i - i*(i+1)/2 + (j - i - 1)
}

func (m *condensed) get(i, j int) float64 {
	return float64(m.d[m.offset(i, j)])
}

func (m *condensed) set(i, j int, v float64) {
	m.d[m.offset(i, j)] = float32(v)
}

// averageLinkage builds the full average-linkage dendrogram with the
// nearest-neighbour chain algorithm. Steps come out in discovery order,
// not sorted by distance.
func averageLinkage(ctx context.Context, vectors [][]float32) ([]step, error) {
	n := len(vectors)
	if n < 2 {
		return nil, nil
	}

	m := newCondensed(vectors)
	active := make([]bool, n)
	size := make([]int, n)
	for i := range active {
		active[i] = true
		size[i] = 1
	}

	steps := make([]step, 0, n-1)
	chain := make([]int, 0, n)
	next := 0 // lowest index that may still be active

	for remaining := n; remaining > 1; remaining-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(chain) == 0 {
			for !active[next] {
				next++
			}
			chain = append(chain, next)
		}

		var (
			a, b int
			dist float64
		)
		for {
			a = chain[len(chain)-1]
			prev := -1
			best := -1
			bestDist := math.Inf(1)
			if len(chain) >= 2 {
				// Preferring the previous element on ties guarantees termination.
				prev = chain[len(chain)-2]
				best = prev
				bestDist = m.get(a, prev)
			}
			for k := 0; k < n; k++ {
				if !active[k] || k == a {
					continue
				}
				if d := m.get(a, k); d < bestDist {
					best, bestDist = k, d
				}
			}
			if best == prev {
				b, dist = prev, bestDist
				break
			}
			chain = append(chain, best)
		}
		chain = chain[:len(chain)-2]

		keep, drop := a, b
		if drop < keep {
			keep, drop = drop, keep
		}
		sk, sd := float64(size[keep]), float64(size[drop])
		for k := 0; k < n; k++ {
			if !active[k] || k == keep || k == drop {
				continue
			}
			merged := (sk*m.get(keep, k) + sd*m.get(drop, k)) / (sk + sd)
			m.set(keep, k, merged)
		}
		active[drop] = false
		size[keep] += size[drop]
		steps = append(steps, step{a: keep, b: drop, distance: dist})
	}

	return steps, nil
}

// unionFind is a disjoint-set forest over point indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union links the two sets, keeping the smaller root so roots stay minimal.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
