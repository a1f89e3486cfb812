package layout

import (
	"fmt"
	"testing"
)

// testConfig is the default tuning pinned to one worker so unit tests stay
// single-threaded unless they opt in.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ThreadCount = 1
	return cfg
}

func mustStore(t *testing.T, nodes []Node, edges []Edge, cfg Config) *store {
	t.Helper()
	st, err := newStore(nodes, edges, cfg)
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	return st
}

// gridNodes lays n nodes on a 10-wide square grid with the given spacing.
func gridNodes(n int, spacing float64) []Node {
	nodes := make([]Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = Node{
			ID:  fmt.Sprintf("n%d", i),
			Pos: []float64{float64(i%10) * spacing, float64(i/10) * spacing},
		}
	}
	return nodes
}

// scatterNodes produces a reproducible pseudo-random 2D point cloud in
// [-scale, scale) from a fixed linear congruential sequence.
func scatterNodes(n int, seed uint64, scale float64) []Node {
	nodes := make([]Node, n)
	s := seed
	next := func() float64 {
		s = s*6364136223846793005 + 1442695040888963407
		return (2*float64(s>>11)/float64(1<<53) - 1) * scale
	}
	for i := 0; i < n; i++ {
		nodes[i] = Node{ID: fmt.Sprintf("n%d", i), Pos: []float64{next(), next()}}
	}
	return nodes
}

// ringEdges connects node i to i+1 around a cycle, by the ids gridNodes and
// scatterNodes assign.
func ringEdges(n int) []Edge {
	edges := make([]Edge, n)
	for i := 0; i < n; i++ {
		edges[i] = Edge{Source: fmt.Sprintf("n%d", i), Target: fmt.Sprintf("n%d", (i+1)%n)}
	}
	return edges
}
