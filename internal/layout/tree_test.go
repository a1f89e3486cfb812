package layout

import (
	"fmt"
	"math"
	"reflect"
	"testing"
)

func TestTreeBuildAggregates(t *testing.T) {
	nodes := make([]Node, 0, 9)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			nodes = append(nodes, Node{
				ID:  fmt.Sprintf("n%d", y*3+x),
				Pos: []float64{float64(x) * 10, float64(y) * 10},
			})
		}
	}
	st := mustStore(t, nodes, nil, testConfig())

	tr := newTree(2)
	tr.build(st)

	if len(tr.cells) < 2 {
		t.Fatalf("expected the root to subdivide, got %d cells", len(tr.cells))
	}
	root := tr.cells[0]

	// All nodes are unconnected, so each has mass 1.
	if math.Abs(root.mass-9) > 1e-9 {
		t.Errorf("expected root mass 9, got %f", root.mass)
	}

	// Equal masses put the center of mass at the grid centroid.
	if math.Abs(root.com[0]-10) > 1e-9 || math.Abs(root.com[1]-10) > 1e-9 {
		t.Errorf("expected center of mass at (10,10), got (%f,%f)", root.com[0], root.com[1])
	}

	// The root region must contain every node with padding to spare.
	for d := 0; d < 2; d++ {
		if root.min[d] >= 0 || root.min[d]+root.width <= 20 {
			t.Errorf("axis %d: region [%f,%f] does not pad the extent [0,20]",
				d, root.min[d], root.min[d]+root.width)
		}
	}
	if root.width <= 20 {
		t.Errorf("expected padded width > 20, got %f", root.width)
	}
}

func TestChildOfTieBreak(t *testing.T) {
	c := cell{min: [3]float64{0, 0, 0}, width: 100}

	tests := []struct {
		name string
		p    [3]float64
		dim  int
		want int32
	}{
		{"exact center goes to lower half", [3]float64{50, 50, 0}, 2, 0},
		{"just right of center", [3]float64{50.5, 50, 0}, 2, 1},
		{"just above center", [3]float64{50, 50.5, 0}, 2, 2},
		{"upper right", [3]float64{51, 51, 0}, 2, 3},
		{"lower corner", [3]float64{0, 0, 0}, 2, 0},
		{"exact center 3d goes to lower octant", [3]float64{50, 50, 50}, 3, 0},
		{"upper z only", [3]float64{50, 50, 51}, 3, 4},
		{"far corner 3d", [3]float64{99, 99, 99}, 3, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := childOf(c, tt.p, tt.dim); got != tt.want {
				t.Errorf("childOf(%v) = %d, want %d", tt.p, got, tt.want)
			}
		})
	}
}

func TestTreeCoincidentPositions(t *testing.T) {
	nodes := make([]Node, 8)
	for i := range nodes {
		nodes[i] = Node{ID: fmt.Sprintf("n%d", i), Pos: []float64{1, 2}}
	}
	st := mustStore(t, nodes, nil, testConfig())

	tr := newTree(2)
	tr.build(st)

	// Jittered duplicates are distinct, so insertion must terminate and
	// subdivide instead of looping.
	if len(tr.cells) < 2 {
		t.Fatalf("expected coincident nodes to subdivide after jitter, got %d cells", len(tr.cells))
	}
	root := tr.cells[0]
	if math.Abs(root.mass-8) > 1e-9 {
		t.Errorf("expected root mass 8, got %f", root.mass)
	}
	if math.Abs(root.com[0]-1) > 1e-6 || math.Abs(root.com[1]-2) > 1e-6 {
		t.Errorf("expected center of mass near (1,2), got (%f,%f)", root.com[0], root.com[1])
	}

	// The jittered tree coordinates give each query a direction, so even a
	// fully coincident cloud feels a nonzero push.
	var f [3]float64
	tr.repulsion(st, 0, st.point(0), 2.0, 1.2, false, &f)
	if f[0] == 0 && f[1] == 0 {
		t.Error("expected nonzero repulsion on a coincident node")
	}
}

func TestTreeDepthFold(t *testing.T) {
	// Insert the same point twice, bypassing build's duplicate jitter. The
	// pair can never separate, so subdivision must stop at the depth cap and
	// fold the second body into the leaf aggregate.
	tr := newTree(2)
	tr.cells = append(tr.cells, cell{min: [3]float64{0, 0, 0}, width: 1, body: -1, children: -1})
	p := [3]float64{0.3, 0.3, 0}
	tr.insert(0, p, 1)
	tr.insert(1, p, 1)

	found := false
	for _, c := range tr.cells {
		if c.children < 0 && math.Abs(c.mass-2) < 1e-9 {
			found = true
			if c.com != p {
				t.Errorf("expected fold aggregate centered at %v, got %v", p, c.com)
			}
			break
		}
	}
	if !found {
		t.Error("expected an aggregate leaf holding both inseparable points")
	}
	if math.Abs(tr.cells[0].mass-2) > 1e-9 {
		t.Errorf("expected root mass 2, got %f", tr.cells[0].mass)
	}
}

func TestJitterPointDeterministic(t *testing.T) {
	p := [3]float64{3, 4, 0}

	a1 := jitterPoint(p, "node-a", 0, 2, 1e-6)
	a2 := jitterPoint(p, "node-a", 0, 2, 1e-6)
	if a1 != a2 {
		t.Errorf("same id and salt must jitter identically: %v vs %v", a1, a2)
	}

	b := jitterPoint(p, "node-b", 0, 2, 1e-6)
	if a1 == b {
		t.Error("different ids should jitter differently")
	}
	s1 := jitterPoint(p, "node-a", 1, 2, 1e-6)
	if a1 == s1 {
		t.Error("different salts should jitter differently")
	}

	// Offsets stay within the scale and never touch unused axes.
	for d := 0; d < 2; d++ {
		if math.Abs(a1[d]-p[d]) > 1e-6 {
			t.Errorf("axis %d offset %g exceeds scale", d, a1[d]-p[d])
		}
	}
	if a1[2] != 0 {
		t.Errorf("2d jitter must not touch z, got %g", a1[2])
	}
}

func TestTreeRebuildIdentical(t *testing.T) {
	st := mustStore(t, scatterNodes(60, 99, 250), nil, testConfig())

	tr := newTree(2)
	tr.build(st)
	snapshot := append([]cell(nil), tr.cells...)

	tr.build(st)
	if !reflect.DeepEqual(snapshot, tr.cells) {
		t.Error("rebuilding over unchanged positions must reproduce the tree exactly")
	}
}

func TestTreeExactMatchesBrute(t *testing.T) {
	st := mustStore(t, scatterNodes(150, 12345, 300), nil, testConfig())

	tr := newTree(2)
	tr.build(st)

	// Establish the force scale first so near-cancelled nodes compare
	// against the field's magnitude rather than their own.
	brute := make([][3]float64, st.n)
	scale := 0.0
	for i := 0; i < st.n; i++ {
		bruteRepulsion(st, int32(i), st.point(int32(i)), 2.0, false, &brute[i])
		for d := 0; d < 2; d++ {
			if a := math.Abs(brute[i][d]); a > scale {
				scale = a
			}
		}
	}
	if scale == 0 {
		t.Fatal("expected nonzero repulsion forces")
	}

	// theta = 0 rejects every aggregate, so the traversal reaches the same
	// leaf pairs brute force visits, differing only in summation order.
	for i := 0; i < st.n; i++ {
		var f [3]float64
		tr.repulsion(st, int32(i), st.point(int32(i)), 2.0, 0, false, &f)
		for d := 0; d < 2; d++ {
			if math.Abs(f[d]-brute[i][d]) > 1e-9*scale {
				t.Fatalf("node %d axis %d: exact traversal %g vs brute %g", i, d, f[d], brute[i][d])
			}
		}
	}
}

func BenchmarkTreeBuild(b *testing.B) {
	sizes := []int{100, 1000, 5000}

	for _, n := range sizes {
		// A regular grid subdivides evenly, so this measures the arena at
		// its deepest uniform occupancy.
		nodes := gridNodes(n, 10)
		var st *store
		var err error
		if st, err = newStore(nodes, nil, testConfig()); err != nil {
			b.Fatalf("newStore: %v", err)
		}

		b.Run(fmt.Sprintf("Build_%d", n), func(b *testing.B) {
			tr := newTree(2)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				tr.build(st)
			}
		})
	}
}
