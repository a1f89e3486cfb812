package layout

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

const (
	// maxTreeDepth bounds subdivision; points that still share a cell this
	// deep are folded into one aggregate leaf.
	maxTreeDepth = 64
	// treeStackSize bounds the traversal stack: at most fan siblings per
	// level along one descent.
	treeStackSize = 8 * maxTreeDepth
)

// cell is one region of the arena tree. children < 0 marks a leaf; body is
// the index of the single contained node, or -1 for an empty leaf. For
// internal cells com/mass aggregate the whole subtree, mass-weighted.
type cell struct {
	min      [3]float64
	width    float64
	com      [3]float64
	mass     float64
	body     int32
	children int32
}

// bhTree is the Barnes-Hut spatial index: a quadtree in 2D, an octree in 3D,
// stored as a single cell arena with int32 child links. It is rebuilt from
// scratch every iteration and read concurrently (never mutated) during the
// force phase; the arena's capacity is retained across rebuilds.
type bhTree struct {
	dim   int
	fan   int32 // children per subdivision: 4 in 2D, 8 in 3D
	cells []cell
}

func newTree(dim int) *bhTree {
	fan := int32(4)
	if dim == 3 {
		fan = 8
	}
	return &bhTree{dim: dim, fan: fan}
}

// build rebuilds the tree over the store's current positions. The bounding
// region is the node extent padded by 10% of the widest axis (with an
// absolute floor so fully coincident inputs still get a usable region) and
// squared up so every cell is a cube. Exact duplicate coordinates get a
// deterministic jitter derived from the node id before insertion, so
// subdivision always terminates and reruns stay bit-for-bit reproducible.
func (t *bhTree) build(st *store) {
	t.cells = t.cells[:0]

	var lo, hi [3]float64
	for d := 0; d < t.dim; d++ {
		lo[d] = math.Inf(1)
		hi[d] = math.Inf(-1)
	}
	for i := 0; i < st.n; i++ {
		base := i * st.dim
		for d := 0; d < t.dim; d++ {
			v := st.pos[base+d]
			if v < lo[d] {
				lo[d] = v
			}
			if v > hi[d] {
				hi[d] = v
			}
		}
	}
	extent := 0.0
	for d := 0; d < t.dim; d++ {
		if e := hi[d] - lo[d]; e > extent {
			extent = e
		}
	}
	pad := extent * 0.1
	if pad < 1e-3 {
		pad = 1e-3
	}
	width := extent + 2*pad
	var min [3]float64
	for d := 0; d < t.dim; d++ {
		min[d] = (lo[d]+hi[d])/2 - width/2
	}
	t.cells = append(t.cells, cell{min: min, width: width, body: -1, children: -1})

	jitter := pad * 1e-6
	seen := make(map[[3]float64]struct{}, st.n)
	for i := 0; i < st.n; i++ {
		p := st.point(int32(i))
		if _, dup := seen[p]; dup {
			for salt := uint64(0); ; salt++ {
				q := jitterPoint(p, st.ids[i], salt, t.dim, jitter)
				if _, taken := seen[q]; !taken {
					p = q
					break
				}
			}
		}
		seen[p] = struct{}{}
		t.insert(int32(i), p, st.mass[i])
	}
}

// insert descends from the root, keeping aggregates current on the way down.
// Aggregate sums are accumulated in insertion order, which is fixed, so the
// tree is identical across runs.
func (t *bhTree) insert(i int32, p [3]float64, m float64) {
	cur := int32(0)
	depth := 0
	for {
		c := &t.cells[cur]
		if c.children < 0 {
			if c.body < 0 && c.mass == 0 {
				c.body = i
				c.com = p
				c.mass = m
				return
			}
			if depth >= maxTreeDepth {
				// inseparable points: fold into the leaf aggregate
				tm := c.mass + m
				for d := 0; d < t.dim; d++ {
					c.com[d] = (c.com[d]*c.mass + p[d]*m) / tm
				}
				c.mass = tm
				return
			}
			t.split(cur)
			c = &t.cells[cur] // the arena may have been reallocated
		}
		tm := c.mass + m
		for d := 0; d < t.dim; d++ {
			c.com[d] = (c.com[d]*c.mass + p[d]*m) / tm
		}
		c.mass = tm
		cur = c.children + childOf(*c, p, t.dim)
		depth++
	}
}

// split subdivides a single-body leaf into fan children and relocates the
// existing body one level down.
func (t *bhTree) split(cur int32) {
	parent := t.cells[cur]
	first := int32(len(t.cells))
	half := parent.width / 2
	for k := int32(0); k < t.fan; k++ {
		c := cell{min: parent.min, width: half, body: -1, children: -1}
		if k&1 != 0 {
			c.min[0] += half
		}
		if k&2 != 0 {
			c.min[1] += half
		}
		if k&4 != 0 {
			c.min[2] += half
		}
		t.cells = append(t.cells, c)
	}
	child := &t.cells[first+childOf(parent, parent.com, t.dim)]
	child.body = parent.body
	child.com = parent.com
	child.mass = parent.mass

	p := &t.cells[cur]
	p.children = first
	p.body = -1
}

// childOf picks the child quadrant/octant for a point. A coordinate exactly
// on the split plane belongs to the lower half.
func childOf(c cell, p [3]float64, dim int) int32 {
	half := c.width / 2
	var k int32
	if p[0] > c.min[0]+half {
		k |= 1
	}
	if p[1] > c.min[1]+half {
		k |= 2
	}
	if dim == 3 && p[2] > c.min[2]+half {
		k |= 4
	}
	return k
}

// repulsion accumulates the approximated repulsive force on node i into f.
// A cell aggregate stands in for its subtree when cellWidth/distance < theta;
// theta = 0 therefore descends to the leaves, which is exact pairwise
// repulsion. Leaf interactions go through the same kernel as brute force so
// the two modes agree.
func (t *bhTree) repulsion(st *store, i int32, pi [3]float64, kr float64, theta float64, preventOverlap bool, f *[3]float64) {
	if len(t.cells) == 0 {
		return
	}
	mi := st.mass[i]
	si := st.size[i]
	var stack [treeStackSize]int32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		c := &t.cells[stack[sp]]
		if c.mass == 0 {
			continue
		}
		var delta [3]float64
		for d := 0; d < t.dim; d++ {
			delta[d] = pi[d] - c.com[d]
		}
		if c.children < 0 {
			if c.body == i {
				continue
			}
			sj := 0.0
			if c.body >= 0 {
				sj = st.size[c.body]
			}
			pairRepulsion(delta, mi, c.mass, si, sj, kr, preventOverlap, f)
			continue
		}
		dist := math.Sqrt(delta[0]*delta[0] + delta[1]*delta[1] + delta[2]*delta[2])
		if c.width/dist < theta {
			// far enough: the aggregate acts as a single pseudo-node
			pairRepulsion(delta, mi, c.mass, 0, 0, kr, false, f)
			continue
		}
		for k := int32(0); k < t.fan; k++ {
			stack[sp] = c.children + k
			sp++
		}
	}
}

// jitterPoint derives a small deterministic offset from the node id and salt.
// It depends on nothing else, never on scheduling or wall clock.
func jitterPoint(p [3]float64, id string, salt uint64, dim int, scale float64) [3]float64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], salt)
	h.Write(buf[:])
	s := h.Sum64()
	for d := 0; d < dim; d++ {
		s = s*6364136223846793005 + 1442695040888963407
		u := float64(s>>11) / float64(1<<53)
		p[d] += (2*u - 1) * scale
	}
	return p
}
