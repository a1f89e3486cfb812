package layout

import (
	"fmt"
	"math"
)

// halfEdge is one directed view of an undirected edge: the neighbor index and
// the index of the underlying edge record.
type halfEdge struct {
	to   int32
	edge int32
}

// edgeRec is a resolved edge. weight is the effective weight after the
// edge-weight-influence exponent; factor is the attraction coefficient both
// endpoints use (pre-divided by the source mass in outbound mode).
type edgeRec struct {
	u, v   int32
	weight float64
	factor float64
}

// store holds the per-node simulation state in flat dimension-strided arrays.
// Identities, masses and adjacency are fixed for the run; only pos, force,
// old and swg mutate across iterations.
type store struct {
	dim int
	n   int
	ids []string

	pos   []float64 // n*dim current positions
	force []float64 // n*dim forces accumulated this iteration
	old   []float64 // n*dim forces from the previous iteration
	swg   []float64 // n per-node swinging measured this iteration

	mass      []float64 // n, always >= 1
	size      []float64 // n, optional radius for overlap prevention
	totalMass float64

	edges    []edgeRec
	offsets  []int32    // n+1 CSR offsets into incident
	incident []halfEdge // two half-edges per non-loop edge
}

// newStore validates the graph and builds the simulation state. Mass is
// 1 + degree; self-loops are excluded from both degree and adjacency.
func newStore(nodes []Node, edges []Edge, cfg Config) (*store, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: graph has no nodes", ErrInvalidGraph)
	}
	dim := cfg.Dimensions
	st := &store{
		dim:   dim,
		n:     len(nodes),
		ids:   make([]string, len(nodes)),
		pos:   make([]float64, len(nodes)*dim),
		force: make([]float64, len(nodes)*dim),
		old:   make([]float64, len(nodes)*dim),
		swg:   make([]float64, len(nodes)),
		mass:  make([]float64, len(nodes)),
		size:  make([]float64, len(nodes)),
	}

	index := make(map[string]int32, len(nodes))
	for i, nd := range nodes {
		if nd.ID == "" {
			return nil, fmt.Errorf("%w: node %d has an empty id", ErrInvalidGraph, i)
		}
		if _, dup := index[nd.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, nd.ID)
		}
		index[nd.ID] = int32(i)
		st.ids[i] = nd.ID

		switch len(nd.Pos) {
		case 0:
			// starts at the origin
		case dim:
			for d, v := range nd.Pos {
				if !isFinite(v) {
					return nil, fmt.Errorf("%w: node %q has a non-finite coordinate", ErrInvalidGraph, nd.ID)
				}
				st.pos[i*dim+d] = v
			}
		default:
			return nil, fmt.Errorf("%w: node %q has %d coordinates, want %d", ErrInvalidGraph, nd.ID, len(nd.Pos), dim)
		}
		if !isFinite(nd.Size) || nd.Size < 0 {
			return nil, fmt.Errorf("%w: node %q has an invalid size %v", ErrInvalidGraph, nd.ID, nd.Size)
		}
		st.size[i] = nd.Size
	}

	degree := make([]int32, st.n)
	st.edges = make([]edgeRec, 0, len(edges))
	for i, e := range edges {
		u, ok := index[e.Source]
		if !ok {
			return nil, fmt.Errorf("%w: edge %d references unknown node %q", ErrInvalidGraph, i, e.Source)
		}
		v, ok := index[e.Target]
		if !ok {
			return nil, fmt.Errorf("%w: edge %d references unknown node %q", ErrInvalidGraph, i, e.Target)
		}
		w := e.Weight
		if w == 0 {
			w = 1
		}
		if !isFinite(w) || w < 0 {
			return nil, fmt.Errorf("%w: edge %d has an invalid weight %v", ErrInvalidGraph, i, e.Weight)
		}
		if u == v {
			continue
		}
		st.edges = append(st.edges, edgeRec{u: u, v: v, weight: w})
		degree[u]++
		degree[v]++
	}

	for i := range st.mass {
		st.mass[i] = 1 + float64(degree[i])
		st.totalMass += st.mass[i]
	}

	// Effective weights and attraction factors are fixed for the run.
	for i := range st.edges {
		w := st.edges[i].weight
		if cfg.EdgeWeightInfluence != 1 {
			w = math.Pow(w, cfg.EdgeWeightInfluence)
		}
		st.edges[i].weight = w
		f := w
		if cfg.OutboundAttractionDistribution {
			f = w / st.mass[st.edges[i].u]
		}
		st.edges[i].factor = f
	}

	// CSR adjacency: each edge appears once from each endpoint, so the force
	// phase never writes another node's accumulator.
	st.offsets = make([]int32, st.n+1)
	for _, e := range st.edges {
		st.offsets[e.u+1]++
		st.offsets[e.v+1]++
	}
	for i := 0; i < st.n; i++ {
		st.offsets[i+1] += st.offsets[i]
	}
	st.incident = make([]halfEdge, st.offsets[st.n])
	cursor := make([]int32, st.n)
	for idx, e := range st.edges {
		st.incident[st.offsets[e.u]+cursor[e.u]] = halfEdge{to: e.v, edge: int32(idx)}
		cursor[e.u]++
		st.incident[st.offsets[e.v]+cursor[e.v]] = halfEdge{to: e.u, edge: int32(idx)}
		cursor[e.v]++
	}
	return st, nil
}

// point copies node i's position into a fixed-size vector (unused axes zero).
func (st *store) point(i int32) [3]float64 {
	var p [3]float64
	base := int(i) * st.dim
	for d := 0; d < st.dim; d++ {
		p[d] = st.pos[base+d]
	}
	return p
}
