package layout

import "math"

// repulsionFloor is the minimum-distance floor applied before dividing, so
// near-coincident pairs produce a large but finite push.
const repulsionFloor = 1e-4

// overlapScale is the short-range multiplier applied while node borders
// overlap in prevent-overlap mode.
const overlapScale = 100

// pairRepulsion accumulates into f the repulsive force on a node of mass mi
// from a body of mass mj, where delta = pi - pj. The magnitude is
// kr*mi*mj/d (linear repulsion). With overlap prevention the distance is
// measured border to border and overlapping pairs get the strong short-range
// term instead.
func pairRepulsion(delta [3]float64, mi, mj, si, sj, kr float64, preventOverlap bool, f *[3]float64) {
	d2 := delta[0]*delta[0] + delta[1]*delta[1] + delta[2]*delta[2]
	if d2 == 0 {
		// no direction to push along
		return
	}
	var factor float64
	if preventOverlap && (si > 0 || sj > 0) {
		border := math.Sqrt(d2) - si - sj
		if border > repulsionFloor {
			factor = kr * mi * mj / (border * border)
		} else {
			factor = overlapScale * kr * mi * mj
		}
	} else {
		if d2 < repulsionFloor*repulsionFloor {
			d2 = repulsionFloor * repulsionFloor
		}
		factor = kr * mi * mj / d2
	}
	f[0] += delta[0] * factor
	f[1] += delta[1] * factor
	f[2] += delta[2] * factor
}

// bruteRepulsion accumulates exact pairwise repulsion on node i against every
// other node. Used when Barnes-Hut is disabled.
func bruteRepulsion(st *store, i int32, pi [3]float64, kr float64, preventOverlap bool, f *[3]float64) {
	mi := st.mass[i]
	si := st.size[i]
	for j := int32(0); j < int32(st.n); j++ {
		if j == i {
			continue
		}
		pj := st.point(j)
		var delta [3]float64
		for d := 0; d < st.dim; d++ {
			delta[d] = pi[d] - pj[d]
		}
		pairRepulsion(delta, mi, st.mass[j], si, st.size[j], kr, preventOverlap, f)
	}
}

// gravity accumulates the pull toward center into f. The default magnitude
// kr*mass*g is independent of distance; strong gravity scales with it.
func gravity(pi [3]float64, mi float64, center [3]float64, kr, g float64, strong bool, dim int, f *[3]float64) {
	if g == 0 {
		return
	}
	var delta [3]float64
	d2 := 0.0
	for d := 0; d < dim; d++ {
		delta[d] = center[d] - pi[d]
		d2 += delta[d] * delta[d]
	}
	if d2 == 0 {
		return
	}
	var factor float64
	if strong {
		factor = kr * mi * g
	} else {
		factor = kr * mi * g / math.Sqrt(d2)
	}
	for d := 0; d < dim; d++ {
		f[d] += delta[d] * factor
	}
}

// attraction accumulates edge attraction on node i over its CSR adjacency.
// Each undirected edge is visited once from each endpoint with the same
// precomputed factor, so the two pulls mirror exactly and no accumulator is
// shared across nodes.
func (e *engine) attraction(i int32, pi [3]float64, f *[3]float64) {
	st := e.st
	for k := st.offsets[i]; k < st.offsets[i+1]; k++ {
		he := st.incident[k]
		rec := st.edges[he.edge]
		pj := st.point(he.to)
		var delta [3]float64
		d2 := 0.0
		for d := 0; d < st.dim; d++ {
			delta[d] = pj[d] - pi[d]
			d2 += delta[d] * delta[d]
		}
		if d2 == 0 {
			continue
		}
		dist := math.Sqrt(d2)
		if e.cfg.PreventOverlap {
			dist -= st.size[i] + st.size[he.to]
			if dist <= 0 {
				// borders overlap: attraction pauses until repulsion
				// separates the pair
				continue
			}
		}
		factor := rec.factor
		if e.cfg.LinLogMode {
			factor *= math.Log1p(dist) / dist
		}
		for d := 0; d < st.dim; d++ {
			f[d] += delta[d] * factor
		}
	}
}

// computeForces runs the force phase for nodes [from, to): repulsion (tree or
// brute), gravity and attraction summed into st.force, plus the per-node
// swinging/traction measure against the previous iteration's force. Returns
// the partition's mass-weighted partial sums.
func (e *engine) computeForces(from, to int32) (swinging, traction float64) {
	st := e.st
	cfg := e.cfg
	for i := from; i < to; i++ {
		pi := st.point(i)
		var f [3]float64
		if cfg.ScalingRatio > 0 {
			if cfg.BarnesHutOptimize {
				e.tree.repulsion(st, i, pi, cfg.ScalingRatio, cfg.Theta, cfg.PreventOverlap, &f)
			} else {
				bruteRepulsion(st, i, pi, cfg.ScalingRatio, cfg.PreventOverlap, &f)
			}
			gravity(pi, st.mass[i], e.center, cfg.ScalingRatio, cfg.Gravity, cfg.StrongGravity, st.dim, &f)
		}
		e.attraction(i, pi, &f)

		base := int(i) * st.dim
		var swg2, tra2 float64
		for d := 0; d < st.dim; d++ {
			st.force[base+d] = f[d]
			diff := f[d] - st.old[base+d]
			sum := f[d] + st.old[base+d]
			swg2 += diff * diff
			tra2 += sum * sum
		}
		s := math.Sqrt(swg2)
		st.swg[i] = s
		swinging += st.mass[i] * s
		traction += st.mass[i] * math.Sqrt(tra2) / 2
	}
	return swinging, traction
}
