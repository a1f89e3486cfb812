// Package layout implements a force-directed graph layout engine in the
// ForceAtlas family: linear-distance repulsion approximated by a Barnes-Hut
// tree, per-edge attraction, center gravity, and an adaptive global/local
// speed controller. Runs are deterministic for a fixed input, configuration
// and thread count, and perform no I/O.
package layout

import (
	"context"
	"fmt"
	"math"
	"runtime"
)

// Node is one input point for a layout run. Pos may be nil (node starts at
// the origin) or carry exactly Dimensions coordinates. Size is an optional
// radius consulted only when overlap prevention is enabled.
type Node struct {
	ID   string
	Pos  []float64
	Size float64
}

// Edge connects two nodes by ID. A zero Weight means unweighted and is
// treated as 1; negative weights are rejected. Self-loops are accepted but
// contribute neither attraction nor degree.
type Edge struct {
	Source string
	Target string
	Weight float64
}

// IterationStats is passed to the OnIteration hook after each completed
// iteration. All values refer to the iteration that just finished.
type IterationStats struct {
	Iteration      int
	GlobalSwinging float64
	GlobalTraction float64
	Speed          float64
	MaxMove        float64
}

// Config controls a single layout run.
type Config struct {
	// Iterations caps the loop count. Must be positive.
	Iterations int
	// Theta is the Barnes-Hut acceptance threshold: a cell aggregate stands
	// in for its subtree when cellWidth/distance < Theta. Zero forces exact
	// leaf-level traversal (the reference mode for approximation tests).
	Theta float64

	Gravity       float64
	StrongGravity bool // gravity grows with distance to the center

	// ScalingRatio multiplies repulsion and gravity, balancing them against
	// attraction. Zero disables repulsion and gravity entirely.
	ScalingRatio float64

	// EdgeWeightInfluence is the exponent applied to edge weights before use.
	// Zero makes every edge count as 1.
	EdgeWeightInfluence float64

	PreventOverlap                 bool
	LinLogMode                     bool
	OutboundAttractionDistribution bool
	BarnesHutOptimize              bool

	// Threshold stops the run early once globalSwinging/totalMass stays
	// below it for a few consecutive iterations. Zero disables early stop.
	Threshold float64

	// ThreadCount fixes the worker count; 0 means GOMAXPROCS. Results are
	// bit-for-bit reproducible only for the same value.
	ThreadCount int

	// Dimensions is 2 or 3.
	Dimensions int

	// JitterTolerance tunes how much swinging the speed controller accepts;
	// 1 is the standard setting.
	JitterTolerance float64

	// MaxDisplacement clamps how far a node can move in one iteration.
	MaxDisplacement float64

	// Center is the gravity target. Nil means the origin; otherwise it must
	// have exactly Dimensions coordinates.
	Center []float64

	// OnIteration, when set, is invoked sequentially at every iteration
	// boundary. It must not mutate the run.
	OnIteration func(IterationStats)
}

// DefaultConfig returns the standard tuning: 2D, Barnes-Hut enabled with
// theta 1.2, unit gravity, scaling ratio 2.
func DefaultConfig() Config {
	return Config{
		Iterations:          100,
		Theta:               1.2,
		Gravity:             1,
		ScalingRatio:        2,
		EdgeWeightInfluence: 1,
		BarnesHutOptimize:   true,
		Dimensions:          2,
		JitterTolerance:     1,
		MaxDisplacement:     10,
	}
}

// Result is the outcome of a completed run.
type Result struct {
	// Positions holds one slice of Dimensions coordinates per node ID.
	Positions map[string][]float64
	// Iterations is the number of fully completed iterations.
	Iterations int
	// Converged reports whether the movement threshold stopped the run
	// before the iteration budget.
	Converged bool
}

// Layout validates the graph and configuration, then runs the simulation to
// completion. The input slices are never modified. Cancelling ctx stops the
// run at the next iteration boundary; the returned positions always reflect
// the last fully completed iteration and cancellation is not an error.
func Layout(ctx context.Context, nodes []Node, edges []Edge, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	st, err := newStore(nodes, edges, cfg)
	if err != nil {
		return nil, err
	}
	eng := newEngine(st, cfg)
	iterations, converged := eng.run(ctx)

	positions := make(map[string][]float64, st.n)
	for i := 0; i < st.n; i++ {
		p := make([]float64, st.dim)
		copy(p, st.pos[i*st.dim:(i+1)*st.dim])
		positions[st.ids[i]] = p
	}
	return &Result{Positions: positions, Iterations: iterations, Converged: converged}, nil
}

func (c Config) validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfiguration, c.Iterations)
	}
	if c.Dimensions != 2 && c.Dimensions != 3 {
		return fmt.Errorf("%w: dimensions must be 2 or 3, got %d", ErrInvalidConfiguration, c.Dimensions)
	}
	if !isFinite(c.Theta) || c.Theta < 0 {
		return fmt.Errorf("%w: theta must be finite and non-negative, got %v", ErrInvalidConfiguration, c.Theta)
	}
	if !isFinite(c.Gravity) {
		return fmt.Errorf("%w: gravity must be finite, got %v", ErrInvalidConfiguration, c.Gravity)
	}
	if !isFinite(c.ScalingRatio) || c.ScalingRatio < 0 {
		return fmt.Errorf("%w: scaling ratio must be finite and non-negative, got %v", ErrInvalidConfiguration, c.ScalingRatio)
	}
	if !isFinite(c.EdgeWeightInfluence) || c.EdgeWeightInfluence < 0 {
		return fmt.Errorf("%w: edge weight influence must be finite and non-negative, got %v", ErrInvalidConfiguration, c.EdgeWeightInfluence)
	}
	if !isFinite(c.Threshold) || c.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be finite and non-negative, got %v", ErrInvalidConfiguration, c.Threshold)
	}
	if c.ThreadCount < 0 {
		return fmt.Errorf("%w: thread count must not be negative, got %d", ErrInvalidConfiguration, c.ThreadCount)
	}
	if !isFinite(c.JitterTolerance) || c.JitterTolerance <= 0 {
		return fmt.Errorf("%w: jitter tolerance must be positive, got %v", ErrInvalidConfiguration, c.JitterTolerance)
	}
	if !isFinite(c.MaxDisplacement) || c.MaxDisplacement <= 0 {
		return fmt.Errorf("%w: max displacement must be positive, got %v", ErrInvalidConfiguration, c.MaxDisplacement)
	}
	if c.Center != nil {
		if len(c.Center) != c.Dimensions {
			return fmt.Errorf("%w: center has %d coordinates, want %d", ErrInvalidConfiguration, len(c.Center), c.Dimensions)
		}
		for _, v := range c.Center {
			if !isFinite(v) {
				return fmt.Errorf("%w: center coordinate %v is not finite", ErrInvalidConfiguration, v)
			}
		}
	}
	return nil
}

// threads resolves the effective worker count.
func (c Config) threads() int {
	if c.ThreadCount > 0 {
		return c.ThreadCount
	}
	return runtime.GOMAXPROCS(0)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
