package layout

import (
	"context"
	"math"
	"sync"
)

// convergenceWindow is how many consecutive iterations must land below the
// stop threshold before the run terminates early, so a single calm iteration
// in an otherwise moving layout does not stop it.
const convergenceWindow = 3

// partition is a static contiguous range of nodes owned by one worker. A
// worker writes force, swinging and position state only for its own range.
type partition struct {
	from, to int32
}

// phaseResult carries one partition's reduction outputs across a barrier.
// The driver merges them in partition order, which keeps the float sums
// identical from run to run.
type phaseResult struct {
	swinging float64
	traction float64
	maxMove  float64
}

// engine drives the iteration loop over a fixed pool of workers that live
// for the whole run. Workers block between phases; the two WaitGroup waits
// per iteration are the barriers after force computation and after position
// application.
type engine struct {
	st      *store
	cfg     Config
	ctrl    *controller
	tree    *bhTree
	center  [3]float64
	parts   []partition
	results []phaseResult
	tasks   []chan func()
	wg      sync.WaitGroup
}

func newEngine(st *store, cfg Config) *engine {
	threads := cfg.threads()
	if threads > st.n {
		threads = st.n
	}
	if threads < 1 {
		threads = 1
	}
	e := &engine{
		st:      st,
		cfg:     cfg,
		ctrl:    newController(st.n, cfg.JitterTolerance),
		tree:    newTree(cfg.Dimensions),
		parts:   make([]partition, threads),
		results: make([]phaseResult, threads),
		tasks:   make([]chan func(), threads),
	}
	for d := range cfg.Center {
		e.center[d] = cfg.Center[d]
	}
	chunk := (st.n + threads - 1) / threads
	for w := 0; w < threads; w++ {
		from := w * chunk
		to := from + chunk
		if to > st.n {
			to = st.n
		}
		e.parts[w] = partition{from: int32(from), to: int32(to)}
	}
	for w := range e.tasks {
		e.tasks[w] = make(chan func(), 1)
		go e.worker(e.tasks[w])
	}
	return e
}

func (e *engine) worker(tasks <-chan func()) {
	for fn := range tasks {
		fn()
		e.wg.Done()
	}
}

// runPhase fans one phase out to every worker and blocks until all finish.
func (e *engine) runPhase(f func(w int)) {
	e.wg.Add(len(e.tasks))
	for w := range e.tasks {
		w := w
		e.tasks[w] <- func() { f(w) }
	}
	e.wg.Wait()
}

func (e *engine) close() {
	for _, ch := range e.tasks {
		close(ch)
	}
}

// run executes the iteration loop and returns the number of fully completed
// iterations plus whether the stop threshold was reached. Cancellation is
// checked only at iteration boundaries, so the store always holds the state
// of a completed iteration.
func (e *engine) run(ctx context.Context) (int, bool) {
	defer e.close()
	done := 0
	calm := 0
	for it := 0; it < e.cfg.Iterations; it++ {
		if ctx.Err() != nil {
			break
		}
		if e.cfg.BarnesHutOptimize && e.cfg.ScalingRatio > 0 {
			e.tree.build(e.st)
		}

		e.runPhase(func(w int) {
			p := e.parts[w]
			swg, tra := e.computeForces(p.from, p.to)
			e.results[w].swinging = swg
			e.results[w].traction = tra
		})

		var swinging, traction float64
		for w := range e.results {
			swinging += e.results[w].swinging
			traction += e.results[w].traction
		}
		e.ctrl.update(swinging, traction)

		e.runPhase(func(w int) {
			p := e.parts[w]
			e.results[w].maxMove = e.applyPositions(p.from, p.to)
		})
		done = it + 1

		if e.cfg.OnIteration != nil {
			maxMove := 0.0
			for w := range e.results {
				if e.results[w].maxMove > maxMove {
					maxMove = e.results[w].maxMove
				}
			}
			e.cfg.OnIteration(IterationStats{
				Iteration:      done,
				GlobalSwinging: swinging,
				GlobalTraction: traction,
				Speed:          e.ctrl.speed,
				MaxMove:        maxMove,
			})
		}

		if e.cfg.Threshold > 0 {
			if swinging/e.st.totalMass < e.cfg.Threshold {
				calm++
				if calm >= convergenceWindow {
					return done, true
				}
			} else {
				calm = 0
			}
		}
	}
	return done, false
}

// applyPositions moves nodes [from, to) by their accumulated force scaled by
// the per-node local speed, clamps the step to MaxDisplacement, and retires
// the current force into old for the next iteration's measure. Returns the
// largest step taken in the partition.
func (e *engine) applyPositions(from, to int32) float64 {
	st := e.st
	maxMove := 0.0
	for i := from; i < to; i++ {
		factor := e.ctrl.localFactor(st.swg[i])
		base := int(i) * st.dim
		var step2 float64
		for d := 0; d < st.dim; d++ {
			s := st.force[base+d] * factor
			step2 += s * s
		}
		step := math.Sqrt(step2)
		if step > e.cfg.MaxDisplacement {
			factor *= e.cfg.MaxDisplacement / step
			step = e.cfg.MaxDisplacement
		}
		for d := 0; d < st.dim; d++ {
			st.pos[base+d] += st.force[base+d] * factor
			st.old[base+d] = st.force[base+d]
		}
		if step > maxMove {
			maxMove = step
		}
	}
	return maxMove
}
