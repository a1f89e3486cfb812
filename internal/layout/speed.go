package layout

import "math"

const (
	minSpeed      = 1e-6
	maxSpeed      = 1e10
	minEfficiency = 0.05
	// maxRise bounds the speed update: one iteration can raise the global
	// speed by at most half again.
	maxRise = 0.5
)

// controller carries the adaptive speed state across iterations. It is the
// only mutable state outside the store and is owned by a single run, so
// independent runs never interfere.
type controller struct {
	speed      float64
	efficiency float64
	jitterTol  float64
	nodes      float64
}

func newController(n int, jitterTol float64) *controller {
	return &controller{speed: 1, efficiency: 1, jitterTol: jitterTol, nodes: float64(n)}
}

// update recomputes the global speed from the mass-weighted swinging and
// traction sums. Speed rises while the layout pulls steadily (traction
// dominating) and drops sharply when swinging spikes; the rise is bounded by
// maxRise and the value floored so a run can always recover.
func (c *controller) update(swinging, traction float64) {
	if swinging == 0 && traction == 0 {
		// no forces at all this iteration
		return
	}

	estimated := 0.05 * math.Sqrt(c.nodes)
	minJT := math.Sqrt(estimated)
	jt := c.jitterTol * math.Max(minJT, math.Min(10, estimated*traction/(c.nodes*c.nodes)))

	if swinging/traction > 2 {
		if c.efficiency > minEfficiency {
			c.efficiency *= 0.5
		}
		jt = math.Max(jt, c.jitterTol)
	}

	target := jt * c.efficiency * traction / swinging

	if swinging > jt*traction {
		if c.efficiency > minEfficiency {
			c.efficiency *= 0.7
		}
	} else if c.speed < 1000 {
		c.efficiency *= 1.3
	}

	// swinging == 0 makes target +Inf; the bounded rise below still applies
	c.speed += math.Min(target-c.speed, maxRise*c.speed)
	if c.speed < minSpeed {
		c.speed = minSpeed
	}
	// A run where forces repeat exactly (swinging 0) grows speed forever;
	// cap it so the displacement clamp never divides Inf by Inf.
	if c.speed > maxSpeed {
		c.speed = maxSpeed
	}
}

// localFactor is the per-node step scale: nodes that swing hard move less
// than stable nodes within the same iteration.
func (c *controller) localFactor(swinging float64) float64 {
	return c.speed / (1 + math.Sqrt(c.speed*swinging))
}
