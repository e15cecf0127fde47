package accrete

import (
	"math"

	"stargen.ai/internal/sim/disk"
)

// convergence is the relative growth below which the dust fixed point stops.
const convergence = 0.0001

// sweep is the material a body at (a, e) collects in one pass over the
// ledger, and the range it reached.
type sweep struct {
	Mass  float64
	Dust  float64
	Gas   float64
	Inner float64
	Outer float64
}

// growth is the outcome of accreteDust. Mass includes the starting mass;
// Dust and Gas are only what was collected.
type growth struct {
	Mass float64
	Dust float64
	Gas  float64
}

func (g *engine) collectDust(lastMass, a, e, critMass, density float64) sweep {
	mu := g.phys.ReducedMass(lastMass)
	s := sweep{
		Inner: math.Max(g.phys.InnerEffectLimit(a, e, mu), 0),
		Outer: g.phys.OuterEffectLimit(a, e, mu),
	}
	bandwidth := s.Outer - s.Inner
	if !(bandwidth > 0) {
		return s
	}

	g.disk.Each(s.Inner, s.Outer, func(b disk.Band) {
		dustDensity := 0.0
		if b.Dust {
			dustDensity = density
		}
		massDensity, gasDensity := dustDensity, 0.0
		if lastMass >= critMass && b.Gas {
			massDensity = g.phys.MixedDensity(dustDensity, critMass, lastMass)
			gasDensity = massDensity - dustDensity
		}

		over := math.Max(s.Outer-b.Outer, 0)
		under := math.Max(b.Inner-s.Inner, 0)
		width := bandwidth - over - under
		volume := 4.0 * math.Pi * a * a * mu * (1.0 - e*(over-under)/bandwidth) * width

		m := volume * massDensity
		gas := volume * gasDensity
		s.Mass += m
		s.Gas += gas
		s.Dust += m - gas
	})
	return s
}

// accreteDust grows seedMass at (a, e) to its fixed point, then clears the
// swept range from the ledger.
func (g *engine) accreteDust(seedMass, a, e, critMass, density float64) (growth, error) {
	mass := seedMass
	var s sweep
	for i := 0; ; i++ {
		if i >= g.tu.MaxAccreteIterations {
			return growth{}, newError(KindDidNotConverge, "accrete dust",
				"no fixed point after %d iterations at a=%g e=%g (mass %g)", i, a, e, mass)
		}
		prev := mass
		s = g.collectDust(prev, a, e, critMass, density)
		mass = s.Mass
		g.stats.AccreteIterations++
		if !finite(mass) {
			return growth{}, newError(KindDidNotConverge, "accrete dust",
				"non-finite mass at a=%g e=%g", a, e)
		}
		if mass-prev < convergence*prev {
			break
		}
	}

	total := seedMass + s.Mass
	g.stats.SweptMass += s.Mass
	g.disk.UpdateDustLanes(s.Inner, s.Outer, total, critMass, g.formingInner, g.formingOuter)
	return growth{Mass: total, Dust: s.Dust, Gas: s.Gas}, nil
}
