package accrete

import "stargen.ai/internal/sim/physics"

// Moon capture limits, in Earth masses and as a fraction of the host's mass.
const (
	minMoonEarthMasses = 0.0001
	maxMoonEarthMasses = 2.5
	maxMoonMassShare   = 0.05
)

// tryCapture attaches the candidate to planets[i] as a moon when it is light
// enough to be held instead of merged. The candidate must lie inside the
// Earth-mass window and the host's existing moons must stay under 5% of the
// host's mass. If the candidate carries more material than the host, the two
// swap masses so the heavier one stays the planet; the old host then becomes
// the moon and has to fit the same window.
func (g *engine) tryCapture(i int, c candidate) (bool, error) {
	host := g.planets[i]
	hostCrit := g.phys.CriticalMass(host.a, host.e, g.cfg.StellarLuminosity)
	if c.mass >= hostCrit {
		return false, nil
	}

	swapped := c.dust+c.gas > host.dust+host.gas
	earthMasses := physics.EarthMasses(c.mass)
	var existing float64
	for _, m := range host.moons {
		existing += m.mass
	}
	ev := Event{
		A: c.a, E: c.e, Mass: c.mass, DustMass: c.dust, GasMass: c.gas,
		TargetA: host.a, TargetMass: host.mass,
		EarthMasses: earthMasses, ExistingMoonMass: existing,
	}
	eligible := moonSized(earthMasses) && existing < host.mass*maxMoonMassShare
	if eligible && swapped {
		eligible = moonSized(physics.EarthMasses(host.mass))
	}
	if !eligible {
		g.stats.Escapes++
		ev.Kind = EventEscape
		g.emit(ev)
		return false, nil
	}

	moon := &protoplanet{a: c.a, e: c.e, mass: c.mass, dust: c.dust, gas: c.gas}
	if swapped {
		host.mass, moon.mass = moon.mass, host.mass
		host.dust, moon.dust = moon.dust, host.dust
		host.gas, moon.gas = moon.gas, host.gas
		host.gasGiant = host.mass >= hostCrit
	}
	host.moons = append([]*protoplanet{moon}, host.moons...)

	g.stats.Captures++
	ev.Kind = EventCapture
	ev.Swapped = swapped
	ev.NewMass = host.mass
	ev.GasGiant = host.gasGiant
	g.emit(ev)

	if swapped {
		return true, g.settle(i)
	}
	return true, nil
}

func moonSized(earthMasses float64) bool {
	return earthMasses > minMoonEarthMasses && earthMasses < maxMoonEarthMasses
}
