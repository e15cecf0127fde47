package accrete

// Seed is the finalized description of one body, handed to body construction.
type Seed struct {
	A        float64 `json:"a"`
	E        float64 `json:"e"`
	Mass     float64 `json:"mass"`
	DustMass float64 `json:"dust_mass"`
	GasMass  float64 `json:"gas_mass"`
	GasGiant bool    `json:"gas_giant"`
	Moons    []Seed  `json:"moons,omitempty"`
}

func extractSeeds(bodies []*protoplanet) []Seed {
	if len(bodies) == 0 {
		return nil
	}
	out := make([]Seed, 0, len(bodies))
	for _, p := range bodies {
		out = append(out, Seed{
			A:        p.a,
			E:        p.e,
			Mass:     p.mass,
			DustMass: p.dust,
			GasMass:  p.gas,
			GasGiant: p.gasGiant,
			Moons:    extractSeeds(p.moons),
		})
	}
	return out
}

// Walk visits every seed depth-first, planets before their moons. depth is
// 0 for planets.
func Walk(seeds []Seed, fn func(s Seed, depth int)) {
	var walk func([]Seed, int)
	walk = func(ss []Seed, depth int) {
		for _, s := range ss {
			fn(s, depth)
			walk(s.Moons, depth+1)
		}
	}
	walk(seeds, 0)
}

// TotalMass sums the mass of the seeds and all their moons.
func TotalMass(seeds []Seed) float64 {
	var total float64
	Walk(seeds, func(s Seed, _ int) { total += s.Mass })
	return total
}
