package accrete

import (
	"math"

	"stargen.ai/internal/sim/disk"
	"stargen.ai/internal/sim/physics"
)

// Orbit forces the semi-major axis and eccentricity of an injected planetesimal.
type Orbit struct {
	A float64 `json:"a"`
	E float64 `json:"e"`
}

// Config describes the star and disk of one run.
type Config struct {
	StellarMass       float64 `json:"stellar_mass"`
	StellarLuminosity float64 `json:"stellar_luminosity"`

	// Dust disk limits in AU. OuterDust 0 means the stellar dust limit.
	InnerDust float64 `json:"inner_dust"`
	OuterDust float64 `json:"outer_dust"`

	// OuterPlanetLimit caps the planet-forming region. 0 means the farthest
	// planet bound for the star's mass.
	OuterPlanetLimit float64 `json:"outer_planet_limit,omitempty"`

	// Overrides are consumed in order before random sampling starts.
	Overrides []Orbit `json:"overrides,omitempty"`
}

func SolarConfig() Config {
	return Config{StellarMass: 1, StellarLuminosity: 1}
}

// Normalize fills the zero-valued limits from the formula model. A zero
// luminosity is derived from the stellar mass.
func (c *Config) Normalize(m physics.Model) {
	if c.StellarMass <= 0 || !finite(c.StellarMass) {
		return
	}
	if c.StellarLuminosity == 0 {
		c.StellarLuminosity = physics.Luminosity(c.StellarMass)
	}
	if c.OuterDust == 0 {
		c.OuterDust = m.StellarDustLimit(c.StellarMass)
	}
}

func (c Config) Validate(m physics.Model) error {
	const op = "validate config"
	if !finite(c.StellarMass) || c.StellarMass <= 0 {
		return newError(KindInvalidParameter, op, "stellar mass must be positive, got %g", c.StellarMass)
	}
	if !finite(c.StellarLuminosity) || c.StellarLuminosity <= 0 {
		return newError(KindInvalidParameter, op, "stellar luminosity must be positive, got %g", c.StellarLuminosity)
	}
	if _, err := disk.New(c.InnerDust, c.OuterDust); err != nil {
		return &Error{Kind: KindInvalidParameter, Op: op, Err: err}
	}
	if !finite(c.OuterPlanetLimit) || c.OuterPlanetLimit < 0 {
		return newError(KindInvalidParameter, op, "outer planet limit must be >= 0, got %g", c.OuterPlanetLimit)
	}
	inner, outer := c.formingRegion(m)
	if !(inner < outer) {
		return newError(KindInvalidParameter, op, "planet-forming region [%g, %g] is empty", inner, outer)
	}
	for i, o := range c.Overrides {
		if !finite(o.A) || o.A <= 0 {
			return newError(KindInvalidParameter, op, "override %d: semi-major axis must be positive, got %g", i, o.A)
		}
		if !finite(o.E) || o.E < 0 || o.E >= 1 {
			return newError(KindInvalidParameter, op, "override %d: eccentricity must be in [0, 1), got %g", i, o.E)
		}
	}
	return nil
}

func (c Config) formingRegion(m physics.Model) (inner, outer float64) {
	inner = m.NearestPlanet(c.StellarMass)
	outer = c.OuterPlanetLimit
	if outer == 0 {
		outer = m.FarthestPlanet(c.StellarMass)
	}
	return inner, outer
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

