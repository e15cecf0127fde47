package physics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

type fixedSource []float64

func (f *fixedSource) Float64() float64 {
	v := (*f)[0]
	*f = (*f)[1:]
	return v
}

func TestDole_CriticalMassAtOneAU(t *testing.T) {
	d := NewDole(DefaultConstants())
	got := d.CriticalMass(1, 0, 1)
	if !scalar.EqualWithinAbsOrRel(got, 1.2e-5, 1e-18, 1e-12) {
		t.Fatalf("critical mass at 1 AU: got %g want 1.2e-5", got)
	}
	// Closer perihelion means a larger threshold.
	if d.CriticalMass(1, 0.5, 1) <= got {
		t.Fatalf("eccentric orbit should raise critical mass")
	}
	if d.CriticalMass(1, 0, 4) >= got {
		t.Fatalf("brighter star should lower critical mass")
	}
}

func TestDole_ReducedMassTaper(t *testing.T) {
	d := NewDole(DefaultConstants())
	if got := d.ReducedMass(0); got != 0 {
		t.Fatalf("reduced mass of 0: %g", got)
	}
	small, big := d.ReducedMass(1e-10), d.ReducedMass(1e-3)
	if !(small < big && big < 1) {
		t.Fatalf("reduced mass not monotone in (0,1): %g %g", small, big)
	}
}

func TestDole_EffectLimitsBracketOrbit(t *testing.T) {
	d := NewDole(DefaultConstants())
	mu := d.ReducedMass(1e-6)
	in, out := d.InnerEffectLimit(5, 0.1, mu), d.OuterEffectLimit(5, 0.1, mu)
	if !(in < 5*(1-0.1) && out > 5*(1+0.1)) {
		t.Fatalf("effect range [%g,%g] does not bracket the orbit excursion", in, out)
	}
}

func TestDole_SolarBounds(t *testing.T) {
	d := NewDole(DefaultConstants())
	if d.NearestPlanet(1) != 0.3 || d.FarthestPlanet(1) != 50 || d.StellarDustLimit(1) != 200 {
		t.Fatalf("solar bounds: %g %g %g", d.NearestPlanet(1), d.FarthestPlanet(1), d.StellarDustLimit(1))
	}
	if !scalar.EqualWithinAbsOrRel(d.NearestPlanet(8), 0.6, 1e-12, 1e-12) {
		t.Fatalf("nearest planet for 8 solar masses: %g", d.NearestPlanet(8))
	}
}

func TestDole_DustDensityFalloff(t *testing.T) {
	d := NewDole(DefaultConstants())
	if d.DustDensity(1, 1) <= d.DustDensity(1, 10) {
		t.Fatalf("density should fall off with distance")
	}
	want := 2.0e-3 * math.Exp(-5)
	if !scalar.EqualWithinAbsOrRel(d.DustDensity(1, 1), want, 1e-18, 1e-12) {
		t.Fatalf("density at 1 AU: got %g want %g", d.DustDensity(1, 1), want)
	}
}

func TestDole_MixedDensity(t *testing.T) {
	d := NewDole(DefaultConstants())
	// At exactly critical mass the mixed density is K*rho/K = rho.
	if got := d.MixedDensity(1, 1e-5, 1e-5); !scalar.EqualWithinAbsOrRel(got, 1, 1e-12, 1e-12) {
		t.Fatalf("mixed density at critical mass: %g", got)
	}
	if got := d.MixedDensity(1, 1e-5, 1); got <= 1 {
		t.Fatalf("mixed density above critical mass should exceed dust density: %g", got)
	}
}

func TestDole_EccentricityDistribution(t *testing.T) {
	d := NewDole(DefaultConstants())
	src := fixedSource{0, 0.5, 0.999999}
	if e := d.Eccentricity(&src); e != 0.99 {
		t.Fatalf("U=0 should clamp to 0.99, got %g", e)
	}
	if e := d.Eccentricity(&src); !scalar.EqualWithinAbsOrRel(e, 1-math.Pow(0.5, 0.077), 1e-12, 1e-12) {
		t.Fatalf("U=0.5: %g", e)
	}
	if e := d.Eccentricity(&src); e < 0 || e > 1e-6 {
		t.Fatalf("U~1 should give near-circular orbit, got %g", e)
	}
}

func TestEarthMasses(t *testing.T) {
	if got := EarthMasses(1); got != SolarMassInEarthMasses {
		t.Fatalf("EarthMasses(1)=%g", got)
	}
}

func TestLuminosity(t *testing.T) {
	if got := Luminosity(1); !scalar.EqualWithinAbsOrRel(got, 1, 1e-12, 1e-12) {
		t.Fatalf("solar luminosity: %g", got)
	}
	if Luminosity(0.5) >= 1 || Luminosity(2) <= 1 {
		t.Fatalf("luminosity not monotone around the sun: %g %g", Luminosity(0.5), Luminosity(2))
	}
}
