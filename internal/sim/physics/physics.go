// Package physics supplies the orbital and disk formulas consumed by the
// accretion engine. Masses are in solar masses, distances in AU.
package physics

import (
	"math"

	"stargen.ai/internal/sim/rng"
)

const SolarMassInEarthMasses = 332775.64

// Model is the formula collaborator behind the accretion engine.
type Model interface {
	// ReducedMass is the 4th-root taper (m/(1+m))^0.25 that scales a body's reach.
	ReducedMass(mass float64) float64
	InnerEffectLimit(a, e, reducedMass float64) float64
	OuterEffectLimit(a, e, reducedMass float64) float64
	CriticalMass(a, e, luminosity float64) float64
	DustDensity(stellarMass, a float64) float64
	// MixedDensity is the dust+gas density swept by a body at or above critical mass.
	MixedDensity(dustDensity, criticalMass, mass float64) float64

	NearestPlanet(stellarMass float64) float64
	FarthestPlanet(stellarMass float64) float64
	StellarDustLimit(stellarMass float64) float64

	Eccentricity(src rng.Source) float64
}

// Constants are the Dole/Fogg disk parameters.
type Constants struct {
	DustDensityCoeff  float64 // A
	GasDustRatio      float64 // K
	CloudEccentricity float64
	Alpha             float64
	N                 float64
	CriticalMassCoeff float64 // B
	EccentricityCoeff float64
}

func DefaultConstants() Constants {
	return Constants{
		DustDensityCoeff:  2.0e-3,
		GasDustRatio:      50.0,
		CloudEccentricity: 0.2,
		Alpha:             5.0,
		N:                 3.0,
		CriticalMassCoeff: 1.2e-5,
		EccentricityCoeff: 0.077,
	}
}

// Dole implements Model with the classic Dole (1969) / Fogg (1985) formulas.
type Dole struct {
	C Constants
}

func NewDole(c Constants) Dole { return Dole{C: c} }

func (d Dole) ReducedMass(mass float64) float64 {
	return math.Pow(mass/(1.0+mass), 0.25)
}

func (d Dole) InnerEffectLimit(a, e, reducedMass float64) float64 {
	return a * (1.0 - e) * (1.0 - reducedMass) / (1.0 + d.C.CloudEccentricity)
}

func (d Dole) OuterEffectLimit(a, e, reducedMass float64) float64 {
	return a * (1.0 + e) * (1.0 + reducedMass) / (1.0 - d.C.CloudEccentricity)
}

// CriticalMass is B * (perihelion * sqrt(L))^-0.75.
func (d Dole) CriticalMass(a, e, luminosity float64) float64 {
	perihelion := a - a*e
	return d.C.CriticalMassCoeff * math.Pow(perihelion*math.Sqrt(luminosity), -0.75)
}

func (d Dole) DustDensity(stellarMass, a float64) float64 {
	return d.C.DustDensityCoeff * math.Sqrt(stellarMass) * math.Exp(-d.C.Alpha*math.Pow(a, 1.0/d.C.N))
}

func (d Dole) MixedDensity(dustDensity, criticalMass, mass float64) float64 {
	k := d.C.GasDustRatio
	return k * dustDensity / (1.0 + math.Sqrt(criticalMass/mass)*(k-1.0))
}

func (d Dole) NearestPlanet(stellarMass float64) float64 {
	return 0.3 * math.Cbrt(stellarMass)
}

func (d Dole) FarthestPlanet(stellarMass float64) float64 {
	return 50.0 * math.Cbrt(stellarMass)
}

func (d Dole) StellarDustLimit(stellarMass float64) float64 {
	return 200.0 * math.Cbrt(stellarMass)
}

// Eccentricity draws 1 - U^coeff, capped at 0.99.
func (d Dole) Eccentricity(src rng.Source) float64 {
	e := 1.0 - math.Pow(src.Float64(), d.C.EccentricityCoeff)
	if e > 0.99 {
		e = 0.99
	}
	return e
}

func EarthMasses(solarMasses float64) float64 {
	return solarMasses * SolarMassInEarthMasses
}

// Luminosity estimates a main-sequence luminosity ratio from a mass ratio.
func Luminosity(stellarMass float64) float64 {
	var n float64
	if stellarMass < 1.0 {
		n = 1.75*(stellarMass-0.1) + 3.325
	} else {
		n = 0.5*(2.0-stellarMass) + 4.4
	}
	return math.Pow(stellarMass, n)
}
