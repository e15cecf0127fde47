package tuning

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"stargen.ai/internal/sim/physics"
)

// Tuning holds the disk constants and engine safeguards applied to a run.
type Tuning struct {
	DustDensityCoeff  float64 `yaml:"dust_density_coeff" toml:"dust_density_coeff" json:"dust_density_coeff" env:"STARGEN_DUST_DENSITY_COEFF"`
	GasDustRatio      float64 `yaml:"gas_dust_ratio" toml:"gas_dust_ratio" json:"gas_dust_ratio" env:"STARGEN_GAS_DUST_RATIO"`
	CloudEccentricity float64 `yaml:"cloud_eccentricity" toml:"cloud_eccentricity" json:"cloud_eccentricity" env:"STARGEN_CLOUD_ECCENTRICITY"`
	Alpha             float64 `yaml:"alpha" toml:"alpha" json:"alpha" env:"STARGEN_ALPHA"`
	N                 float64 `yaml:"n" toml:"n" json:"n" env:"STARGEN_N"`
	CriticalMassCoeff float64 `yaml:"critical_mass_coeff" toml:"critical_mass_coeff" json:"critical_mass_coeff" env:"STARGEN_CRITICAL_MASS_COEFF"`
	EccentricityCoeff float64 `yaml:"eccentricity_coeff" toml:"eccentricity_coeff" json:"eccentricity_coeff" env:"STARGEN_ECCENTRICITY_COEFF"`
	ProtoplanetMass   float64 `yaml:"protoplanet_mass" toml:"protoplanet_mass" json:"protoplanet_mass" env:"STARGEN_PROTOPLANET_MASS"`

	MaxAccreteIterations int `yaml:"max_accrete_iterations" toml:"max_accrete_iterations" json:"max_accrete_iterations" env:"STARGEN_MAX_ACCRETE_ITERATIONS"`
	MaxSamples           int `yaml:"max_samples" toml:"max_samples" json:"max_samples" env:"STARGEN_MAX_SAMPLES"`

	Moons bool `yaml:"moons" toml:"moons" json:"moons" env:"STARGEN_MOONS"`
}

const (
	DefaultProtoplanetMass      = 1.0e-15
	DefaultMaxAccreteIterations = 10000
	DefaultMaxSamples           = 1000000
)

func Defaults() Tuning {
	c := physics.DefaultConstants()
	return Tuning{
		DustDensityCoeff:     c.DustDensityCoeff,
		GasDustRatio:         c.GasDustRatio,
		CloudEccentricity:    c.CloudEccentricity,
		Alpha:                c.Alpha,
		N:                    c.N,
		CriticalMassCoeff:    c.CriticalMassCoeff,
		EccentricityCoeff:    c.EccentricityCoeff,
		ProtoplanetMass:      DefaultProtoplanetMass,
		MaxAccreteIterations: DefaultMaxAccreteIterations,
		MaxSamples:           DefaultMaxSamples,
		Moons:                true,
	}
}

// Load reads a tuning file on top of Defaults. The extension picks the
// format: .toml for TOML, anything else is YAML. An empty path yields the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	name := filepath.Base(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	default:
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// ApplyEnv overrides fields from STARGEN_* environment variables.
func (t *Tuning) ApplyEnv() error {
	if err := env.Parse(t); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	t.Normalize()
	return t.Validate()
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.MaxAccreteIterations <= 0 {
		t.MaxAccreteIterations = DefaultMaxAccreteIterations
	}
	if t.MaxSamples <= 0 {
		t.MaxSamples = DefaultMaxSamples
	}
	if t.ProtoplanetMass <= 0 {
		t.ProtoplanetMass = DefaultProtoplanetMass
	}
}

func (t Tuning) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"dust_density_coeff", t.DustDensityCoeff},
		{"gas_dust_ratio", t.GasDustRatio},
		{"cloud_eccentricity", t.CloudEccentricity},
		{"alpha", t.Alpha},
		{"n", t.N},
		{"critical_mass_coeff", t.CriticalMassCoeff},
		{"eccentricity_coeff", t.EccentricityCoeff},
		{"protoplanet_mass", t.ProtoplanetMass},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be finite", f.name)
		}
	}
	if t.DustDensityCoeff < 0 {
		return fmt.Errorf("dust_density_coeff must be >= 0")
	}
	if t.GasDustRatio < 1 {
		return fmt.Errorf("gas_dust_ratio must be >= 1")
	}
	if t.CloudEccentricity < 0 || t.CloudEccentricity >= 1 {
		return fmt.Errorf("cloud_eccentricity must be in [0, 1)")
	}
	if t.Alpha < 0 {
		return fmt.Errorf("alpha must be >= 0")
	}
	if t.N <= 0 {
		return fmt.Errorf("n must be > 0")
	}
	if t.CriticalMassCoeff <= 0 {
		return fmt.Errorf("critical_mass_coeff must be > 0")
	}
	if t.EccentricityCoeff <= 0 {
		return fmt.Errorf("eccentricity_coeff must be > 0")
	}
	if t.ProtoplanetMass <= 0 || t.ProtoplanetMass >= 1 {
		return fmt.Errorf("protoplanet_mass must be in (0, 1)")
	}
	if t.MaxAccreteIterations <= 0 || t.MaxSamples <= 0 {
		return fmt.Errorf("max_accrete_iterations and max_samples must be > 0")
	}
	return nil
}

// Physics returns the disk constants in the form the formula model takes.
func (t Tuning) Physics() physics.Constants {
	return physics.Constants{
		DustDensityCoeff:  t.DustDensityCoeff,
		GasDustRatio:      t.GasDustRatio,
		CloudEccentricity: t.CloudEccentricity,
		Alpha:             t.Alpha,
		N:                 t.N,
		CriticalMassCoeff: t.CriticalMassCoeff,
		EccentricityCoeff: t.EccentricityCoeff,
	}
}
