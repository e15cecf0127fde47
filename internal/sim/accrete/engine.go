// Package accrete grows a planetary system out of a dust disk.
//
// A run repeatedly injects planetesimals at random orbits, grows each one by
// sweeping dust (and, above critical mass, gas) from the disk ledger, and
// resolves collisions with existing bodies by merging or by moon capture.
// The run ends when no dust is left in the planet-forming region.
//
// A run is single-threaded and deterministic for a given rng.Source.
// Independent runs share nothing and may execute concurrently.
package accrete

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats/scalar"

	"stargen.ai/internal/sim/disk"
	"stargen.ai/internal/sim/physics"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
)

type Options struct {
	// Model defaults to the Dole formulas built from the tuning constants.
	Model    physics.Model
	Logger   *zerolog.Logger
	Observer Observer
}

// System is the result of one run.
type System struct {
	Config Config `json:"config"`
	Seeds  []Seed `json:"seeds"`
	Stats  Stats  `json:"stats"`
}

func (s *System) Planets() int { return len(s.Seeds) }

func (s *System) Moons() int {
	n := 0
	Walk(s.Seeds, func(_ Seed, depth int) {
		if depth > 0 {
			n++
		}
	})
	return n
}

type protoplanet struct {
	a, e     float64
	mass     float64
	dust     float64
	gas      float64
	gasGiant bool
	moons    []*protoplanet
}

// candidate is a freshly grown planetesimal looking for a place in the system.
type candidate struct {
	a, e     float64
	mass     float64
	dust     float64
	gas      float64
	critMass float64
}

type engine struct {
	cfg  Config
	tu   tuning.Tuning
	phys physics.Model
	src  rng.Source

	disk    *disk.Ledger
	planets []*protoplanet

	formingInner float64
	formingOuter float64
	overrides    []Orbit

	stats Stats
	seq   uint64

	log     zerolog.Logger
	observe Observer
}

// Generate runs the accretion simulation to completion.
func Generate(cfg Config, tu tuning.Tuning, src rng.Source, opts Options) (*System, error) {
	if src == nil {
		return nil, newError(KindInvalidParameter, "generate", "nil random source")
	}
	tu.Normalize()
	if err := tu.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidParameter, Op: "validate tuning", Err: err}
	}
	model := opts.Model
	if model == nil {
		model = physics.NewDole(tu.Physics())
	}
	cfg.Normalize(model)
	if err := cfg.Validate(model); err != nil {
		return nil, err
	}

	ledger, err := disk.New(cfg.InnerDust, cfg.OuterDust)
	if err != nil {
		return nil, &Error{Kind: KindInvalidParameter, Op: "generate", Err: err}
	}
	g := &engine{
		cfg:       cfg,
		tu:        tu,
		phys:      model,
		src:       src,
		disk:      ledger,
		overrides: cfg.Overrides,
		log:       zerolog.Nop(),
		observe:   opts.Observer,
	}
	if opts.Logger != nil {
		g.log = *opts.Logger
	}
	g.formingInner, g.formingOuter = cfg.formingRegion(model)

	if err := g.run(); err != nil {
		g.log.Warn().Err(err).Int("samples", g.stats.Samples).Int("planets", len(g.planets)).Msg("generation failed")
		return nil, err
	}
	g.stats.Bands = g.disk.Len()

	sys := &System{Config: cfg, Seeds: extractSeeds(g.planets), Stats: g.stats}
	bodies := TotalMass(sys.Seeds)
	if swept := g.stats.SeedMass + g.stats.SweptMass; !scalar.EqualWithinRel(bodies, swept, 1e-9) {
		g.log.Warn().Float64("bodies", bodies).Float64("swept", swept).Msg("mass balance drift")
	}
	g.log.Info().
		Int("planets", sys.Planets()).
		Int("moons", sys.Moons()).
		Int("samples", g.stats.Samples).
		Int("merges", g.stats.Merges).
		Int("captures", g.stats.Captures).
		Int("bands", g.stats.Bands).
		Msg("system generated")
	return sys, nil
}

func (g *engine) run() error {
	attempts := 0
	for g.disk.DustLeft() {
		if attempts >= g.tu.MaxSamples {
			return newError(KindStalledGeneration, "generate",
				"%d consecutive samples without an injection (%d planets, %d bands)", attempts, len(g.planets), g.disk.Len())
		}
		attempts++
		g.stats.Samples++

		a, e := g.sample()
		injected, err := g.inject(a, e)
		if err != nil {
			return err
		}
		if injected {
			attempts = 0
		}
	}
	return nil
}

func (g *engine) sample() (a, e float64) {
	if len(g.overrides) > 0 {
		o := g.overrides[0]
		g.overrides = g.overrides[1:]
		return o.A, o.E
	}
	a = rng.Uniform(g.src, g.formingInner, g.formingOuter)
	e = g.phys.Eccentricity(g.src)
	return a, e
}

// inject grows a planetesimal at (a, e) and places it. It reports false when
// the planetesimal found nothing to sweep.
func (g *engine) inject(a, e float64) (bool, error) {
	seedMass := g.tu.ProtoplanetMass
	if !g.disk.DustAvailable(g.phys.InnerEffectLimit(a, e, seedMass), g.phys.OuterEffectLimit(a, e, seedMass)) {
		g.stats.Misses++
		g.emit(Event{Kind: EventMiss, A: a, E: e})
		return false, nil
	}

	density := g.phys.DustDensity(g.cfg.StellarMass, a)
	crit := g.phys.CriticalMass(a, e, g.cfg.StellarLuminosity)
	grown, err := g.accreteDust(seedMass, a, e, crit, density)
	if err != nil {
		return false, err
	}
	if grown.Mass <= seedMass {
		g.stats.Starved++
		g.emit(Event{Kind: EventStarved, A: a, E: e})
		return false, nil
	}
	g.stats.SeedMass += seedMass

	c := candidate{
		a:        a,
		e:        e,
		mass:     grown.Mass,
		dust:     grown.Dust + seedMass,
		gas:      grown.Gas,
		critMass: crit,
	}
	if err := g.coalesce(c); err != nil {
		return false, err
	}
	g.checkSorted()
	return true, nil
}

func (g *engine) coalesce(c candidate) error {
	for i, p := range g.planets {
		if !g.overlaps(c.a, c.e, c.mass, p.a, p.e, p.mass) {
			continue
		}
		newA, newE := g.combine(p.a, p.e, p.mass, c.a, c.e, c.mass)
		if g.tu.Moons {
			captured, err := g.tryCapture(i, c)
			if err != nil || captured {
				return err
			}
		}
		return g.merge(i, c, newA, newE)
	}
	g.insert(c)
	return nil
}

// overlaps reports whether either body's orbital excursion, widened by its
// own reduced mass, reaches the other's orbit.
func (g *engine) overlaps(a1, e1, m1, a2, e2, m2 float64) bool {
	diff := a2 - a1
	mu1 := g.phys.ReducedMass(m1)
	mu2 := g.phys.ReducedMass(m2)
	var d1, d2 float64
	if diff > 0 {
		d1 = a1*(1+e1)*(1+mu1) - a1
		d2 = a2 - a2*(1-e2)*(1-mu2)
	} else {
		d1 = a1 - a1*(1-e1)*(1-mu1)
		d2 = a2*(1+e2)*(1+mu2) - a2
	}
	return math.Abs(diff) <= math.Abs(d1) || math.Abs(diff) <= math.Abs(d2)
}

// combine returns the orbit of two coalesced bodies: a mass-weighted harmonic
// semi-major axis and an eccentricity conserving angular momentum. Degenerate
// eccentricities collapse to 0.
func (g *engine) combine(a1, e1, m1, a2, e2, m2 float64) (a, e float64) {
	a = (m1 + m2) / (m1/a1 + m2/a2)
	l := m1*math.Sqrt(a1)*math.Sqrt(1-e1*e1) + m2*math.Sqrt(a2)*math.Sqrt(1-e2*e2)
	l /= (m1 + m2) * math.Sqrt(a)
	t := 1 - l*l
	if !(t >= 0 && t < 1) {
		t = 0
	}
	return a, math.Sqrt(t)
}

func (g *engine) insert(c candidate) {
	p := &protoplanet{
		a:        c.a,
		e:        c.e,
		mass:     c.mass,
		dust:     c.dust,
		gas:      c.gas,
		gasGiant: c.mass >= c.critMass,
	}
	i := 0
	for i < len(g.planets) && g.planets[i].a < p.a {
		i++
	}
	g.planets = append(g.planets, nil)
	copy(g.planets[i+1:], g.planets[i:])
	g.planets[i] = p

	g.stats.Inserts++
	g.emit(Event{Kind: EventInsert, A: c.a, E: c.e, Mass: c.mass, DustMass: c.dust, GasMass: c.gas, GasGiant: p.gasGiant})
}

// merge folds the candidate into planets[i] at the combined orbit, sweeping
// the disk again with the combined mass.
func (g *engine) merge(i int, c candidate, newA, newE float64) error {
	p := g.planets[i]
	targetA, targetMass := p.a, p.mass

	crit := g.phys.CriticalMass(newA, newE, g.cfg.StellarLuminosity)
	density := g.phys.DustDensity(g.cfg.StellarMass, newA)
	grown, err := g.accreteDust(p.mass+c.mass, newA, newE, crit, density)
	if err != nil {
		return err
	}
	p.a = newA
	p.e = newE
	p.mass = grown.Mass
	p.dust += c.dust + grown.Dust
	p.gas += c.gas + grown.Gas
	p.gasGiant = p.mass >= crit

	g.stats.Merges++
	g.emit(Event{
		Kind: EventMerge, A: c.a, E: c.e, Mass: c.mass, DustMass: c.dust, GasMass: c.gas,
		TargetA: targetA, TargetMass: targetMass, NewA: newA, NewE: newE, NewMass: p.mass, GasGiant: p.gasGiant,
	})
	return g.settle(g.splice(i))
}

// splice restores ascending order after planets[i] changed orbit and returns
// its new index. The forward pass is the classic splice. The backward pass
// covers a combined orbit that moved inward past a predecessor.
func (g *engine) splice(i int) int {
	for i+1 < len(g.planets) && g.planets[i+1].a < g.planets[i].a {
		g.planets[i], g.planets[i+1] = g.planets[i+1], g.planets[i]
		i++
	}
	for i > 0 && g.planets[i-1].a > g.planets[i].a {
		g.planets[i], g.planets[i-1] = g.planets[i-1], g.planets[i]
		i--
	}
	return i
}

// settle absorbs neighbours that planets[i] grew into until its excursion
// overlaps neither neighbour. The classic Dole loop only splices a merged
// body forward and stops there; this cascade goes further so that top-level
// seeds never overlap, and each absorption counts as a settle, not a merge.
func (g *engine) settle(i int) error {
	for {
		p := g.planets[i]
		j := -1
		switch {
		case i > 0 && g.overlaps(g.planets[i-1].a, g.planets[i-1].e, g.planets[i-1].mass, p.a, p.e, p.mass):
			j = i - 1
		case i+1 < len(g.planets) && g.overlaps(p.a, p.e, p.mass, g.planets[i+1].a, g.planets[i+1].e, g.planets[i+1].mass):
			j = i + 1
		}
		if j < 0 {
			return nil
		}
		n := g.planets[j]
		newA, newE := g.combine(p.a, p.e, p.mass, n.a, n.e, n.mass)
		crit := g.phys.CriticalMass(newA, newE, g.cfg.StellarLuminosity)
		density := g.phys.DustDensity(g.cfg.StellarMass, newA)
		grown, err := g.accreteDust(p.mass+n.mass, newA, newE, crit, density)
		if err != nil {
			return err
		}
		targetA, targetMass := p.a, p.mass
		p.a = newA
		p.e = newE
		p.mass = grown.Mass
		p.dust += n.dust + grown.Dust
		p.gas += n.gas + grown.Gas
		p.gasGiant = p.mass >= crit
		p.moons = append(p.moons, n.moons...)

		g.planets = append(g.planets[:j], g.planets[j+1:]...)
		if j < i {
			i--
		}
		i = g.splice(i)

		g.stats.Settles++
		g.emit(Event{
			Kind: EventSettle, A: n.a, E: n.e, Mass: n.mass, DustMass: n.dust, GasMass: n.gas,
			TargetA: targetA, TargetMass: targetMass, NewA: newA, NewE: newE, NewMass: p.mass, GasGiant: p.gasGiant,
		})
	}
}

func (g *engine) checkSorted() {
	for i := 1; i < len(g.planets); i++ {
		if !(g.planets[i-1].a < g.planets[i].a) {
			panic(fmt.Sprintf("accrete: planets %d (a=%g) and %d (a=%g) out of order", i-1, g.planets[i-1].a, i, g.planets[i].a))
		}
	}
}

func (g *engine) emit(ev Event) {
	g.seq++
	ev.Seq = g.seq
	ev.Planets = len(g.planets)
	ev.Bands = g.disk.Len()
	if g.observe != nil {
		g.observe(ev)
	}
	if e := g.log.Debug(); e.Enabled() {
		e.Uint64("seq", ev.Seq).
			Str("kind", string(ev.Kind)).
			Float64("a", ev.A).
			Float64("e", ev.E).
			Float64("mass", ev.Mass).
			Int("planets", ev.Planets).
			Int("bands", ev.Bands).
			Msg("accrete event")
	}
}

// Overlaps reports whether two seeds' orbital excursions reach each other,
// using the same test the engine applies to collisions.
func Overlaps(m physics.Model, x, y Seed) bool {
	g := engine{phys: m}
	return g.overlaps(x.A, x.E, x.Mass, y.A, y.E, y.Mass)
}
