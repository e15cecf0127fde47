package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/digest"
	"stargen.ai/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	SystemID string `json:"system_id"`
	Digest   string `json:"digest"`
}

// SnapshotV1 holds everything needed to regenerate and verify one system.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed   int64         `json:"seed"`
	Config ConfigV1      `json:"config"`
	Tuning tuning.Tuning `json:"tuning"`

	Seeds []SeedV1      `json:"seeds"`
	Stats accrete.Stats `json:"stats"`
}

type ConfigV1 struct {
	StellarMass       float64      `json:"stellar_mass"`
	StellarLuminosity float64      `json:"stellar_luminosity"`
	InnerDust         float64      `json:"inner_dust"`
	OuterDust         float64      `json:"outer_dust"`
	OuterPlanetLimit  float64      `json:"outer_planet_limit,omitempty"`
	Overrides         [][2]float64 `json:"overrides,omitempty"`
}

type SeedV1 struct {
	A        float64  `json:"a"`
	E        float64  `json:"e"`
	Mass     float64  `json:"mass"`
	Dust     float64  `json:"dust"`
	Gas      float64  `json:"gas"`
	GasGiant bool     `json:"gas_giant"`
	Moons    []SeedV1 `json:"moons,omitempty"`
}

// FromSystem captures a finished run. The digest is computed here so the
// header always matches the body.
func FromSystem(systemID string, seed int64, tu tuning.Tuning, sys *accrete.System) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{Version: Version, SystemID: systemID, Digest: digest.SystemDigest(sys)},
		Seed:   seed,
		Tuning: tu,
	}
	if sys == nil {
		return snap
	}
	c := sys.Config
	snap.Config = ConfigV1{
		StellarMass:       c.StellarMass,
		StellarLuminosity: c.StellarLuminosity,
		InnerDust:         c.InnerDust,
		OuterDust:         c.OuterDust,
		OuterPlanetLimit:  c.OuterPlanetLimit,
	}
	for _, o := range c.Overrides {
		snap.Config.Overrides = append(snap.Config.Overrides, [2]float64{o.A, o.E})
	}
	snap.Seeds = seedsV1(sys.Seeds)
	snap.Stats = sys.Stats
	return snap
}

func seedsV1(in []accrete.Seed) []SeedV1 {
	if len(in) == 0 {
		return nil
	}
	out := make([]SeedV1, 0, len(in))
	for _, s := range in {
		out = append(out, SeedV1{
			A: s.A, E: s.E, Mass: s.Mass, Dust: s.DustMass, Gas: s.GasMass,
			GasGiant: s.GasGiant, Moons: seedsV1(s.Moons),
		})
	}
	return out
}

func (c ConfigV1) AccreteConfig() accrete.Config {
	cfg := accrete.Config{
		StellarMass:       c.StellarMass,
		StellarLuminosity: c.StellarLuminosity,
		InnerDust:         c.InnerDust,
		OuterDust:         c.OuterDust,
		OuterPlanetLimit:  c.OuterPlanetLimit,
	}
	for _, o := range c.Overrides {
		cfg.Overrides = append(cfg.Overrides, accrete.Orbit{A: o[0], E: o[1]})
	}
	return cfg
}

// System rebuilds the recorded result.
func (s SnapshotV1) System() *accrete.System {
	return &accrete.System{Config: s.Config.AccreteConfig(), Seeds: accreteSeeds(s.Seeds), Stats: s.Stats}
}

func accreteSeeds(in []SeedV1) []accrete.Seed {
	if len(in) == 0 {
		return nil
	}
	out := make([]accrete.Seed, 0, len(in))
	for _, s := range in {
		out = append(out, accrete.Seed{
			A: s.A, E: s.E, Mass: s.Mass, DustMass: s.Dust, GasMass: s.Gas,
			GasGiant: s.GasGiant, Moons: accreteSeeds(s.Moons),
		})
	}
	return out
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	br, closeFn, err := open(path)
	if err != nil {
		return snap, err
	}
	defer closeFn()

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	br, closeFn, err := open(path)
	if err != nil {
		return h, err
	}
	defer closeFn()

	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version == 0 {
		return h, errors.New("missing snapshot version")
	}
	return h, nil
}

func open(path string) (*bufio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return bufio.NewReaderSize(dec, 256*1024), func() {
		dec.Close()
		_ = f.Close()
	}, nil
}

// Verify recomputes the digest of the stored seed tree.
func (s SnapshotV1) Verify() error {
	if got := digest.SystemDigest(s.System()); got != s.Header.Digest {
		return fmt.Errorf("snapshot %s: digest %s does not match recorded %s", s.Header.SystemID, got, s.Header.Digest)
	}
	return nil
}
