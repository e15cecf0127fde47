// Package digest hashes a generated system into a stable hex string used to
// compare runs and verify replays.
package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"stargen.ai/internal/sim/accrete"
)

type Writer interface {
	Write(p []byte) (n int, err error)
}

func BoolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func WriteU64(w Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.Write(tmp[:])
}

func WriteF64(w Writer, tmp *[8]byte, v float64) {
	WriteU64(w, tmp, math.Float64bits(v))
}

// SystemDigest covers the run configuration and the full seed tree. Stats are
// excluded; two runs that place the same bodies hash the same.
func SystemDigest(sys *accrete.System) string {
	if sys == nil {
		return ""
	}
	h := sha256.New()
	var tmp [8]byte

	digestConfig(h, &tmp, sys.Config)
	digestSeeds(h, &tmp, sys.Seeds)

	return hex.EncodeToString(h.Sum(nil))
}

// SeedsDigest hashes only the seed tree.
func SeedsDigest(seeds []accrete.Seed) string {
	h := sha256.New()
	var tmp [8]byte
	digestSeeds(h, &tmp, seeds)
	return hex.EncodeToString(h.Sum(nil))
}

func digestConfig(w Writer, tmp *[8]byte, c accrete.Config) {
	WriteF64(w, tmp, c.StellarMass)
	WriteF64(w, tmp, c.StellarLuminosity)
	WriteF64(w, tmp, c.InnerDust)
	WriteF64(w, tmp, c.OuterDust)
	WriteF64(w, tmp, c.OuterPlanetLimit)
	WriteU64(w, tmp, uint64(len(c.Overrides)))
	for _, o := range c.Overrides {
		WriteF64(w, tmp, o.A)
		WriteF64(w, tmp, o.E)
	}
}

func digestSeeds(w Writer, tmp *[8]byte, seeds []accrete.Seed) {
	WriteU64(w, tmp, uint64(len(seeds)))
	for _, s := range seeds {
		WriteF64(w, tmp, s.A)
		WriteF64(w, tmp, s.E)
		WriteF64(w, tmp, s.Mass)
		WriteF64(w, tmp, s.DustMass)
		WriteF64(w, tmp, s.GasMass)
		w.Write([]byte{BoolByte(s.GasGiant)})
		digestSeeds(w, tmp, s.Moons)
	}
}
