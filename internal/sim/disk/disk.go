// Package disk tracks where dust and gas remain in a protoplanetary disk.
//
// The ledger is a partition of [inner, outer] into ascending, contiguous,
// non-overlapping bands. Sweeps split bands to isolate the swept interval
// and adjacent bands with identical state are merged back together.
package disk

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidRange = errors.New("invalid disk range")

// Band is one annulus of the disk.
type Band struct {
	Inner float64 `json:"inner"`
	Outer float64 `json:"outer"`
	Dust  bool    `json:"dust"`
	Gas   bool    `json:"gas"`
}

type Ledger struct {
	bands    []Band
	dustLeft bool
}

// New creates a ledger holding one dusty, gassy band spanning [inner, outer].
func New(inner, outer float64) (*Ledger, error) {
	if math.IsNaN(inner) || math.IsNaN(outer) || math.IsInf(inner, 0) || math.IsInf(outer, 0) {
		return nil, fmt.Errorf("%w: non-finite limits [%g, %g]", ErrInvalidRange, inner, outer)
	}
	if inner < 0 || outer <= inner {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, inner, outer)
	}
	return &Ledger{
		bands:    []Band{{Inner: inner, Outer: outer, Dust: true, Gas: true}},
		dustLeft: true,
	}, nil
}

// DustLeft reports whether dust remained in the planet-forming region after
// the last sweep. A fresh ledger reports true.
func (l *Ledger) DustLeft() bool { return l.dustLeft }

func (l *Ledger) Len() int { return len(l.bands) }

// Bands returns a copy of the current partition.
func (l *Ledger) Bands() []Band {
	out := make([]Band, len(l.bands))
	copy(out, l.bands)
	return out
}

// Each calls fn for every band overlapping (inner, outer), in ascending order.
func (l *Ledger) Each(inner, outer float64, fn func(Band)) {
	for _, b := range l.bands {
		if b.Inner >= outer {
			return
		}
		if b.Outer <= inner {
			continue
		}
		fn(b)
	}
}

// DustAvailable reports whether any band overlapping (inner, outer) still
// holds dust. It uses the same boundary rule as Each, so a band that only
// touches the range at an edge does not count.
func (l *Ledger) DustAvailable(inner, outer float64) bool {
	for _, b := range l.bands {
		if b.Outer <= inner {
			continue
		}
		if b.Inner >= outer {
			break
		}
		if b.Dust {
			return true
		}
	}
	return false
}

// UpdateDustLanes clears dust from [sweptInner, sweptOuter]. Gas is cleared
// too when bodyMass exceeds criticalMass; gas never reappears. Afterwards the
// dust-left flag is recomputed over [formingInner, formingOuter].
func (l *Ledger) UpdateDustLanes(sweptInner, sweptOuter, bodyMass, criticalMass, formingInner, formingOuter float64) {
	keepGas := bodyMass <= criticalMass

	out := make([]Band, 0, len(l.bands)+2)
	for _, b := range l.bands {
		lo := math.Max(b.Inner, sweptInner)
		hi := math.Min(b.Outer, sweptOuter)
		if hi <= lo {
			out = append(out, b)
			continue
		}
		if b.Inner < lo {
			out = append(out, Band{Inner: b.Inner, Outer: lo, Dust: b.Dust, Gas: b.Gas})
		}
		out = append(out, Band{Inner: lo, Outer: hi, Dust: false, Gas: b.Gas && keepGas})
		if hi < b.Outer {
			out = append(out, Band{Inner: hi, Outer: b.Outer, Dust: b.Dust, Gas: b.Gas})
		}
	}

	merged := out[:1]
	for _, b := range out[1:] {
		last := &merged[len(merged)-1]
		if last.Dust == b.Dust && last.Gas == b.Gas {
			last.Outer = b.Outer
			continue
		}
		merged = append(merged, b)
	}
	l.bands = merged
	l.check()

	l.dustLeft = false
	for _, b := range l.bands {
		if b.Dust && b.Outer >= formingInner && b.Inner <= formingOuter {
			l.dustLeft = true
			break
		}
	}
}

func (l *Ledger) check() {
	for i, b := range l.bands {
		if !(b.Inner < b.Outer) {
			panic(fmt.Sprintf("disk: empty band %d [%g, %g]", i, b.Inner, b.Outer))
		}
		if i > 0 && l.bands[i-1].Outer != b.Inner {
			panic(fmt.Sprintf("disk: bands %d and %d are not contiguous", i-1, i))
		}
	}
}
