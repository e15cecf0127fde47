package disk

import (
	"errors"
	"math"
	"testing"
)

func mustNew(t *testing.T, inner, outer float64) *Ledger {
	t.Helper()
	l, err := New(inner, outer)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestNew(t *testing.T) {
	l := mustNew(t, 0, 200)
	bands := l.Bands()
	if len(bands) != 1 || bands[0] != (Band{Inner: 0, Outer: 200, Dust: true, Gas: true}) {
		t.Fatalf("unexpected initial bands: %+v", bands)
	}
	if !l.DustLeft() {
		t.Fatalf("fresh ledger must report dust left")
	}
}

func TestNew_InvalidRange(t *testing.T) {
	cases := [][2]float64{{5, 5}, {10, 1}, {-1, 4}, {0, math.Inf(1)}, {math.NaN(), 1}}
	for _, c := range cases {
		if _, err := New(c[0], c[1]); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("New(%v, %v): expected ErrInvalidRange, got %v", c[0], c[1], err)
		}
	}
}

func TestUpdateDustLanes_SplitsMiddle(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-9, 1e-5, 0.3, 50)
	want := []Band{
		{Inner: 0, Outer: 10, Dust: true, Gas: true},
		{Inner: 10, Outer: 20, Dust: false, Gas: true},
		{Inner: 20, Outer: 100, Dust: true, Gas: true},
	}
	assertBands(t, l.Bands(), want)
	if !l.DustLeft() {
		t.Fatalf("dust should remain")
	}
}

func TestUpdateDustLanes_GasGiantStripsGas(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-3, 1e-5, 0.3, 50)
	if b := l.Bands()[1]; b.Dust || b.Gas {
		t.Fatalf("swept band should have neither dust nor gas: %+v", b)
	}
}

func TestUpdateDustLanes_GasNeverReappears(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-3, 1e-5, 0.3, 50) // strips gas
	l.UpdateDustLanes(5, 25, 1e-9, 1e-5, 0.3, 50)  // small body, would keep gas
	want := []Band{
		{Inner: 0, Outer: 5, Dust: true, Gas: true},
		{Inner: 5, Outer: 10, Dust: false, Gas: true},
		{Inner: 10, Outer: 20, Dust: false, Gas: false},
		{Inner: 20, Outer: 25, Dust: false, Gas: true},
		{Inner: 25, Outer: 100, Dust: true, Gas: true},
	}
	assertBands(t, l.Bands(), want)
}

func TestUpdateDustLanes_MergesIdenticalNeighbours(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-9, 1e-5, 0.3, 50)
	l.UpdateDustLanes(30, 40, 1e-9, 1e-5, 0.3, 50)
	if l.Len() != 5 {
		t.Fatalf("expected 5 bands, got %+v", l.Bands())
	}
	// Sweeping the gap joins both swept lanes into one band.
	l.UpdateDustLanes(15, 35, 1e-9, 1e-5, 0.3, 50)
	want := []Band{
		{Inner: 0, Outer: 10, Dust: true, Gas: true},
		{Inner: 10, Outer: 40, Dust: false, Gas: true},
		{Inner: 40, Outer: 100, Dust: true, Gas: true},
	}
	assertBands(t, l.Bands(), want)
}

func TestUpdateDustLanes_SweepPastEdges(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(-5, 150, 1e-9, 1e-5, 0.3, 50)
	assertBands(t, l.Bands(), []Band{{Inner: 0, Outer: 100, Dust: false, Gas: true}})
	if l.DustLeft() {
		t.Fatalf("no dust should be left")
	}
}

func TestUpdateDustLanes_EdgeAlignedSweep(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-9, 1e-5, 0.3, 50)
	// A sweep starting exactly on an existing edge must not loop or leave empty bands.
	l.UpdateDustLanes(20, 30, 1e-9, 1e-5, 0.3, 50)
	assertBands(t, l.Bands(), []Band{
		{Inner: 0, Outer: 10, Dust: true, Gas: true},
		{Inner: 10, Outer: 30, Dust: false, Gas: true},
		{Inner: 30, Outer: 100, Dust: true, Gas: true},
	})
}

func TestUpdateDustLanes_DustLeftOnlyCountsFormingRegion(t *testing.T) {
	l := mustNew(t, 0, 200)
	l.UpdateDustLanes(0, 60, 1e-9, 1e-5, 0.3, 50)
	if l.DustLeft() {
		t.Fatalf("dust beyond the forming region must not keep the loop alive: %+v", l.Bands())
	}
	if !l.DustAvailable(100, 120) {
		t.Fatalf("outer disk should still hold dust")
	}
}

func TestDustAvailable(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-9, 1e-5, 0.3, 50)
	if l.DustAvailable(12, 18) {
		t.Fatalf("swept lane should have no dust")
	}
	if !l.DustAvailable(12, 25) {
		t.Fatalf("range reaching into dusty band should find dust")
	}
	if !l.DustAvailable(5, 12) {
		t.Fatalf("range reaching into inner dusty band should find dust")
	}
	if l.DustAvailable(150, 160) {
		t.Fatalf("range past the disk has no dust")
	}
}

func TestEach(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-9, 1e-5, 0.3, 50)
	var got []Band
	l.Each(15, 50, func(b Band) { got = append(got, b) })
	if len(got) != 2 || got[0].Inner != 10 || got[1].Inner != 20 {
		t.Fatalf("Each visited %+v", got)
	}
}

func TestDustAvailable_EdgeContactMatchesEach(t *testing.T) {
	l := mustNew(t, 0, 100)
	l.UpdateDustLanes(10, 20, 1e-9, 1e-5, 0.3, 50)
	for _, r := range [][2]float64{{10, 20}, {10, 15}, {15, 20}} {
		visited := false
		l.Each(r[0], r[1], func(b Band) {
			if b.Dust {
				visited = true
			}
		})
		if visited {
			t.Fatalf("Each found dust in swept range %v", r)
		}
		if l.DustAvailable(r[0], r[1]) {
			t.Fatalf("range %v only touches dusty bands at its edges", r)
		}
	}
}

func assertBands(t *testing.T, got, want []Band) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("band count: got %d want %d\n got=%+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("band %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}
