package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/tuning"
)

func testSystem() *accrete.System {
	return &accrete.System{
		Config: accrete.Config{StellarMass: 1, StellarLuminosity: 1, OuterDust: 200},
		Seeds: []accrete.Seed{
			{A: 0.7, E: 0.02, Mass: 2e-6, DustMass: 2e-6},
			{A: 5.1, E: 0.04, Mass: 9e-4, DustMass: 1e-4, GasMass: 8e-4, GasGiant: true, Moons: []accrete.Seed{
				{A: 5.0, E: 0.1, Mass: 1e-8, DustMass: 1e-8},
				{A: 5.2, E: 0.2, Mass: 2e-8, DustMass: 2e-8},
			}},
			{A: 12, E: 0.01, Mass: 3e-5, DustMass: 1e-5, GasMass: 2e-5, GasGiant: true},
		},
	}
}

func TestSQLiteIndex_RecordSystem(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	tuneDigest, err := idx.UpsertTuning(ctx, tuning.Defaults())
	if err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	runID := idx.RecordSystem(SystemRecord{
		Seed: 42, Digest: "abc", TuningDigest: tuneDigest, SnapshotPath: "/data/42.snap.zst", System: testSystem(),
	})
	if _, err := uuid.Parse(runID); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", runID, err)
	}
	idx.RecordSystem(SystemRecord{RunID: "other", Seed: 7, Digest: "def", System: testSystem()})
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	runs, err := idx.Systems(ctx, 42)
	if err != nil {
		t.Fatalf("Systems: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run for seed 42, got %d", len(runs))
	}
	r := runs[0]
	if r.RunID != runID || r.Planets != 3 || r.Moons != 2 || r.Digest != "abc" || r.TuningDigest != tuneDigest || r.SnapshotPath != "/data/42.snap.zst" {
		t.Fatalf("row mismatch: %+v", r)
	}

	bodies, err := idx.Bodies(ctx, runID)
	if err != nil {
		t.Fatalf("Bodies: %v", err)
	}
	wantParents := []int{-1, -1, 1, 1, -1}
	if len(bodies) != len(wantParents) {
		t.Fatalf("expected %d bodies, got %d", len(wantParents), len(bodies))
	}
	for i, b := range bodies {
		if b.Idx != i || b.ParentIdx != wantParents[i] {
			t.Fatalf("body %d: idx=%d parent=%d want parent %d", i, b.Idx, b.ParentIdx, wantParents[i])
		}
	}
	if !bodies[1].GasGiant || bodies[2].GasGiant || bodies[3].Mass != 2e-8 {
		t.Fatalf("body values not preserved: %+v", bodies)
	}
}

func TestSQLiteIndex_PersistsAcrossClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordSystem(SystemRecord{RunID: "r1", Seed: 5, Digest: "d", System: testSystem()})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var planets, moons, bodies int
	if err := db.QueryRow(`SELECT planets,moons FROM runs WHERE run_id='r1'`).Scan(&planets, &moons); err != nil {
		t.Fatalf("Scan run: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM bodies WHERE run_id='r1'`).Scan(&bodies); err != nil {
		t.Fatalf("Scan bodies: %v", err)
	}
	if planets != 3 || moons != 2 || bodies != 5 {
		t.Fatalf("planets=%d moons=%d bodies=%d", planets, moons, bodies)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRun}

	s.RecordSystem(SystemRecord{Seed: 1, System: testSystem()})
	s.RecordSystem(SystemRecord{Seed: 2, System: testSystem()})

	st := s.Stats()
	if st.DropRunTotal != 2 {
		t.Fatalf("DropRunTotal=%d want=2", st.DropRunTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsSafe(t *testing.T) {
	var s *SQLiteIndex
	if id := s.RecordSystem(SystemRecord{System: testSystem()}); id == "" {
		t.Fatalf("nil index should still assign a run id")
	}
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync on nil: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("nil stats: %+v", st)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
