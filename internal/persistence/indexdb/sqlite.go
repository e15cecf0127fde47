package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable catalogue of generated systems. Writes go
// through a buffered queue drained by one goroutine; snapshots and event
// logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRunTotal atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqSync
)

type req struct {
	kind reqKind

	run  runRow
	done chan struct{}
}

type runRow struct {
	RunID        string
	Seed         int64
	StellarMass  float64
	Luminosity   float64
	Planets      int
	Moons        int
	Digest       string
	TuningDigest string
	SnapshotPath string
	RecordedAt   string
	Bodies       []BodyRow
}

// SystemRecord describes one finished run to index.
type SystemRecord struct {
	// RunID is assigned when empty.
	RunID        string
	Seed         int64
	Digest       string
	TuningDigest string
	SnapshotPath string
	System       *accrete.System
}

// RunRow is one row of the runs table.
type RunRow struct {
	RunID        string  `json:"run_id"`
	Seed         int64   `json:"seed"`
	StellarMass  float64 `json:"stellar_mass"`
	Luminosity   float64 `json:"luminosity"`
	Planets      int     `json:"planets"`
	Moons        int     `json:"moons"`
	Digest       string  `json:"digest"`
	TuningDigest string  `json:"tuning_digest,omitempty"`
	SnapshotPath string  `json:"snapshot_path,omitempty"`
	RecordedAt   string  `json:"recorded_at"`
}

// BodyRow is one planet or moon. Bodies are numbered depth-first; planets
// have ParentIdx -1.
type BodyRow struct {
	Idx       int     `json:"idx"`
	ParentIdx int     `json:"parent_idx"`
	A         float64 `json:"a"`
	E         float64 `json:"e"`
	Mass      float64 `json:"mass"`
	Dust      float64 `json:"dust"`
	Gas       float64 `json:"gas"`
	GasGiant  bool    `json:"gas_giant"`
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropRunTotal  uint64 `json:"drop_run_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 4096)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tunings (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			stellar_mass REAL NOT NULL,
			luminosity REAL NOT NULL,
			planets INTEGER NOT NULL,
			moons INTEGER NOT NULL,
			digest TEXT NOT NULL,
			tuning_digest TEXT,
			snapshot_path TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(digest);`,
		`CREATE TABLE IF NOT EXISTS bodies (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			parent_idx INTEGER NOT NULL,
			a REAL NOT NULL,
			e REAL NOT NULL,
			mass REAL NOT NULL,
			dust REAL NOT NULL,
			gas REAL NOT NULL,
			gas_giant INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropRunTotal:  s.dropRunTotal.Load(),
	}
}

// RecordSystem queues a run and returns its run id. The row is dropped,
// and counted in Stats, when the writer falls behind.
func (s *SQLiteIndex) RecordSystem(rec SystemRecord) string {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if s == nil || s.closed.Load() || rec.System == nil {
		return rec.RunID
	}
	r := runRow{
		RunID:        rec.RunID,
		Seed:         rec.Seed,
		StellarMass:  rec.System.Config.StellarMass,
		Luminosity:   rec.System.Config.StellarLuminosity,
		Planets:      rec.System.Planets(),
		Moons:        rec.System.Moons(),
		Digest:       rec.Digest,
		TuningDigest: rec.TuningDigest,
		SnapshotPath: rec.SnapshotPath,
		RecordedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		Bodies:       flattenBodies(rec.System.Seeds),
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRunTotal.Add(1)
	}
	return rec.RunID
}

func flattenBodies(seeds []accrete.Seed) []BodyRow {
	var out []BodyRow
	var walk func([]accrete.Seed, int)
	walk = func(ss []accrete.Seed, parent int) {
		for _, sd := range ss {
			idx := len(out)
			out = append(out, BodyRow{
				Idx: idx, ParentIdx: parent,
				A: sd.A, E: sd.E, Mass: sd.Mass, Dust: sd.DustMass, Gas: sd.GasMass, GasGiant: sd.GasGiant,
			})
			walk(sd.Moons, idx)
		}
	}
	walk(seeds, -1)
	return out
}

// Sync waits until every queued write is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertTuning stores the tuning actually applied to runs and returns its
// digest for SystemRecord.TuningDigest.
func (s *SQLiteIndex) UpsertTuning(ctx context.Context, tu tuning.Tuning) (string, error) {
	b, err := json.Marshal(tu)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	if s == nil {
		return digest, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO tunings(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", fmt.Errorf("upsert tuning: %w", err)
	}
	return digest, nil
}

// Systems lists the runs recorded for a seed, oldest first.
func (s *SQLiteIndex) Systems(ctx context.Context, seed int64) ([]RunRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,seed,stellar_mass,luminosity,planets,moons,digest,
		COALESCE(tuning_digest,''),COALESCE(snapshot_path,''),recorded_at
		FROM runs WHERE seed=? ORDER BY recorded_at, run_id`, seed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.Seed, &r.StellarMass, &r.Luminosity, &r.Planets, &r.Moons,
			&r.Digest, &r.TuningDigest, &r.SnapshotPath, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Bodies(ctx context.Context, runID string) ([]BodyRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idx,parent_idx,a,e,mass,dust,gas,gas_giant
		FROM bodies WHERE run_id=? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BodyRow
	for rows.Next() {
		var b BodyRow
		var gasGiant int
		if err := rows.Scan(&b.Idx, &b.ParentIdx, &b.A, &b.E, &b.Mass, &b.Dust, &b.Gas, &gasGiant); err != nil {
			return nil, err
		}
		b.GasGiant = gasGiant != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,seed,stellar_mass,luminosity,planets,moons,digest,tuning_digest,snapshot_path,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertBody, _ := s.db.Prepare(`INSERT OR REPLACE INTO bodies(run_id,idx,parent_idx,a,e,mass,dust,gas,gas_giant) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertBody != nil {
			_ = insertBody.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// Commit when the queue drains so readers sharing the single
	// connection are never blocked behind an idle transaction.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			run := r.run
			if insertRun == nil || insertBody == nil {
				break
			}
			if _, err := tx.Stmt(insertRun).Exec(
				run.RunID,
				run.Seed,
				run.StellarMass,
				run.Luminosity,
				run.Planets,
				run.Moons,
				run.Digest,
				run.TuningDigest,
				run.SnapshotPath,
				run.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
			for _, b := range run.Bodies {
				gasGiant := 0
				if b.GasGiant {
					gasGiant = 1
				}
				if _, err := tx.Stmt(insertBody).Exec(run.RunID, b.Idx, b.ParentIdx, b.A, b.E, b.Mass, b.Dust, b.Gas, gasGiant); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
