package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/systems.sqlite)")
	seed := fs.Int64("seed", 0, "seed filter (runs)")
	runID := fs.String("run", "", "run id (bodies)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "systems.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "runs":
		err = queryRuns(db, os.Stdout, *seed, *limit)
	case "bodies":
		if strings.TrimSpace(*runID) == "" {
			fmt.Fprintln(os.Stderr, "missing -run")
			os.Exit(2)
		}
		err = queryBodies(db, os.Stdout, *runID)
	case "tunings":
		err = queryTunings(db, os.Stdout)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want runs, bodies or tunings)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

type runOut struct {
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

// queryRuns prints the newest runs first. seed 0 means every seed.
func queryRuns(db *sql.DB, w io.Writer, seed int64, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id,seed,stellar_mass,luminosity,planets,moons,digest,
		COALESCE(tuning_digest,''),COALESCE(snapshot_path,''),recorded_at FROM runs`
	args := []any{}
	if seed != 0 {
		query += ` WHERE seed=?`
		args = append(args, seed)
	}
	query += ` ORDER BY recorded_at DESC, run_id LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r runOut
		if err := rows.Scan(&r.RunID, &r.Seed, &r.StellarMass, &r.Luminosity, &r.Planets, &r.Moons,
			&r.Digest, &r.TuningDigest, &r.SnapshotPath, &r.RecordedAt); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		printJSON(w, r)
	}
	return rows.Err()
}

func queryBodies(db *sql.DB, w io.Writer, runID string) error {
	rows, err := db.Query(`SELECT idx,parent_idx,a,e,mass,dust,gas,gas_giant FROM bodies WHERE run_id=? ORDER BY idx`, runID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			RunID     string  `json:"run_id"`
			Idx       int     `json:"idx"`
			ParentIdx int     `json:"parent_idx"`
			A         float64 `json:"a"`
			E         float64 `json:"e"`
			Mass      float64 `json:"mass"`
			Dust      float64 `json:"dust"`
			Gas       float64 `json:"gas"`
			GasGiant  bool    `json:"gas_giant"`
		}
		var gasGiant int
		if err := rows.Scan(&r.Idx, &r.ParentIdx, &r.A, &r.E, &r.Mass, &r.Dust, &r.Gas, &gasGiant); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		r.RunID = runID
		r.GasGiant = gasGiant != 0
		printJSON(w, r)
	}
	return rows.Err()
}

func queryTunings(db *sql.DB, w io.Writer) error {
	rows, err := db.Query(`SELECT digest,json,updated_at FROM tunings ORDER BY updated_at DESC`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Digest    string          `json:"digest"`
			Tuning    json.RawMessage `json:"tuning"`
			UpdatedAt string          `json:"updated_at"`
		}
		var raw string
		if err := rows.Scan(&r.Digest, &raw, &r.UpdatedAt); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		r.Tuning = json.RawMessage(raw)
		printJSON(w, r)
	}
	return rows.Err()
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
