package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stargen.ai/internal/persistence/archive"
	"stargen.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "health":
			healthCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	seed := fs.Int64("seed", 0, "seed filter (optional)")
	_ = fs.Parse(args)

	metas, err := listRuns(filepath.Join(*dataDir, "systems"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, m := range metas {
		if *seed != 0 && m.Seed != *seed {
			continue
		}
		fmt.Printf("%s seed=%d planets=%d moons=%d digest=%.12s created=%s\n",
			m.RunID, m.Seed, m.Planets, m.Moons, m.Digest, m.CreatedAt)
	}
}

// listRuns reads every <run>.meta.json in dir, oldest first.
func listRuns(dir string) ([]archive.RunMeta, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []archive.RunMeta
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".meta.json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var m archive.RunMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	path := fs.String("path", "", "snapshot path (.snap.zst)")
	full := fs.Bool("full", false, "print the whole snapshot as JSON instead of the header")
	_ = fs.Parse(args)

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "missing -path")
		os.Exit(2)
	}
	if err := describeSnapshot(os.Stdout, *path, *full); err != nil {
		fmt.Fprintln(os.Stderr, "snapshot:", err)
		os.Exit(1)
	}
}

// describeSnapshot prints the snapshot header (or the whole snapshot) and
// fails when the stored seed tree no longer matches the header digest.
func describeSnapshot(w io.Writer, path string, full bool) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	if full {
		printJSON(w, snap)
	} else {
		sys := snap.System()
		printJSON(w, struct {
			snapshot.Header
			Seed    int64   `json:"seed"`
			Star    float64 `json:"stellar_mass"`
			Planets int     `json:"planets"`
			Moons   int     `json:"moons"`
		}{snap.Header, snap.Seed, snap.Config.StellarMass, sys.Planets(), sys.Moons()})
	}
	return snap.Verify()
}
