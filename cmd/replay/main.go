package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"stargen.ai/internal/persistence/archive"
	persistlog "stargen.ai/internal/persistence/log"
	"stargen.ai/internal/persistence/snapshot"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/digest"
	"stargen.ai/internal/sim/rng"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir  = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		archiveDir = flag.String("archive", "", "copy the verified snapshot into <dir>/seed_<seed>/ (optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	sys := snap.System()
	fmt.Printf("snapshot v%d system=%s seed=%d star=%.3f planets=%d moons=%d digest=%s\n",
		snap.Header.Version, snap.Header.SystemID, snap.Seed, snap.Config.StellarMass,
		sys.Planets(), sys.Moons(), snap.Header.Digest)

	if err := snap.Verify(); err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}

	var recorded []accrete.Event
	if *eventsDir != "" {
		files, err := listEventFiles(*eventsDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list events:", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
			os.Exit(1)
		}
		for _, path := range files {
			evs, err := readRunEvents(path, snap.Header.SystemID)
			if err != nil {
				fmt.Fprintln(os.Stderr, "events:", err)
				os.Exit(1)
			}
			recorded = append(recorded, evs...)
		}
		if len(recorded) == 0 {
			fmt.Fprintln(os.Stderr, "no events recorded for system", snap.Header.SystemID)
			os.Exit(1)
		}
	}

	checked, err := replay(snap, recorded)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: digest=%s events_checked=%d\n", snap.Header.Digest, checked)

	if *archiveDir != "" {
		dst, err := archive.ArchiveSnapshot(*archiveDir, *snapPath, snap)
		if err != nil {
			fmt.Fprintln(os.Stderr, "archive:", err)
			os.Exit(1)
		}
		fmt.Println("archived:", dst)
	}
}

// replay regenerates the system from the snapshot's seed, config and tuning
// and checks it against the recorded digest. When recorded is non-empty the
// regenerated event stream must match it event for event.
func replay(snap snapshot.SnapshotV1, recorded []accrete.Event) (int, error) {
	var got []accrete.Event
	opts := accrete.Options{}
	if len(recorded) > 0 {
		opts.Observer = func(ev accrete.Event) { got = append(got, ev) }
	}
	sys, err := accrete.Generate(snap.Config.AccreteConfig(), snap.Tuning, rng.New(snap.Seed), opts)
	if err != nil {
		return 0, fmt.Errorf("regenerate: %w", err)
	}
	if d := digest.SystemDigest(sys); d != snap.Header.Digest {
		return 0, fmt.Errorf("digest mismatch: got=%s want=%s", d, snap.Header.Digest)
	}
	if len(recorded) == 0 {
		return 0, nil
	}
	if len(got) != len(recorded) {
		return 0, fmt.Errorf("event count mismatch: got=%d want=%d", len(got), len(recorded))
	}
	for i := range recorded {
		if got[i].Seq != recorded[i].Seq || got[i].Kind != recorded[i].Kind || got[i].A != recorded[i].A || got[i].Mass != recorded[i].Mass {
			return i, fmt.Errorf("event %d mismatch: got=%s a=%g want=%s a=%g", recorded[i].Seq, got[i].Kind, got[i].A, recorded[i].Kind, recorded[i].A)
		}
	}
	return len(recorded), nil
}

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// readRunEvents returns the events of one run from a compressed JSONL file,
// in file order.
func readRunEvents(path, runID string) ([]accrete.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []accrete.Event
	for sc.Scan() {
		var rec persistlog.EventRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if rec.RunID != runID {
			continue
		}
		out = append(out, rec.Event)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
