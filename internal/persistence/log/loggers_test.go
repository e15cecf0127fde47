package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
)

func readLines(t *testing.T, path string) []EventRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []EventRecord
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var rec EventRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestJSONLZstdWriter_RotatesByHour(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(EventRecord{RunID: "a", Event: accrete.Event{Seq: 1, Kind: accrete.EventInsert}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(EventRecord{RunID: "a", Event: accrete.Event{Seq: 2, Kind: accrete.EventMerge}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	first := readLines(t, filepath.Join(dir, "events-2026-03-01-10.jsonl.zst"))
	second := readLines(t, filepath.Join(dir, "events-2026-03-01-11.jsonl.zst"))
	if len(first) != 1 || first[0].Seq != 1 || first[0].Kind != accrete.EventInsert {
		t.Fatalf("first hour: %+v", first)
	}
	if len(second) != 1 || second[0].Seq != 2 || second[0].Kind != accrete.EventMerge {
		t.Fatalf("second hour: %+v", second)
	}
}

func TestEventLogger_RecordsRun(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.w.now = func() time.Time { return now }

	var count int
	obs := l.Observer("run_1", 9)
	sys, err := accrete.Generate(accrete.SolarConfig(), tuning.Defaults(), rng.New(9), accrete.Options{
		Observer: func(ev accrete.Event) {
			count++
			obs(ev)
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := l.Err(); err != nil {
		t.Fatalf("observer error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs := readLines(t, filepath.Join(dir, "events", "events-2026-03-01-12.jsonl.zst"))
	if len(recs) != count {
		t.Fatalf("logged %d events, observed %d", len(recs), count)
	}
	inserts := 0
	for i, r := range recs {
		if r.RunID != "run_1" || r.Seed != 9 {
			t.Fatalf("record %d not tagged: %+v", i, r)
		}
		if r.Seq != uint64(i+1) {
			t.Fatalf("record %d has seq %d", i, r.Seq)
		}
		if r.Kind == accrete.EventInsert {
			inserts++
		}
	}
	if inserts != sys.Stats.Inserts {
		t.Fatalf("logged %d inserts, stats report %d", inserts, sys.Stats.Inserts)
	}
}
