package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stargen.ai/internal/persistence/archive"
	"stargen.ai/internal/persistence/indexdb"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
)

func generate(t *testing.T, seed int64) *accrete.System {
	t.Helper()
	sys, err := accrete.Generate(accrete.SolarConfig(), tuning.Defaults(), rng.New(seed), accrete.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return sys
}

func populate(t *testing.T, dir string) (*archive.Store, []archive.RunMeta) {
	t.Helper()
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index", "systems.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	digest, err := idx.UpsertTuning(context.Background(), tuning.Defaults())
	if err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	st := archive.NewStore(dir, idx, digest)
	var metas []archive.RunMeta
	for _, seed := range []int64{1, 2, 1} {
		m, err := st.Record(seed, tuning.Defaults(), generate(t, seed))
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		metas = append(metas, m)
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return st, metas
}

func TestListRuns_ReadsMeta(t *testing.T) {
	dir := t.TempDir()
	st, metas := populate(t, dir)
	got, err := listRuns(st.Dir())
	if err != nil {
		t.Fatalf("listRuns: %v", err)
	}
	if len(got) != len(metas) {
		t.Fatalf("got %d runs want %d", len(got), len(metas))
	}
	seen := map[string]bool{}
	for _, m := range got {
		seen[m.RunID] = true
	}
	for _, m := range metas {
		if !seen[m.RunID] {
			t.Fatalf("missing run %s", m.RunID)
		}
	}
}

func TestQueries(t *testing.T) {
	dir := t.TempDir()
	_, metas := populate(t, dir)

	db, err := sql.Open("sqlite", filepath.Join(dir, "index", "systems.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := queryRuns(db, &buf, 1, 10); err != nil {
		t.Fatalf("queryRuns: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("seed 1 runs=%d:\n%s", len(lines), buf.String())
	}
	var r runOut
	if err := json.Unmarshal([]byte(lines[0]), &r); err != nil || r.Seed != 1 || r.TuningDigest == "" {
		t.Fatalf("row %s err=%v", lines[0], err)
	}

	buf.Reset()
	if err := queryRuns(db, &buf, 0, 1); err != nil {
		t.Fatalf("queryRuns limit: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Fatalf("limit 1 gave %d rows", n)
	}

	buf.Reset()
	if err := queryBodies(db, &buf, metas[1].RunID); err != nil {
		t.Fatalf("queryBodies: %v", err)
	}
	sys := generate(t, 2)
	if n := strings.Count(buf.String(), "\n"); n != sys.Planets()+sys.Moons() {
		t.Fatalf("bodies=%d want %d", n, sys.Planets()+sys.Moons())
	}

	buf.Reset()
	if err := queryTunings(db, &buf); err != nil {
		t.Fatalf("queryTunings: %v", err)
	}
	if !strings.Contains(buf.String(), `"dust_density_coeff"`) {
		t.Fatalf("tunings:\n%s", buf.String())
	}
}

func TestDescribeSnapshot(t *testing.T) {
	dir := t.TempDir()
	st, metas := populate(t, dir)
	path := filepath.Join(st.Dir(), metas[0].Snapshot)

	var buf bytes.Buffer
	if err := describeSnapshot(&buf, path, false); err != nil {
		t.Fatalf("describeSnapshot: %v", err)
	}
	var out struct {
		SystemID string `json:"system_id"`
		Seed     int64  `json:"seed"`
		Planets  int    `json:"planets"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SystemID != metas[0].RunID || out.Seed != 1 || out.Planets != metas[0].Planets {
		t.Fatalf("header=%+v meta=%+v", out, metas[0])
	}

	if err := describeSnapshot(&buf, filepath.Join(dir, "missing.snap.zst"), false); err == nil {
		t.Fatalf("expected error for missing snapshot")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			_, _ = w.Write([]byte(`{"ok":true}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	cl := &http.Client{Timeout: 2 * time.Second}

	body, err := fetch(cl, srv.URL+"/healthz")
	if err != nil || body != `{"ok":true}` {
		t.Fatalf("body=%q err=%v", body, err)
	}
	if _, err := fetch(cl, srv.URL+"/nope"); err == nil || !strings.Contains(err.Error(), "status=404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}
