package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"stargen.ai/internal/persistence/archive"
	"stargen.ai/internal/persistence/mirror"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
	"stargen.ai/internal/transport/ws"
)

type nopPutter struct{}

func (nopPutter) PutFile(ctx context.Context, key, localPath string) error { return nil }

func TestOpenIndex_Backends(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"none", "OFF", "disabled"} {
		idx, err := openIndex(dir, backend, false)
		if err != nil || idx != nil {
			t.Fatalf("backend %q: idx=%v err=%v", backend, idx, err)
		}
	}
	if idx, err := openIndex(dir, "sqlite", true); err != nil || idx != nil {
		t.Fatalf("disable_db: idx=%v err=%v", idx, err)
	}
	if _, err := openIndex(dir, "d1", false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	idx, err := openIndex(dir, "", false)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer idx.Close()
	if _, err := os.Stat(filepath.Join(dir, "index", "systems.sqlite")); err != nil {
		t.Fatalf("db file: %v", err)
	}
}

func TestLoadTuning_MissingFileUsesDefaults(t *testing.T) {
	tune, err := loadTuning(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("loadTuning: %v", err)
	}
	if tune != tuning.Defaults() {
		t.Fatalf("tuning=%+v", tune)
	}
}

func TestBuildMux_MetricsAndHealth(t *testing.T) {
	dir := t.TempDir()
	idx, err := openIndex(dir, "sqlite", false)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	mir := mirror.New(nopPutter{}, dir, mirror.Config{}, zerolog.Nop())
	defer mir.Close()

	srv := ws.NewServer(ws.Config{Tuning: tuning.Defaults(), Logger: zerolog.Nop()})
	mux := buildMux(srv, idx, mir, false)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"stargen_index_queue_capacity 4096", "stargen_index_dropped_runs_total 0", "stargen_mirror_dropped_total 0"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("healthz status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("pprof should be disabled, status=%d", rec.Code)
	}
}

func TestStoreRecorder_WritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	tune := tuning.Defaults()
	cfg := accrete.SolarConfig()
	sys, err := accrete.Generate(cfg, tune, rng.New(3), accrete.Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	store := archive.NewStore(dir, nil, "")
	runID, err := storeRecorder{store: store}.RecordRun(3, tune, sys)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if runID == "" {
		t.Fatalf("empty run id")
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), runID+".snap.zst")); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
}
