package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"stargen.ai/internal/observability"
	"stargen.ai/internal/persistence/archive"
	"stargen.ai/internal/persistence/indexdb"
	"stargen.ai/internal/persistence/mirror"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/tuning"
	"stargen.ai/internal/transport/ws"
)

// runtimeEnv holds the switches that are only read from the environment.
type runtimeEnv struct {
	IndexBackend    string `env:"STARGEN_INDEX_BACKEND" envDefault:"sqlite"`
	EnablePprofHTTP bool   `env:"STARGEN_ENABLE_PPROF_HTTP" envDefault:"false"`
	ArchiveRuns     bool   `env:"STARGEN_ARCHIVE_RUNS" envDefault:"true"`
}

func main() {
	var (
		addr          = flag.String("addr", ":8080", "http listen address")
		dataDir       = flag.String("data", "./data", "runtime data directory")
		tuningPath    = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml or tuning.toml (empty for defaults)")
		disableDB     = flag.Bool("disable_db", false, "disable the sqlite system index")
		maxConcurrent = flag.Int("max_concurrent", 4, "generations allowed in flight across all connections")
	)
	flag.Parse()

	logger := observability.InitLogger("server")

	var rt runtimeEnv
	if err := env.Parse(&rt); err != nil {
		logger.Fatal().Err(err).Msg("parse env")
	}

	tune, err := loadTuning(*tuningPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *tuningPath).Msg("load tuning")
	}

	ctx, cancel := signalContext()
	defer cancel()

	idx, err := openIndex(*dataDir, rt.IndexBackend, *disableDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index")
	}
	if idx != nil {
		defer func() { _ = idx.Close() }()
	}
	tuningDigest, err := idx.UpsertTuning(ctx, tune)
	if err != nil {
		logger.Fatal().Err(err).Msg("upsert tuning")
	}

	mirrorCfg, err := mirror.ConfigFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("mirror config")
	}
	var mir *mirror.Mirror
	if mirrorCfg.Enabled {
		client, err := mirror.NewClient(mirrorCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("mirror client")
		}
		mir = mirror.New(client, *dataDir, mirrorCfg, logger)
		defer mir.Close()
		logger.Info().Str("bucket", mirrorCfg.Bucket).Str("prefix", mirrorCfg.Prefix).Msg("mirroring archived systems")
	}

	var rec ws.Recorder
	if rt.ArchiveRuns {
		store := archive.NewStore(*dataDir, idx, tuningDigest)
		if mir != nil {
			store.SetMirror(mir)
		}
		rec = storeRecorder{store: store}
		logger.Info().Str("dir", store.Dir()).Msg("archiving generated systems")
	}

	srv := ws.NewServer(ws.Config{
		Tuning:        tune,
		TuningDigest:  tuningDigest,
		MaxConcurrent: *maxConcurrent,
		Recorder:      rec,
		Logger:        logger,
	})
	mux := buildMux(srv, idx, mir, rt.EnablePprofHTTP)
	if !rt.EnablePprofHTTP {
		logger.Info().Msg("pprof endpoints disabled (STARGEN_ENABLE_PPROF_HTTP=false)")
	}

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           observability.RequestLogger(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = httpSrv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Str("tuning_digest", tuningDigest).Bool("moons", tune.Moons).Msg("listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
	if idx != nil {
		st := idx.Stats()
		logger.Info().Int("queue_depth", st.QueueDepth).Uint64("dropped_runs", st.DropRunTotal).Msg("shutdown")
	}
}

func loadTuning(path string) (tuning.Tuning, error) {
	tune, err := tuning.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			tune = tuning.Defaults()
		} else {
			return tune, err
		}
	}
	if err := tune.ApplyEnv(); err != nil {
		return tune, err
	}
	return tune, nil
}

func buildMux(srv *ws.Server, idx *indexdb.SQLiteIndex, mir *mirror.Mirror, enablePprof bool) *http.ServeMux {
	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeIndexMetrics(rw, idx)
		writeMirrorMetrics(rw, mir)
	})
	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func writeIndexMetrics(rw http.ResponseWriter, idx *indexdb.SQLiteIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP stargen_index_queue_depth Current index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE stargen_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "stargen_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP stargen_index_queue_capacity Index writer queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE stargen_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "stargen_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP stargen_index_dropped_runs_total Runs dropped because the index queue was full.\n")
	fmt.Fprintf(rw, "# TYPE stargen_index_dropped_runs_total counter\n")
	fmt.Fprintf(rw, "stargen_index_dropped_runs_total %d\n", s.DropRunTotal)
}

func writeMirrorMetrics(rw http.ResponseWriter, mir *mirror.Mirror) {
	if mir == nil {
		return
	}
	s := mir.Stats()
	fmt.Fprintf(rw, "# HELP stargen_mirror_queue_depth Current mirror queue depth.\n")
	fmt.Fprintf(rw, "# TYPE stargen_mirror_queue_depth gauge\n")
	fmt.Fprintf(rw, "stargen_mirror_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP stargen_mirror_dropped_total Files dropped because the mirror queue was full.\n")
	fmt.Fprintf(rw, "# TYPE stargen_mirror_dropped_total counter\n")
	fmt.Fprintf(rw, "stargen_mirror_dropped_total %d\n", s.DroppedTotal)

	fmt.Fprintf(rw, "# HELP stargen_mirror_upload_success_total Successful mirror uploads.\n")
	fmt.Fprintf(rw, "# TYPE stargen_mirror_upload_success_total counter\n")
	fmt.Fprintf(rw, "stargen_mirror_upload_success_total %d\n", s.UploadSuccessTotal)

	fmt.Fprintf(rw, "# HELP stargen_mirror_upload_fail_total Failed mirror uploads after retry.\n")
	fmt.Fprintf(rw, "# TYPE stargen_mirror_upload_fail_total counter\n")
	fmt.Fprintf(rw, "stargen_mirror_upload_fail_total %d\n", s.UploadFailTotal)

	fmt.Fprintf(rw, "# HELP stargen_mirror_last_success_unix Unix time of the last successful upload.\n")
	fmt.Fprintf(rw, "# TYPE stargen_mirror_last_success_unix gauge\n")
	fmt.Fprintf(rw, "stargen_mirror_last_success_unix %d\n", s.LastSuccessUnix)
}

// storeRecorder adapts archive.Store to the ws service.
type storeRecorder struct {
	store *archive.Store
}

func (r storeRecorder) RecordRun(seed int64, tu tuning.Tuning, sys *accrete.System) (string, error) {
	meta, err := r.store.Record(seed, tu, sys)
	if err != nil {
		return "", err
	}
	return meta.RunID, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
