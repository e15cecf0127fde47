package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stargen.ai/internal/observability"
	"stargen.ai/internal/persistence/archive"
	"stargen.ai/internal/persistence/indexdb"
	persistlog "stargen.ai/internal/persistence/log"
	"stargen.ai/internal/protocol"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/batch"
	"stargen.ai/internal/sim/physics"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
)

// cliEnv supplies flag defaults from the environment.
type cliEnv struct {
	DataDir string `env:"STARGEN_DATA"`
	Tuning  string `env:"STARGEN_TUNING"`
	Workers int    `env:"STARGEN_WORKERS" envDefault:"0"`
}

type options struct {
	Seed       int64
	Mass       float64
	Luminosity float64
	TuningPath string
	DataDir    string
	JSON       bool
	Count      int
	Workers    int
	NoMoons    bool
	DisableDB  bool
}

func main() {
	var ce cliEnv
	if err := env.Parse(&ce); err != nil {
		fmt.Fprintln(os.Stderr, "parse env:", err)
		os.Exit(2)
	}

	var o options
	flag.Int64Var(&o.Seed, "seed", 0, "run seed (0 picks a random one)")
	flag.Float64Var(&o.Mass, "mass", 1.0, "stellar mass in solar masses")
	flag.Float64Var(&o.Luminosity, "lum", 0, "stellar luminosity in solar units (0 derives it from -mass)")
	flag.StringVar(&o.TuningPath, "tuning", ce.Tuning, "path to tuning.yaml or tuning.toml (empty for defaults)")
	flag.StringVar(&o.DataDir, "data", ce.DataDir, "write snapshots, event logs and the index under this directory (optional)")
	flag.BoolVar(&o.JSON, "json", false, "print SYSTEM messages as JSON lines instead of a table")
	flag.IntVar(&o.Count, "count", 1, "number of systems; runs after the first use seeds derived from -seed")
	flag.IntVar(&o.Workers, "workers", ce.Workers, "concurrent runs (0 means GOMAXPROCS)")
	flag.BoolVar(&o.NoMoons, "no_moons", false, "disable moon capture")
	flag.BoolVar(&o.DisableDB, "disable_db", false, "skip the sqlite index when -data is set")
	flag.Parse()

	logger := observability.InitLogger("stargen")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("stargen failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer, logger zerolog.Logger) error {
	if o.Count <= 0 {
		return fmt.Errorf("-count must be > 0")
	}
	tune, err := tuning.Load(o.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	if err := tune.ApplyEnv(); err != nil {
		return fmt.Errorf("tuning env: %w", err)
	}
	if o.NoMoons {
		tune.Moons = false
	}

	cfg := accrete.SolarConfig()
	cfg.StellarMass = o.Mass
	cfg.StellarLuminosity = o.Luminosity

	base := o.Seed
	if base == 0 {
		if base, err = rng.NewSeed(); err != nil {
			return err
		}
	}
	seeds := []int64{base}
	if o.Count > 1 {
		seeds = append(seeds, batch.Seeds(base, o.Count-1)...)
	}

	runIDs := make([]string, len(seeds))
	for i := range runIDs {
		runIDs[i] = uuid.NewString()
	}

	opts := batch.Options{Workers: o.Workers, Logger: &logger}
	var (
		events *persistlog.EventLogger
		store  *archive.Store
		idx    *indexdb.SQLiteIndex
	)
	if o.DataDir != "" {
		if !o.DisableDB {
			idx, err = indexdb.OpenSQLite(filepath.Join(o.DataDir, "index", "systems.sqlite"))
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer func() { _ = idx.Close() }()
		}
		tuningDigest, err := idx.UpsertTuning(ctx, tune)
		if err != nil {
			return err
		}
		store = archive.NewStore(o.DataDir, idx, tuningDigest)
		events = persistlog.NewEventLogger(o.DataDir)
		defer func() { _ = events.Close() }()
		opts.Observer = func(index int, seed int64) accrete.Observer {
			return events.Observer(runIDs[index], seed)
		}
	}

	results, err := batch.Run(ctx, cfg, tune, seeds, opts)
	if err != nil {
		return err
	}

	var failed []error
	var written uint64
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			failed = append(failed, fmt.Errorf("seed %d: %w", res.Seed, res.Err))
			continue
		}
		if store == nil {
			continue
		}
		meta, err := store.RecordAs(runIDs[i], res.Seed, tune, res.System)
		if err != nil {
			return fmt.Errorf("record seed %d: %w", res.Seed, err)
		}
		if fi, err := os.Stat(filepath.Join(store.Dir(), meta.Snapshot)); err == nil {
			written += uint64(fi.Size())
		}
	}
	if events != nil {
		if err := events.Err(); err != nil {
			return fmt.Errorf("event log: %w", err)
		}
	}
	if idx != nil {
		if err := idx.Sync(ctx); err != nil {
			return fmt.Errorf("sync index: %w", err)
		}
	}

	if o.JSON {
		if err := writeJSONLines(out, results, runIDs, store != nil); err != nil {
			return err
		}
	} else {
		writeTable(out, results)
	}

	if store != nil {
		logger.Info().
			Str("dir", store.Dir()).
			Str("snapshots", humanize.Bytes(written)).
			Int("runs", len(results)-len(failed)).
			Msg("recorded systems")
	}
	return errors.Join(failed...)
}

func writeJSONLines(out io.Writer, results []batch.Result, runIDs []string, recorded bool) error {
	enc := json.NewEncoder(out)
	for i, res := range results {
		if res.Err != nil {
			if err := enc.Encode(protocol.NewErrorMsg("", protocol.CodeFor(res.Err), res.Err.Error())); err != nil {
				return err
			}
			continue
		}
		runID := ""
		if recorded {
			runID = runIDs[i]
		}
		if err := enc.Encode(protocol.NewSystemMsg("", runID, res.Seed, res.Digest, res.System)); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(out io.Writer, results []batch.Result) {
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "seed %d: %v\n\n", res.Seed, res.Err)
			continue
		}
		sys := res.System
		fmt.Fprintf(out, "seed %d  star %.3f Msun  lum %.3f  planets %d  moons %d  samples %s  digest %.12s\n",
			res.Seed, sys.Config.StellarMass, sys.Config.StellarLuminosity,
			sys.Planets(), sys.Moons(), humanize.Comma(int64(sys.Stats.Samples)), res.Digest)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "#\ta (AU)\te\tmass (Earth)\tdust\tgas\ttype\tmoons\t")
		for i, p := range sys.Seeds {
			kind := "rocky"
			if p.GasGiant {
				kind = "gas giant"
			}
			fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%s\t%s\t%s\t%s\t%d\t\n",
				i+1, p.A, p.E,
				humanize.FtoaWithDigits(physics.EarthMasses(p.Mass), 3),
				humanize.FtoaWithDigits(physics.EarthMasses(p.DustMass), 3),
				humanize.FtoaWithDigits(physics.EarthMasses(p.GasMass), 3),
				kind, len(p.Moons))
			for j, m := range p.Moons {
				fmt.Fprintf(tw, "%d.%d\t\t\t%s\t\t\tmoon\t\t\n", i+1, j+1,
					humanize.FtoaWithDigits(physics.EarthMasses(m.Mass), 4))
			}
		}
		_ = tw.Flush()
		fmt.Fprintln(out)
	}
}
