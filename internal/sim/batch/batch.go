// Package batch generates independent systems concurrently.
package batch

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/digest"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
)

type Result struct {
	Index  int
	Seed   int64
	System *accrete.System
	Digest string
	Err    error
}

type Options struct {
	// Workers caps concurrent runs. 0 means GOMAXPROCS.
	Workers int
	Logger  *zerolog.Logger
	// Observer, when set, supplies a per-run event observer.
	Observer func(index int, seed int64) accrete.Observer
}

// Seeds returns n run seeds derived from base.
func Seeds(base int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = rng.Derive(base, i)
	}
	return out
}

// Run generates one system per seed. Results are in input order; a failed
// run is reported in its Result and does not stop the others. Run returns an
// error only when ctx is cancelled.
func Run(ctx context.Context, cfg accrete.Config, tu tuning.Tuning, seeds []int64, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range seeds {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runOne(cfg, tu, i, seed, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func runOne(cfg accrete.Config, tu tuning.Tuning, index int, seed int64, opts Options) Result {
	res := Result{Index: index, Seed: seed}
	runOpts := accrete.Options{}
	if opts.Logger != nil {
		l := opts.Logger.With().Int("run", index).Int64("seed", seed).Logger()
		runOpts.Logger = &l
	}
	if opts.Observer != nil {
		runOpts.Observer = opts.Observer(index, seed)
	}
	sys, err := accrete.Generate(cfg, tu, rng.New(seed), runOpts)
	if err != nil {
		res.Err = err
		return res
	}
	res.System = sys
	res.Digest = digest.SystemDigest(sys)
	return res
}
