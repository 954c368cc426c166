package odds

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/warroom/pkg/battle"
)

// Config tunes a Calculator.
type Config struct {
	// Workers bounds the number of parallel sessions. Values below 1 mean 1.
	Workers int
	// MinRunsPerWorker keeps workers from being spawned for a handful of
	// runs each, since every worker clones the whole state.
	MinRunsPerWorker int
	// Seed makes calculations reproducible; worker w uses Seed+w.
	// Zero seeds from the clock.
	Seed    int64
	Planner PlannerConfig
	// ExactRuns disables run-count planning.
	ExactRuns bool
	Attacker  battle.HeadlessDecider
	Defender  battle.HeadlessDecider
	Log       zerolog.Logger
	// OnProgress is called after every completed run with the number of
	// runs done so far. It may be called from several goroutines.
	OnProgress func(done, total int)
}

// DefaultConfig returns a single-worker configuration with default planning.
func DefaultConfig() Config {
	return Config{
		Workers:          1,
		MinRunsPerWorker: 32,
		Planner:          DefaultPlannerConfig(),
		Log:              zerolog.Nop(),
	}
}

// Calculator estimates battle odds by repeated simulation. A Calculator
// serves one caller; once cancelled it stays cancelled.
type Calculator struct {
	src       Snapshotter
	cfg       Config
	planner   Planner
	cancelled atomic.Bool
}

func NewCalculator(src Snapshotter, cfg Config) *Calculator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MinRunsPerWorker < 1 {
		cfg.MinRunsPerWorker = 1
	}
	return &Calculator{src: src, cfg: cfg, planner: NewPlanner(cfg.Planner)}
}

// Cancel stops the calculation at the next run boundary. Runs already in
// flight complete and are counted.
func (c *Calculator) Cancel() {
	c.cancelled.Store(true)
}

func (c *Calculator) stopped(ctx context.Context) bool {
	return c.cancelled.Load() || ctx.Err() != nil
}

// Calculate fights req.Runs battles (fewer when the planner deems the
// outcome clear) and aggregates the outcomes. Authoritative state is read
// once; all simulation happens on private copies. Cancellation returns the
// completed runs without error.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*AggregateResults, error) {
	if req.Runs < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRunCount, req.Runs)
	}
	start := time.Now()
	base := c.src.Snapshot()

	first := newSession(base)
	prep, err := first.Prepare(req)
	if err != nil {
		return nil, fmt.Errorf("prepare battle: %w", err)
	}
	planned := req.Runs
	if !c.cfg.ExactRuns {
		attack, defense := prep.Strengths()
		planned = c.planner.Plan(req.Runs, base.Rules.LowLuck, attack, defense)
	}

	workers := min(c.cfg.Workers, (planned+c.cfg.MinRunsPerWorker-1)/c.cfg.MinRunsPerWorker)
	workers = max(workers, 1)

	// Every worker gets its own graph. Clone before any worker starts
	// mutating the first one.
	sessions := []*Session{first}
	preps := []*Prepared{prep}
	for range workers - 1 {
		s := newSession(base.Clone())
		p, err := s.Prepare(req)
		if err != nil {
			return nil, fmt.Errorf("prepare battle: %w", err)
		}
		sessions = append(sessions, s)
		preps = append(preps, p)
	}

	seed := c.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c.cfg.Log.Debug().
		Str("territory", req.Territory).
		Int("requested", req.Runs).
		Int("planned", planned).
		Int("workers", workers).
		Msg("Odds calculation started")

	results := &AggregateResults{Requested: req.Runs, Planned: planned}
	var mu sync.Mutex
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		share := planned / workers
		if w < planned%workers {
			share++
		}
		eng := battle.NewEngine(base.Rules, battle.NewRandomSource(seed+int64(w)))
		eng.Attacker = c.cfg.Attacker
		eng.Defender = c.cfg.Defender
		eng.Log = c.cfg.Log
		sess, p := sessions[w], preps[w]

		g.Go(func() error {
			local := &AggregateResults{}
			defer func() {
				mu.Lock()
				results.Merge(local)
				mu.Unlock()
			}()
			for range share {
				if c.stopped(gctx) {
					return nil
				}
				out, err := sess.Run(eng, p)
				if err != nil {
					return err
				}
				local.Add(out)
				n := int(done.Add(1))
				if c.cfg.OnProgress != nil {
					c.cfg.OnProgress(n, planned)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results.Elapsed = time.Since(start)
	results.Cancelled = results.RunCount() < planned
	c.cfg.Log.Debug().
		Int("runs", results.RunCount()).
		Bool("cancelled", results.Cancelled).
		Dur("elapsed", results.Elapsed).
		Float64("attackerWin", results.AttackerWinFraction()).
		Msg("Odds calculation finished")
	return results, nil
}
