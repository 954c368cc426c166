// Command oddscalc runs a battle scenario through the odds calculator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/warroom/internal/logger"
	"github.com/freeeve/warroom/pkg/battle"
	"github.com/freeeve/warroom/pkg/odds"
)

func main() {
	var (
		scenarioPath string
		rulesPath    string
		runs         int
		workers      int
		seed         int64
		exact        bool
		jsonOut      bool
		verbose      bool
	)

	flag.StringVar(&scenarioPath, "scenario", "", "Battle scenario YAML (required)")
	flag.StringVar(&rulesPath, "rules", "", "Ruleset YAML (default: built-in)")
	flag.IntVar(&runs, "n", 0, "Number of runs (overrides the scenario)")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "Parallel simulation workers")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = random)")
	flag.BoolVar(&exact, "exact", false, "Run exactly -n battles, even for lopsided fights")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.BoolVar(&verbose, "v", false, "Debug logging")
	flag.Parse()

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger.Init(logger.Options{Level: level, Out: os.Stderr})

	if scenarioPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	sc, err := loadScenario(scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid scenario")
	}

	rules, catalog := battle.DefaultRuleset()
	if rulesPath != "" {
		if rules, catalog, err = battle.LoadRuleset(rulesPath); err != nil {
			log.Fatal().Err(err).Msg("Invalid ruleset")
		}
	}
	gd, req, err := sc.build(rules, catalog)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid scenario")
	}
	if runs > 0 {
		req.Runs = runs
	}
	if req.Runs == 0 {
		req.Runs = 2000
	}

	cfg := odds.DefaultConfig()
	cfg.Workers = workers
	cfg.Seed = seed
	cfg.ExactRuns = exact
	cfg.Log = logger.Component("odds")
	cfg.Attacker, cfg.Defender = sc.Options.deciders()
	calc := odds.NewCalculator(battle.NewStore(gd), cfg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Warn().Msg("Interrupted, reporting runs so far")
		calc.Cancel()
	}()

	res, err := calc.Calculate(context.Background(), req)
	if err != nil {
		log.Fatal().Err(err).Msg("Calculation failed")
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(res.Summary())
		return
	}
	printSummary(os.Stdout, sc, res.Summary())
}

func printSummary(w io.Writer, sc *scenario, s odds.Summary) {
	fmt.Fprintf(w, "\n%s attacks %s in %s\n", sc.Attacker, sc.Defender, sc.Territory)
	fmt.Fprintf(w, "  runs: %d of %d requested (%d planned) in %dms\n", s.Runs, s.Requested, s.Planned, s.ElapsedMs)
	if s.Cancelled {
		fmt.Fprintln(w, "  (cancelled; partial result)")
	}
	fmt.Fprintf(w, "\n  %-10s %6.1f%%\n", "attacker", 100*s.AttackerWin)
	fmt.Fprintf(w, "  %-10s %6.1f%%\n", "defender", 100*s.DefenderWin)
	fmt.Fprintf(w, "  %-10s %6.1f%%\n", "draw", 100*s.Draw)
	fmt.Fprintf(w, "\n  avg rounds:              %.2f\n", s.AvgRounds)
	fmt.Fprintf(w, "  avg attackers left:      %.2f (%.2f when winning)\n", s.AvgAttackingLeft, s.AvgAttackingLeftOnWin)
	fmt.Fprintf(w, "  avg defenders left:      %.2f (%.2f when holding)\n", s.AvgDefendingLeft, s.AvgDefendingLeftOnLoss)
	fmt.Fprintf(w, "  avg TUV lost:            attacker %.1f, defender %.1f\n", s.AttackerTUVLost, s.DefenderTUVLost)
	fmt.Fprintf(w, "  avg TUV swing:           %+.1f\n", s.TUVSwing)
}
