package main

import (
	"context"
	"math"
	"sync"

	"github.com/pthm-cable/osmia/config"
	"github.com/pthm-cable/osmia/sim"
	"github.com/pthm-cable/osmia/telemetry"
)

// Targets are the observed population traits the calibration matches.
type Targets struct {
	EggsPerFemale  float64
	LifespanDays   float64
	LifespanWeight float64 // relative weight of the lifespan error
}

// failedFitness is returned when a run ends with no adult female records.
const failedFitness = 10.0

// runResult holds the results from a single simulation run.
type runResult struct {
	eggs     telemetry.Summary
	lifespan telemetry.Summary
	err      error
}

// FitnessEvaluator runs simulations and scores them against Targets.
type FitnessEvaluator struct {
	params     *ParamVector
	days       int
	seeds      []int64
	baseConfig *config.Config
	targets    Targets

	mu       sync.Mutex
	lastEggs float64 // mean eggs per female from the most recent Evaluate call
	lastLife float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, days int, seeds []int64, baseCfg *config.Config, targets Targets) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		days:       days,
		seeds:      seeds,
		baseConfig: baseCfg,
		targets:    targets,
	}
}

// Last returns the mean eggs per female and lifespan from the most recent evaluation.
func (fe *FitnessEvaluator) Last() (eggs, lifespan float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastEggs, fe.lastLife
}

// Evaluate computes fitness for a parameter vector (lower = better),
// averaged over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg, err := fe.configFor(x)
	if err != nil {
		return failedFitness
	}

	// Run all seeds in parallel
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var total, eggs, life float64
	for _, r := range results {
		total += fe.computeFitness(r)
		eggs += r.eggs.Mean
		life += r.lifespan.Mean
	}
	n := float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastEggs = eggs / n
	fe.lastLife = life / n
	fe.mu.Unlock()

	return total / n
}

// configFor copies the base config, applies x and re-derives it.
func (fe *FitnessEvaluator) configFor(x []float64) (*config.Config, error) {
	cfg := *fe.baseConfig
	fe.params.ApplyToConfig(&cfg, x)
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// runSimulation executes a single single-worker run and summarises the
// females that died during it.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) runResult {
	s, err := sim.New(cfg, sim.Options{Seed: seed, Workers: 1})
	if err != nil {
		return runResult{err: err}
	}
	defer s.Close()

	err = s.Run(context.Background(), fe.days, nil)
	fec := s.Fecundity()
	return runResult{eggs: fec.Eggs(), lifespan: fec.Lifespans(), err: err}
}

// computeFitness is the sum of squared relative errors against the targets.
func (fe *FitnessEvaluator) computeFitness(r runResult) float64 {
	if r.err != nil || r.eggs.N == 0 {
		return failedFitness
	}
	t := fe.targets
	eggErr := relErr(r.eggs.Mean, t.EggsPerFemale)
	lifeErr := relErr(r.lifespan.Mean, t.LifespanDays)
	return eggErr*eggErr + t.LifespanWeight*lifeErr*lifeErr
}

func relErr(got, want float64) float64 {
	if want == 0 {
		return got
	}
	return (got - want) / math.Abs(want)
}
