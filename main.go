package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/osmia/config"
	"github.com/pthm-cable/osmia/environment"
	"github.com/pthm-cable/osmia/persistence"
	"github.com/pthm-cable/osmia/sim"
	"github.com/pthm-cable/osmia/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output daily stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV tables and config snapshot")
	sqlitePath := flag.String("sqlite", "", "SQLite database for run results (empty = disabled)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	weatherCSV := flag.String("weather-csv", "", "Hourly weather CSV (empty = synthetic weather)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	days := flag.Int("days", 0, "Days to simulate (0 = use config)")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	runDays := cfg.Run.Days
	if *days > 0 {
		runDays = *days
	}

	if err := run(cfg, rngSeed, runDays, runFlags{
		logStats:    *logStats,
		outputDir:   *outputDir,
		sqlitePath:  *sqlitePath,
		metricsAddr: *metricsAddr,
		weatherCSV:  *weatherCSV,
		workers:     *workers,
	}); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type runFlags struct {
	logStats    bool
	outputDir   string
	sqlitePath  string
	metricsAddr string
	weatherCSV  string
	workers     int
}

func run(cfg *config.Config, seed int64, days int, fl runFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	output, err := telemetry.NewOutputManager(fl.outputDir)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	sinks := telemetry.MultiSink{output}

	if fl.sqlitePath != "" {
		db, err := persistence.Open(fl.sqlitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err := db.BeginRun(cfg, seed)
		if err != nil {
			return err
		}
		slog.Info("recording run", "db", fl.sqlitePath, "run_id", runID)
		sinks = append(sinks, db)
	}

	if fl.metricsAddr != "" {
		metrics := telemetry.NewMetrics()
		sinks = append(sinks, metrics)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: fl.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	opts := sim.Options{
		Seed:     seed,
		Workers:  fl.workers,
		Sink:     sinks,
		Output:   output,
		LogStats: fl.logStats,
	}
	if fl.weatherCSV != "" {
		series, err := environment.LoadSeries(fl.weatherCSV)
		if err != nil {
			return err
		}
		synth := environment.NewSynthetic(cfg, seed)
		opts.Environment = environment.Combine(series, synth)
		opts.LandCover = synth
	}

	s, err := sim.New(cfg, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	slog.Info("starting simulation",
		"seed", seed,
		"start", cfg.Run.StartDate,
		"days", days,
		"population", s.Population(),
	)

	start := time.Now()
	var eggs, emerged int
	err = s.Run(ctx, days, func(res sim.DayResult) error {
		eggs += res.Stats.EggsLaid
		emerged += res.Stats.FemalesEmerged + res.Stats.MalesEmerged
		if res.Extinct {
			slog.Info("population extinct", "day", res.Stats.Day, "date", res.Stats.Date)
		}
		return nil
	})
	s.Finish()
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	fec := s.Fecundity()
	slog.Info("simulation finished",
		"days", s.Day(),
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"days_per_sec", humanize.Ftoa(float64(s.Day())/elapsed.Seconds()),
		"population", humanize.Comma(int64(s.Population())),
		"eggs_laid", humanize.Comma(int64(eggs)),
		"emerged", humanize.Comma(int64(emerged)),
		"eggs_per_female", fec.Eggs(),
		"female_lifespan", fec.Lifespans(),
	)
	return nil
}
