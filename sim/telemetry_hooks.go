package sim

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/telemetry"
)

// flushTelemetry closes the day's record, writes it to the sink and the
// output tables, and checks for bookmarks.
func (s *Scheduler) flushTelemetry(counts stageCounts) (DayResult, error) {
	flags := s.season.Flags()
	snapshot := telemetry.DayStats{
		Day:             s.day,
		Date:            s.date.Format(time.DateOnly),
		Temperature:     s.today.Temperature,
		ForageHours:     s.today.ForageHours,
		Eggs:            counts[components.StageEgg],
		Larvae:          counts[components.StageLarva],
		Prepupae:        counts[components.StagePrepupa],
		Pupae:           counts[components.StagePupa],
		InCocoon:        counts[components.StageInCocoon],
		Females:         counts[components.StageFemale],
		ActiveNests:     s.registry.Active(),
		PrewinterEnded:  flags.PrewinterEnded,
		OverwinterEnded: flags.OverwinterEnded,
	}
	if s.parasitoids != nil {
		snapshot.Bombylids = s.parasitoids.Total(components.ParasitoidBombylid)
		snapshot.Cleptoparasites = s.parasitoids.Total(components.ParasitoidCleptoparasite)
	}

	stats := s.collector.Flush(snapshot)
	res := DayResult{Stats: stats, Extinct: s.population == 0}

	if s.sink != nil {
		if err := s.sink.WriteDay(stats); err != nil {
			return res, err
		}
	}

	logEvery := s.cfg.Telemetry.LogEveryDays
	if s.logStats && logEvery > 0 && s.day%logEvery == 0 {
		stats.LogStats()
	}

	perfWindow := s.cfg.Telemetry.PerfWindow
	if perfWindow > 0 && (s.day+1)%perfWindow == 0 {
		perfStats := s.perf.Stats()
		if s.logStats {
			perfStats.LogStats()
		}
		if err := s.output.WritePerf(perfStats, s.day); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	res.Bookmarks = s.bookmarks.Check(stats)
	for _, bm := range res.Bookmarks {
		if s.logStats {
			bm.LogBookmark()
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
	return res, nil
}

// writeStageLengths reports the stage durations completed since the last call.
func (s *Scheduler) writeStageLengths(period string) {
	rows := s.collector.FlushStageLengths(period)
	for _, r := range rows {
		slog.Info("stage length", "period", r.Period, "stage", r.Stage, "n", r.Count, "mean_days", r.Mean)
	}
	if err := s.output.WriteStages(rows); err != nil {
		slog.Error("failed to write stage lengths", "error", err)
	}
}

// Finish reports the stage lengths accumulated since the last annual
// reset. Call it once after the last day.
func (s *Scheduler) Finish() {
	s.writeStageLengths("final")
}
