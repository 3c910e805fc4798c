package telemetry

import (
	"github.com/pthm-cable/osmia/components"
)

// Collector accumulates the day's events and produces DayStats. It also
// keeps the completed stage durations for the stage-length report.
type Collector struct {
	day DayStats

	stageDays [components.NumStages][]float64
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordEgg records an egg laid on a closed cell.
func (c *Collector) RecordEgg(sex components.Sex, parasitoid components.Parasitoid) {
	c.day.EggsLaid++
	if sex == components.SexFemale {
		c.day.FemaleEggs++
	}
	if parasitoid != components.ParasitoidNone {
		c.day.Parasitised++
	}
}

// EggsToday returns the eggs recorded since the last Flush.
func (c *Collector) EggsToday() int {
	return c.day.EggsLaid
}

// RecordEmergence records an adult leaving its cocoon.
func (c *Collector) RecordEmergence(sex components.Sex) {
	if sex == components.SexMale {
		c.day.MalesEmerged++
	} else {
		c.day.FemalesEmerged++
	}
}

// RecordDeath records a death by cause.
func (c *Collector) RecordDeath(cause components.DeathCause) {
	switch cause {
	case components.CauseMortality:
		c.day.DeathsMortality++
	case components.CauseWinter:
		c.day.DeathsWinter++
	case components.CauseFailedEmergence:
		c.day.DeathsFailedEmergence++
	case components.CauseParasitoid:
		c.day.DeathsParasitoid++
	case components.CauseOldAge:
		c.day.DeathsOldAge++
	case components.CauseEggsExhausted:
		c.day.DeathsEggsExhausted++
	}
}

// RecordNest records nest founding and closing.
func (c *Collector) RecordNest(founded, closed bool) {
	if founded {
		c.day.NestsFounded++
	}
	if closed {
		c.day.NestsClosed++
	}
}

// RecordForage adds provision mass collected today.
func (c *Collector) RecordForage(mg float64) {
	c.day.PollenCollected += mg
}

// RecordStageLength records the days an individual spent in a completed stage.
func (c *Collector) RecordStageLength(stage components.Stage, days int) {
	if stage < components.NumStages {
		c.stageDays[stage] = append(c.stageDays[stage], float64(days))
	}
}

// Flush returns the day's record merged with the end-of-day snapshot
// and resets the event counters.
func (c *Collector) Flush(snapshot DayStats) DayStats {
	out := snapshot
	ev := c.day
	out.EggsLaid = ev.EggsLaid
	out.FemaleEggs = ev.FemaleEggs
	out.Parasitised = ev.Parasitised
	out.FemalesEmerged = ev.FemalesEmerged
	out.MalesEmerged = ev.MalesEmerged
	out.NestsFounded = ev.NestsFounded
	out.NestsClosed = ev.NestsClosed
	out.PollenCollected = ev.PollenCollected
	out.DeathsMortality = ev.DeathsMortality
	out.DeathsWinter = ev.DeathsWinter
	out.DeathsFailedEmergence = ev.DeathsFailedEmergence
	out.DeathsParasitoid = ev.DeathsParasitoid
	out.DeathsOldAge = ev.DeathsOldAge
	out.DeathsEggsExhausted = ev.DeathsEggsExhausted
	c.day = DayStats{}
	return out
}

// StageStats summarises how long individuals spent in one stage.
type StageStats struct {
	Period string  `csv:"period"`
	Stage  string  `csv:"stage"`
	Count  int     `csv:"count"`
	Mean   float64 `csv:"mean_days"`
	StdDev float64 `csv:"std_days"`
	P10    float64 `csv:"p10_days"`
	P50    float64 `csv:"p50_days"`
	P90    float64 `csv:"p90_days"`
}

// FlushStageLengths summarises the recorded stage durations under the
// given period label and clears them. Stages with no completions are omitted.
func (c *Collector) FlushStageLengths(period string) []StageStats {
	var out []StageStats
	for st := range c.stageDays {
		days := c.stageDays[st]
		if len(days) == 0 {
			continue
		}
		s := Summarize(days)
		out = append(out, StageStats{
			Period: period,
			Stage:  components.Stage(st).String(),
			Count:  s.N,
			Mean:   s.Mean,
			StdDev: s.StdDev,
			P10:    s.P10,
			P50:    s.P50,
			P90:    s.P90,
		})
		c.stageDays[st] = c.stageDays[st][:0]
	}
	return out
}
