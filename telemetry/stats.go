// Package telemetry collects daily population statistics and writes them to
// CSV tables, Prometheus metrics and structured logs.
package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// DayStats is the population record for one simulated day.
type DayStats struct {
	Day         int     `csv:"day"`
	Date        string  `csv:"date"`
	Temperature float64 `csv:"temperature"`
	ForageHours float64 `csv:"forage_hours"`

	// Live individuals by stage at end of day
	Eggs     int `csv:"eggs"`
	Larvae   int `csv:"larvae"`
	Prepupae int `csv:"prepupae"`
	Pupae    int `csv:"pupae"`
	InCocoon int `csv:"in_cocoon"`
	Females  int `csv:"females"`

	// Events during the day
	EggsLaid        int     `csv:"eggs_laid"`
	FemaleEggs      int     `csv:"female_eggs"`
	Parasitised     int     `csv:"parasitised_cells"`
	FemalesEmerged  int     `csv:"females_emerged"`
	MalesEmerged    int     `csv:"males_emerged"`
	NestsFounded    int     `csv:"nests_founded"`
	NestsClosed     int     `csv:"nests_closed"`
	PollenCollected float64 `csv:"pollen_mg"`

	// Deaths by cause (male emergence is counted above, not here)
	DeathsMortality       int `csv:"deaths_mortality"`
	DeathsWinter          int `csv:"deaths_winter"`
	DeathsFailedEmergence int `csv:"deaths_failed_emergence"`
	DeathsParasitoid      int `csv:"deaths_parasitoid"`
	DeathsOldAge          int `csv:"deaths_old_age"`
	DeathsEggsExhausted   int `csv:"deaths_eggs_exhausted"`

	// Environment state
	ActiveNests     int     `csv:"active_nests"`
	Bombylids       float64 `csv:"bombylids"`
	Cleptoparasites float64 `csv:"cleptoparasites"`
	PrewinterEnded  bool    `csv:"prewinter_ended"`
	OverwinterEnded bool    `csv:"overwinter_ended"`
}

// Population returns the number of live individuals across all stages.
func (s DayStats) Population() int {
	return s.Eggs + s.Larvae + s.Prepupae + s.Pupae + s.InCocoon + s.Females
}

// Deaths returns the total deaths recorded during the day.
func (s DayStats) Deaths() int {
	return s.DeathsMortality + s.DeathsWinter + s.DeathsFailedEmergence +
		s.DeathsParasitoid + s.DeathsOldAge + s.DeathsEggsExhausted
}

// Summary describes a sample of values.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	P10    float64
	P50    float64
	P90    float64
}

// Summarize computes mean, standard deviation and deciles of values.
// Deciles interpolate linearly on the empirical distribution.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	s := Summary{N: n, Mean: stat.Mean(sorted, nil)}
	if n > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	s.P10 = stat.Quantile(0.10, stat.LinInterp, sorted, nil)
	s.P50 = stat.Quantile(0.50, stat.LinInterp, sorted, nil)
	s.P90 = stat.Quantile(0.90, stat.LinInterp, sorted, nil)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("n", s.N),
		slog.Float64("mean", s.Mean),
		slog.Float64("sd", s.StdDev),
		slog.Float64("p10", s.P10),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
	)
}

// LogValue implements slog.LogValuer for structured logging.
func (s DayStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("day", s.Day),
		slog.String("date", s.Date),
		slog.Float64("temperature", s.Temperature),
		slog.Float64("forage_hours", s.ForageHours),
		slog.Int("eggs", s.Eggs),
		slog.Int("larvae", s.Larvae),
		slog.Int("prepupae", s.Prepupae),
		slog.Int("pupae", s.Pupae),
		slog.Int("in_cocoon", s.InCocoon),
		slog.Int("females", s.Females),
		slog.Int("eggs_laid", s.EggsLaid),
		slog.Int("females_emerged", s.FemalesEmerged),
		slog.Int("males_emerged", s.MalesEmerged),
		slog.Int("deaths", s.Deaths()),
		slog.Int("active_nests", s.ActiveNests),
		slog.Float64("pollen_mg", s.PollenCollected),
	)
}

// LogStats logs the day stats using slog.
func (s DayStats) LogStats() {
	slog.Info("stats",
		"day", s.Day,
		"date", s.Date,
		"temp", s.Temperature,
		"population", s.Population(),
		"eggs", s.Eggs,
		"larvae", s.Larvae,
		"prepupae", s.Prepupae,
		"pupae", s.Pupae,
		"in_cocoon", s.InCocoon,
		"females", s.Females,
		"eggs_laid", s.EggsLaid,
		"emerged", s.FemalesEmerged,
		"deaths", s.Deaths(),
		"nests", s.ActiveNests,
	)
}
