package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// checker accumulates range violations so a bad file reports every problem at once.
type checker struct {
	errs []error
}

func (ck *checker) failf(format string, args ...any) {
	ck.errs = append(ck.errs, fmt.Errorf(format, args...))
}

func (ck *checker) positive(name string, v float64) {
	if !(v > 0) || math.IsInf(v, 0) {
		ck.failf("%s must be > 0, got %v", name, v)
	}
}

func (ck *checker) nonNegative(name string, v float64) {
	if !(v >= 0) || math.IsInf(v, 0) {
		ck.failf("%s must be >= 0, got %v", name, v)
	}
}

func (ck *checker) probability(name string, v float64) {
	if !(v >= 0 && v <= 1) {
		ck.failf("%s must be in [0, 1], got %v", name, v)
	}
}

func (ck *checker) atLeast(name string, v, min int) {
	if v < min {
		ck.failf("%s must be >= %d, got %d", name, min, v)
	}
}

func (ck *checker) length(name string, v []float64, n int) {
	if len(v) != n {
		ck.failf("%s must have %d entries, got %d", name, n, len(v))
	}
}

// monthDay accepts dates that exist in every year, so 02-29 is rejected.
func (ck *checker) monthDay(name string, md MonthDay) {
	t := time.Date(2001, time.Month(md.Month), md.Day, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != md.Month || t.Day() != md.Day {
		ck.failf("%s is not a calendar date in every year: %02d-%02d", name, md.Month, md.Day)
	}
}

func (ck *checker) stage(name string, d DegreeDayStage) {
	ck.positive(name+".total_dd", d.TotalDD)
	ck.probability(name+".daily_mortality", d.DailyMortality)
}

func (ck *checker) err() error {
	if len(ck.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(ck.errs...))
}

// Validate checks every parameter against its declared range.
// Values are never clamped.
func (c *Config) Validate() error {
	ck := &checker{}

	if _, err := time.Parse(time.DateOnly, c.Run.StartDate); err != nil {
		ck.failf("run.start_date: %v", err)
	}
	ck.atLeast("run.days", c.Run.Days, 1)
	ck.atLeast("run.workers", c.Run.Workers, 0)

	l := c.Landscape
	ck.positive("landscape.width", l.Width)
	ck.positive("landscape.height", l.Height)
	ck.positive("landscape.nest_area_size", l.NestAreaSize)
	ck.positive("landscape.density_cell_size", l.DensityCellSize)
	ck.atLeast("landscape.nest_capacity", l.NestCapacity, 0)
	ck.probability("landscape.suitable_fraction", l.SuitableFraction)
	ck.positive("landscape.noise_scale", l.NoiseScale)
	ck.atLeast("landscape.octaves", l.Octaves, 1)
	ck.positive("landscape.persistence", l.Persistence)
	ck.nonNegative("landscape.pollen_max_quantity", l.PollenMaxQuantity)
	ck.nonNegative("landscape.pollen_max_quality", l.PollenMaxQuality)
	if l.BloomPeakMonth < 1 || l.BloomPeakMonth > 12 {
		ck.failf("landscape.bloom_peak_month must be in [1, 12], got %d", l.BloomPeakMonth)
	}
	ck.positive("landscape.bloom_width_months", l.BloomWidthMonths)
	ck.probability("landscape.pollen_floor", l.PollenFloor)

	w := c.Weather
	ck.nonNegative("weather.amplitude", w.Amplitude)
	if w.WarmestDay < 1 || w.WarmestDay > 366 {
		ck.failf("weather.warmest_day must be in [1, 366], got %d", w.WarmestDay)
	}
	ck.nonNegative("weather.noise_amplitude", w.NoiseAmplitude)
	ck.nonNegative("weather.wind_mean", w.WindMean)
	ck.nonNegative("weather.wind_noise", w.WindNoise)
	ck.probability("weather.rain_chance", w.RainChance)
	ck.nonNegative("weather.rain_amount", w.RainAmount)
	if w.ValidTempMin >= w.ValidTempMax {
		ck.failf("weather.valid_temp_min (%v) must be below valid_temp_max (%v)", w.ValidTempMin, w.ValidTempMax)
	}
	ck.positive("weather.valid_wind_max", w.ValidWindMax)
	ck.positive("weather.valid_precip_max", w.ValidPrecipMax)

	p := c.Population
	ck.atLeast("population.initial_cocoons", p.InitialCocoons, 0)
	ck.atLeast("population.initial_females", p.InitialFemales, 0)
	ck.positive("population.initial_provision_min", p.InitialProvisionMin)
	if p.InitialProvisionMax < p.InitialProvisionMin {
		ck.failf("population.initial_provision_max (%v) below initial_provision_min (%v)", p.InitialProvisionMax, p.InitialProvisionMin)
	}
	ck.nonNegative("population.initial_chilling", p.InitialChilling)

	d := c.Development
	ck.stage("development.egg", d.Egg)
	ck.stage("development.larva", d.Larva)
	ck.stage("development.pupa", d.Pupa)
	ck.positive("development.prepupa.total_days", d.Prepupa.TotalDays)
	ck.probability("development.prepupa.daily_mortality", d.Prepupa.DailyMortality)
	ck.length("development.prepupa.rates", d.Prepupa.Rates, PrepupalRateEntries)
	for i, r := range d.Prepupa.Rates {
		ck.nonNegative(fmt.Sprintf("development.prepupa.rates[%d]", i), r)
	}

	co := c.Cocoon
	ck.probability("cocoon.prewinter_mortality", co.PrewinterMortality)
	ck.positive("cocoon.required_chilling", co.RequiredChilling)
	ck.nonNegative("cocoon.winter_mort_chill_slope", co.WinterMortChillSlope)
	ck.nonNegative("cocoon.winter_mort_mass_slope", co.WinterMortMassSlope)
	ck.nonNegative("cocoon.emergence_slope", co.EmergenceSlope)

	s := c.Season
	ck.monthDay("season.autumn_check_from", s.AutumnCheckFrom)
	ck.monthDay("season.spring", s.Spring)
	ck.monthDay("season.reset", s.Reset)
	ck.nonNegative("season.autumn_daily_drop", s.AutumnDailyDrop)
	ck.nonNegative("season.autumn_sharp_drop", s.AutumnSharpDrop)

	f := c.Female
	ck.atLeast("female.prenesting_days", f.PrenestingDays, 0)
	ck.atLeast("female.lifespan", f.Lifespan, 1)
	ck.probability("female.daily_mortality", f.DailyMortality)
	ck.positive("female.mass_min", f.MassMin)
	if f.MassMax < f.MassMin {
		ck.failf("female.mass_max (%v) below mass_min (%v)", f.MassMax, f.MassMin)
	}
	ck.atLeast("female.nest_attempts_per_day", f.NestAttemptsPerDay, 1)
	ck.atLeast("female.failed_days_before_dispersal", f.FailedDaysBeforeDispersal, 1)
	ck.positive("female.nest_search_radius", f.NestSearchRadius)
	ck.atLeast("female.clutch_min", f.ClutchMin, 1)
	ck.atLeast("female.clutch_max", f.ClutchMax, f.ClutchMin)
	ck.atLeast("female.max_cells_per_nest", f.MaxCellsPerNest, 1)
	ck.atLeast("female.max_cell_days", f.MaxCellDays, 1)
	ck.positive("female.total_nests_possible", f.TotalNestsPossible)
	ck.nonNegative("female.egg_load_jitter", f.EggLoadJitter)
	ck.positive("female.dispersal_alpha", f.DispersalAlpha)
	ck.positive("female.dispersal_beta", f.DispersalBeta)
	ck.positive("female.dispersal_max_distance", f.DispersalMaxDistance)

	fo := c.Forage
	ck.nonNegative("forage.max_flight_wind", fo.MaxFlightWind)
	ck.nonNegative("forage.max_flight_precip", fo.MaxFlightPrecip)
	if fo.FirstHour < 0 || fo.LastHour > 24 || fo.FirstHour >= fo.LastHour {
		ck.failf("forage hours window [%d, %d) must lie within [0, 24)", fo.FirstHour, fo.LastHour)
	}
	ck.positive("forage.typical_range", fo.TypicalRange)
	if fo.MaxRange < fo.TypicalRange {
		ck.failf("forage.max_range (%v) below typical_range (%v)", fo.MaxRange, fo.TypicalRange)
	}
	ck.atLeast("forage.coarse_steps", fo.CoarseSteps, 2)
	ck.atLeast("forage.coarse_directions", fo.CoarseDirections, 1)
	ck.positive("forage.fine_step", fo.FineStep)
	ck.atLeast("forage.coarse_failures_before_fine", fo.CoarseFailuresBeforeFine, 1)
	ck.positive("forage.flight_speed", fo.FlightSpeed)
	ck.probability("forage.competition", fo.Competition)
	ck.nonNegative("forage.density_coefficient", fo.DensityCoefficient)
	ck.positive("forage.pollen_score_to_mg", fo.PollenScoreToMg)
	ck.length("forage.quantity_thresholds", fo.QuantityThresholds, 12)
	ck.length("forage.quality_thresholds", fo.QualityThresholds, 12)
	ck.positive("forage.efficiency_max", fo.EfficiencyMax)
	ck.positive("forage.efficiency_half_age", fo.EfficiencyHalfAge)
	ck.positive("forage.efficiency_shape", fo.EfficiencyShape)

	sr := c.SexRatio
	ck.length("sex_ratio.age_logistic", sr.AgeLogistic, 4)
	ck.length("sex_ratio.mass_linear", sr.MassLinear, 2)
	ck.length("sex_ratio.cocoon_age_logistic", sr.CocoonAgeLogistic, 4)
	ck.length("sex_ratio.cocoon_mass_linear", sr.CocoonMassLinear, 2)
	ck.positive("sex_ratio.provision_per_cocoon", sr.ProvisionPerCocoon)
	ck.positive("sex_ratio.male_target_provision", sr.MaleTargetProvision)
	ck.positive("sex_ratio.male_min_provision", sr.MaleMinProvision)
	if sr.MaleMinProvision > sr.MaleTargetProvision {
		ck.failf("sex_ratio.male_min_provision (%v) above male_target_provision (%v)", sr.MaleMinProvision, sr.MaleTargetProvision)
	}
	ck.positive("sex_ratio.mass_step", sr.MassStep)
	ck.atLeast("sex_ratio.max_age", sr.MaxAge, 1)

	pa := c.Parasitism
	switch pa.Model {
	case "probability", "mechanistic":
	default:
		ck.failf("parasitism.model must be probability or mechanistic, got %q", pa.Model)
	}
	ck.probability("parasitism.daily_rate", pa.DailyRate)
	ck.probability("parasitism.bombylid_fraction", pa.BombylidFraction)
	for _, arr := range []struct {
		name string
		v    []float64
	}{
		{"parasitism.attack_rates", pa.AttackRates},
		{"parasitism.daily_mortality", pa.DailyMortality},
		{"parasitism.dispersal", pa.Dispersal},
		{"parasitism.start_low", pa.StartLow},
		{"parasitism.start_high", pa.StartHigh},
	} {
		ck.length(arr.name, arr.v, 2)
		for i, v := range arr.v {
			ck.nonNegative(fmt.Sprintf("%s[%d]", arr.name, i), v)
		}
	}
	for i := range pa.DailyMortality {
		ck.probability(fmt.Sprintf("parasitism.daily_mortality[%d]", i), pa.DailyMortality[i])
	}
	for i := range pa.Dispersal {
		ck.probability(fmt.Sprintf("parasitism.dispersal[%d]", i), pa.Dispersal[i])
	}
	for i := range min(len(pa.StartLow), len(pa.StartHigh)) {
		if pa.StartHigh[i] < pa.StartLow[i] {
			ck.failf("parasitism.start_high[%d] below start_low[%d]", i, i)
		}
	}
	ck.positive("parasitism.cell_size", pa.CellSize)
	for _, ks := range [][2]string{
		{"parasitism.bombylid_kill_stage", pa.BombylidKillStage},
		{"parasitism.cleptoparasite_kill_stage", pa.CleptoparasiteKillStage},
	} {
		switch ks[1] {
		case "egg", "larva", "prepupa", "pupa", "in_cocoon":
		default:
			ck.failf("%s must be one of egg, larva, prepupa, pupa, in_cocoon; got %q", ks[0], ks[1])
		}
	}

	ck.atLeast("telemetry.log_every_days", c.Telemetry.LogEveryDays, 0)
	ck.atLeast("telemetry.perf_window", c.Telemetry.PerfWindow, 1)

	return ck.err()
}
