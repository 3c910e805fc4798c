// Package config provides configuration loading and access for the simulation.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// PrepupalRateEntries is the length of the temperature-indexed prepupal rate table (0..41 °C).
const PrepupalRateEntries = 42

// Config holds all simulation configuration parameters.
type Config struct {
	Run         RunConfig         `yaml:"run"`
	Landscape   LandscapeConfig   `yaml:"landscape"`
	Weather     WeatherConfig     `yaml:"weather"`
	Population  PopulationConfig  `yaml:"population"`
	Development DevelopmentConfig `yaml:"development"`
	Cocoon      CocoonConfig      `yaml:"cocoon"`
	Season      SeasonConfig      `yaml:"season"`
	Female      FemaleConfig      `yaml:"female"`
	Forage      ForageConfig      `yaml:"forage"`
	SexRatio    SexRatioConfig    `yaml:"sex_ratio"`
	Parasitism  ParasitismConfig  `yaml:"parasitism"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// RunConfig holds run horizon settings.
type RunConfig struct {
	StartDate string `yaml:"start_date"` // YYYY-MM-DD
	Days      int    `yaml:"days"`
	Workers   int    `yaml:"workers"` // 0 = GOMAXPROCS
}

// LandscapeConfig describes the simulated area and the synthetic landscape generator.
type LandscapeConfig struct {
	Width            float64 `yaml:"width"`  // metres
	Height           float64 `yaml:"height"` // metres
	NestAreaSize     float64 `yaml:"nest_area_size"`
	DensityCellSize  float64 `yaml:"density_cell_size"`
	NestCapacity     int     `yaml:"nest_capacity"`     // nests per fully suitable area
	SuitableFraction float64 `yaml:"suitable_fraction"` // share of areas with nesting habitat
	NoiseScale       float64 `yaml:"noise_scale"`       // noise frequency per metre
	Octaves          int     `yaml:"octaves"`
	Persistence      float64 `yaml:"persistence"`

	PollenMaxQuantity float64 `yaml:"pollen_max_quantity"`
	PollenMaxQuality  float64 `yaml:"pollen_max_quality"`
	BloomPeakMonth    int     `yaml:"bloom_peak_month"`
	BloomWidthMonths  float64 `yaml:"bloom_width_months"`
	PollenFloor       float64 `yaml:"pollen_floor"` // seasonal multiplier outside the bloom
}

// WeatherConfig drives the synthetic weather series and the reading sanity bounds.
type WeatherConfig struct {
	MeanTemp       float64 `yaml:"mean_temp"`
	Amplitude      float64 `yaml:"amplitude"`
	WarmestDay     int     `yaml:"warmest_day"` // day of year
	NoiseAmplitude float64 `yaml:"noise_amplitude"`
	WindMean       float64 `yaml:"wind_mean"`
	WindNoise      float64 `yaml:"wind_noise"`
	RainChance     float64 `yaml:"rain_chance"` // probability an hour is wet
	RainAmount     float64 `yaml:"rain_amount"` // mm per wet hour

	ValidTempMin   float64 `yaml:"valid_temp_min"`
	ValidTempMax   float64 `yaml:"valid_temp_max"`
	ValidWindMax   float64 `yaml:"valid_wind_max"`
	ValidPrecipMax float64 `yaml:"valid_precip_max"`
}

// PopulationConfig holds the starting cohort.
type PopulationConfig struct {
	InitialCocoons        int     `yaml:"initial_cocoons"`
	InitialFemales        int     `yaml:"initial_females"`
	InitialProvisionMin   float64 `yaml:"initial_provision_min"`
	InitialProvisionMax   float64 `yaml:"initial_provision_max"`
	InitialChilling       float64 `yaml:"initial_chilling"`
	InitialPrewinterEnded bool    `yaml:"initial_prewinter_ended"`
}

// DegreeDayStage parameterises a degree-day driven stage.
type DegreeDayStage struct {
	Threshold      float64 `yaml:"threshold"`
	TotalDD        float64 `yaml:"total_dd"`
	DailyMortality float64 `yaml:"daily_mortality"`
}

// PrepupaConfig parameterises the lookup-table driven prepupal stage.
type PrepupaConfig struct {
	TotalDays      float64   `yaml:"total_days"`
	DailyMortality float64   `yaml:"daily_mortality"`
	Rates          []float64 `yaml:"rates"` // indexed by rounded temperature 0..41
}

// DevelopmentConfig holds brood development parameters.
type DevelopmentConfig struct {
	Egg     DegreeDayStage `yaml:"egg"`
	Larva   DegreeDayStage `yaml:"larva"`
	Prepupa PrepupaConfig  `yaml:"prepupa"`
	Pupa    DegreeDayStage `yaml:"pupa"`
}

// CocoonConfig holds the overwintering adult parameters.
type CocoonConfig struct {
	PrewinterThreshold     float64 `yaml:"prewinter_threshold"`
	PrewinterMortality     float64 `yaml:"prewinter_mortality"`
	ChillThreshold         float64 `yaml:"chill_threshold"`
	RequiredChilling       float64 `yaml:"required_chilling"`
	WinterMortConst        float64 `yaml:"winter_mort_const"`
	WinterMortChillSlope   float64 `yaml:"winter_mort_chill_slope"`
	WinterMortMassSlope    float64 `yaml:"winter_mort_mass_slope"`
	EmergenceTempThreshold float64 `yaml:"emergence_temp_threshold"`
	EmergenceConst         float64 `yaml:"emergence_const"`
	EmergenceSlope         float64 `yaml:"emergence_slope"`
}

// MonthDay is a calendar date without a year.
type MonthDay struct {
	Month int `yaml:"month"`
	Day   int `yaml:"day"`
}

// Matches reports whether t falls on this calendar date.
func (md MonthDay) Matches(t time.Time) bool {
	return int(t.Month()) == md.Month && t.Day() == md.Day
}

// Before reports whether t is strictly before this calendar date in t's year.
func (md MonthDay) Before(t time.Time) bool {
	if int(t.Month()) != md.Month {
		return int(t.Month()) < md.Month
	}
	return t.Day() < md.Day
}

// SeasonConfig holds the seasonal flag triggers.
type SeasonConfig struct {
	AutumnCheckFrom MonthDay `yaml:"autumn_check_from"`
	AutumnColdTemp  float64  `yaml:"autumn_cold_temp"`
	AutumnDailyDrop float64  `yaml:"autumn_daily_drop"`
	AutumnSharpDrop float64  `yaml:"autumn_sharp_drop"`
	Spring          MonthDay `yaml:"spring"`
	Reset           MonthDay `yaml:"reset"`
}

// FemaleConfig holds adult female behaviour parameters.
type FemaleConfig struct {
	PrenestingDays            int     `yaml:"prenesting_days"`
	Lifespan                  int     `yaml:"lifespan"`
	DailyMortality            float64 `yaml:"daily_mortality"`
	MassFromProvisionConst    float64 `yaml:"mass_from_provision_const"`
	MassFromProvisionSlope    float64 `yaml:"mass_from_provision_slope"`
	MassMin                   float64 `yaml:"mass_min"`
	MassMax                   float64 `yaml:"mass_max"`
	NestAttemptsPerDay        int     `yaml:"nest_attempts_per_day"`
	FailedDaysBeforeDispersal int     `yaml:"failed_days_before_dispersal"`
	NestSearchRadius          float64 `yaml:"nest_search_radius"`
	ClutchMin                 int     `yaml:"clutch_min"`
	ClutchMax                 int     `yaml:"clutch_max"`
	MaxCellsPerNest           int     `yaml:"max_cells_per_nest"`
	MaxCellDays               int     `yaml:"max_cell_days"`
	TotalNestsPossible        float64 `yaml:"total_nests_possible"`
	EggLoadSlope              float64 `yaml:"egg_load_slope"`
	EggLoadConst              float64 `yaml:"egg_load_const"`
	EggLoadJitter             float64 `yaml:"egg_load_jitter"`
	DispersalAlpha            float64 `yaml:"dispersal_alpha"`
	DispersalBeta             float64 `yaml:"dispersal_beta"`
	DispersalMaxDistance      float64 `yaml:"dispersal_max_distance"`
}

// ForageConfig holds foraging parameters.
type ForageConfig struct {
	MinFlightTemp            float64   `yaml:"min_flight_temp"`
	MaxFlightWind            float64   `yaml:"max_flight_wind"`
	MaxFlightPrecip          float64   `yaml:"max_flight_precip"`
	FirstHour                int       `yaml:"first_hour"`
	LastHour                 int       `yaml:"last_hour"` // exclusive
	TypicalRange             float64   `yaml:"typical_range"`
	MaxRange                 float64   `yaml:"max_range"`
	CoarseSteps              int       `yaml:"coarse_steps"`
	CoarseDirections         int       `yaml:"coarse_directions"`
	FineStep                 float64   `yaml:"fine_step"`
	CoarseFailuresBeforeFine int       `yaml:"coarse_failures_before_fine"`
	FlightSpeed              float64   `yaml:"flight_speed"` // metres per hour
	Competition              float64   `yaml:"competition"`
	DensityCoefficient       float64   `yaml:"density_coefficient"`
	PollenScoreToMg          float64   `yaml:"pollen_score_to_mg"`
	QuantityThresholds       []float64 `yaml:"quantity_thresholds"` // per month
	QualityThresholds        []float64 `yaml:"quality_thresholds"`  // per month
	EfficiencyMax            float64   `yaml:"efficiency_max"`
	EfficiencyHalfAge        float64   `yaml:"efficiency_half_age"`
	EfficiencyShape          float64   `yaml:"efficiency_shape"`
}

// SexRatioConfig parameterises the sex allocation and provision target tables.
type SexRatioConfig struct {
	AgeLogistic            []float64 `yaml:"age_logistic"`        // inflection, min, max, rate
	MassLinear             []float64 `yaml:"mass_linear"`         // slope, intercept
	CocoonAgeLogistic      []float64 `yaml:"cocoon_age_logistic"` // inflection, min, max, rate
	CocoonMassLinear       []float64 `yaml:"cocoon_mass_linear"`  // slope, intercept
	LifetimeCocoonMassLoss float64   `yaml:"lifetime_cocoon_mass_loss"`
	ProvisionPerCocoon     float64   `yaml:"provision_per_cocoon"`
	ProvisionBase          float64   `yaml:"provision_base"`
	MaleTargetProvision    float64   `yaml:"male_target_provision"`
	MaleMinProvision       float64   `yaml:"male_min_provision"`
	MassStep               float64   `yaml:"mass_step"`
	MaxAge                 int       `yaml:"max_age"`
}

// ParasitismConfig selects and parameterises the parasitism model.
type ParasitismConfig struct {
	Model                   string    `yaml:"model"` // probability | mechanistic
	DailyRate               float64   `yaml:"daily_rate"`
	BombylidFraction        float64   `yaml:"bombylid_fraction"`
	AttackRates             []float64 `yaml:"attack_rates"` // per taxon
	DailyMortality          []float64 `yaml:"daily_mortality"`
	Dispersal               []float64 `yaml:"dispersal"`
	StartLow                []float64 `yaml:"start_low"`
	StartHigh               []float64 `yaml:"start_high"`
	CellSize                float64   `yaml:"cell_size"`
	BombylidKillStage       string    `yaml:"bombylid_kill_stage"`
	CleptoparasiteKillStage string    `yaml:"cleptoparasite_kill_stage"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	LogEveryDays int `yaml:"log_every_days"`
	PerfWindow   int `yaml:"perf_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StartDate     time.Time
	NestAreaCols  int
	NestAreaRows  int
	DispersalMean float64 // expected dispersal distance in metres
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. Unknown keys and
// out-of-range values are rejected.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Decode into the same struct - only overwrites fields present in file
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the embedded default configuration without derived values.
// Tests use it as a base to tweak before calling Finalize.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := decodeStrict(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Finalize validates the configuration and computes derived values.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	// Validate has already parsed the date successfully
	c.Derived.StartDate, _ = time.Parse(time.DateOnly, c.Run.StartDate)
	c.Derived.NestAreaCols = int(math.Ceil(c.Landscape.Width / c.Landscape.NestAreaSize))
	c.Derived.NestAreaRows = int(math.Ceil(c.Landscape.Height / c.Landscape.NestAreaSize))
	f := c.Female
	c.Derived.DispersalMean = f.DispersalAlpha / (f.DispersalAlpha + f.DispersalBeta) * f.DispersalMaxDistance
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
