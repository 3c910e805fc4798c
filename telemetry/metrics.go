package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/osmia/components"
)

// Metrics exposes the latest day as Prometheus gauges and running totals
// as counters. It implements Sink.
type Metrics struct {
	registry *prometheus.Registry

	day         prometheus.Gauge
	temperature prometheus.Gauge
	population  *prometheus.GaugeVec
	nests       prometheus.Gauge
	parasitoids *prometheus.GaugeVec

	eggs     *prometheus.CounterVec
	emerged  *prometheus.CounterVec
	deaths   *prometheus.CounterVec
	pollen   prometheus.Counter
	lifespan prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		day: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osmia_day", Help: "Index of the last completed simulation day.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osmia_temperature_celsius", Help: "Mean air temperature of the last day.",
		}),
		population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osmia_individuals", Help: "Live individuals by stage.",
		}, []string{"stage"}),
		nests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osmia_active_nests", Help: "Nests currently held by females.",
		}),
		parasitoids: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osmia_parasitoids", Help: "Total parasitoid population by taxon.",
		}, []string{"taxon"}),
		eggs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osmia_eggs_laid_total", Help: "Eggs laid by sex.",
		}, []string{"sex"}),
		emerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osmia_emerged_total", Help: "Adults emerged by sex.",
		}, []string{"sex"}),
		deaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osmia_deaths_total", Help: "Deaths by cause.",
		}, []string{"cause"}),
		pollen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osmia_pollen_mg_total", Help: "Provision mass collected.",
		}),
		lifespan: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "osmia_female_lifespan_days",
			Help:    "Adult female lifespan.",
			Buckets: prometheus.LinearBuckets(5, 5, 12),
		}),
	}
	m.registry.MustRegister(
		m.day, m.temperature, m.population, m.nests, m.parasitoids,
		m.eggs, m.emerged, m.deaths, m.pollen, m.lifespan,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteDay updates the gauges and adds the day's events to the counters.
func (m *Metrics) WriteDay(s DayStats) error {
	if m == nil {
		return nil
	}
	m.day.Set(float64(s.Day))
	m.temperature.Set(s.Temperature)
	for st, n := range map[components.Stage]int{
		components.StageEgg:      s.Eggs,
		components.StageLarva:    s.Larvae,
		components.StagePrepupa:  s.Prepupae,
		components.StagePupa:     s.Pupae,
		components.StageInCocoon: s.InCocoon,
		components.StageFemale:   s.Females,
	} {
		m.population.WithLabelValues(st.String()).Set(float64(n))
	}
	m.nests.Set(float64(s.ActiveNests))
	m.parasitoids.WithLabelValues(components.ParasitoidBombylid.String()).Set(s.Bombylids)
	m.parasitoids.WithLabelValues(components.ParasitoidCleptoparasite.String()).Set(s.Cleptoparasites)

	m.eggs.WithLabelValues(components.SexFemale.String()).Add(float64(s.FemaleEggs))
	m.eggs.WithLabelValues(components.SexMale.String()).Add(float64(s.EggsLaid - s.FemaleEggs))
	m.emerged.WithLabelValues(components.SexFemale.String()).Add(float64(s.FemalesEmerged))
	m.emerged.WithLabelValues(components.SexMale.String()).Add(float64(s.MalesEmerged))
	for cause, n := range map[components.DeathCause]int{
		components.CauseMortality:       s.DeathsMortality,
		components.CauseWinter:          s.DeathsWinter,
		components.CauseFailedEmergence: s.DeathsFailedEmergence,
		components.CauseParasitoid:      s.DeathsParasitoid,
		components.CauseOldAge:          s.DeathsOldAge,
		components.CauseEggsExhausted:   s.DeathsEggsExhausted,
	} {
		m.deaths.WithLabelValues(cause.String()).Add(float64(n))
	}
	m.pollen.Add(s.PollenCollected)
	return nil
}

// WriteFemale observes the female's lifespan.
func (m *Metrics) WriteFemale(r FemaleRecord) error {
	if m == nil {
		return nil
	}
	m.lifespan.Observe(float64(r.Lifespan()))
	return nil
}
