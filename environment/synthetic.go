package environment

import (
	"math"
	"math/rand/v2"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/osmia/config"
)

// Synthetic is a seeded procedural environment: a sinusoidal climate with
// noise, a fractal pollen landscape and a fractal nesting-habitat map.
// It implements Provider and LandCover and is safe for concurrent reads.
type Synthetic struct {
	land    config.LandscapeConfig
	weather config.WeatherConfig
	seed    uint64

	quantityNoise opensimplex.Noise
	qualityNoise  opensimplex.Noise
	nestNoise     opensimplex.Noise
	climateNoise  opensimplex.Noise
	windNoise     opensimplex.Noise

	areaCols int
	seasonal [13]float64 // bloom multiplier per month, 1-based
}

// NewSynthetic creates a synthetic environment for the configured landscape.
func NewSynthetic(cfg *config.Config, seed int64) *Synthetic {
	s := &Synthetic{
		land:          cfg.Landscape,
		weather:       cfg.Weather,
		seed:          uint64(seed),
		quantityNoise: opensimplex.NewNormalized(seed),
		qualityNoise:  opensimplex.NewNormalized(seed + 1),
		nestNoise:     opensimplex.NewNormalized(seed + 2),
		climateNoise:  opensimplex.NewNormalized(seed + 3),
		windNoise:     opensimplex.NewNormalized(seed + 4),
		areaCols:      cfg.Derived.NestAreaCols,
	}
	l := cfg.Landscape
	for m := 1; m <= 12; m++ {
		d := float64(m - l.BloomPeakMonth)
		s.seasonal[m] = math.Max(l.PollenFloor, math.Exp(-d*d/(2*l.BloomWidthMonths*l.BloomWidthMonths)))
	}
	return s
}

// octaveNoise generates fractal noise by layering multiple frequencies.
// The result stays in [0, 1] for normalized noise.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func (s *Synthetic) field(noise opensimplex.Noise, x, y float64) float64 {
	return octaveNoise(noise, x, y, s.land.Octaves, s.land.NoiseScale, s.land.Persistence)
}

// DailyWeather implements WeatherSource. Every date has weather.
func (s *Synthetic) DailyWeather(date time.Time) (Weather, error) {
	w := s.weather
	dayNum := float64(date.Unix() / 86400)
	phase := 2 * math.Pi * float64(date.YearDay()-w.WarmestDay) / 365.25

	var out Weather
	out.Temperature = w.MeanTemp + w.Amplitude*math.Cos(phase) +
		w.NoiseAmplitude*(2*s.climateNoise.Eval2(dayNum*0.15, 0)-1)

	rng := rand.New(rand.NewPCG(s.seed, uint64(date.Unix()/86400)))
	for h := range HoursPerDay {
		wind := w.WindMean + w.WindNoise*(2*s.windNoise.Eval2(dayNum*0.2, float64(h)*0.25)-1)
		out.Wind[h] = math.Max(0, wind)
		if rng.Float64() < w.RainChance {
			out.Precip[h] = w.RainAmount * (0.5 + rng.Float64())
		}
	}
	return out, nil
}

// PollenAvailability implements PollenSource.
func (s *Synthetic) PollenAvailability(x, y float64, month int) (quantity, quality float64) {
	if x < 0 || y < 0 || x >= s.land.Width || y >= s.land.Height || month < 1 || month > 12 {
		return 0, 0
	}
	quantity = s.land.PollenMaxQuantity * s.field(s.quantityNoise, x, y) * s.seasonal[month]
	quality = s.land.PollenMaxQuality * s.field(s.qualityNoise, x, y)
	return quantity, quality
}

// NestingSuitability implements LandCover. Areas whose habitat value falls
// in the top SuitableFraction of the range are suitable; capacity scales
// with how far above the cut they are.
func (s *Synthetic) NestingSuitability(area int) (capacity int, suitable bool) {
	size := s.land.NestAreaSize
	cx := (float64(area%s.areaCols) + 0.5) * size
	cy := (float64(area/s.areaCols) + 0.5) * size
	v := s.field(s.nestNoise, cx, cy)

	frac := s.land.SuitableFraction
	cut := 1 - frac
	if frac <= 0 || v < cut {
		return 0, false
	}
	capacity = int(math.Round(float64(s.land.NestCapacity) * (v - cut) / frac))
	return max(capacity, 1), true
}
