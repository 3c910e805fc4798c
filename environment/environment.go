// Package environment provides the weather, pollen and land-cover inputs the
// simulation reads each day, behind small interfaces so that synthetic and
// recorded sources can be swapped.
package environment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/osmia/config"
)

// HoursPerDay is the number of hourly readings in a Weather record.
const HoursPerDay = 24

var (
	// ErrMissingDay is returned when a source has no record for a date.
	ErrMissingDay = errors.New("no weather for day")
	// ErrOutOfRange is returned when a reading is NaN or outside its sanity bounds.
	ErrOutOfRange = errors.New("weather reading out of range")
)

// Weather is one day of weather: a daily mean temperature (°C) plus
// hourly wind speed (m/s) and precipitation (mm).
type Weather struct {
	Temperature float64
	Wind        [HoursPerDay]float64
	Precip      [HoursPerDay]float64
}

// WeatherSource supplies daily weather.
type WeatherSource interface {
	DailyWeather(date time.Time) (Weather, error)
}

// PollenSource supplies pollen availability at a point for a month (1..12).
type PollenSource interface {
	PollenAvailability(x, y float64, month int) (quantity, quality float64)
}

// Provider is the full environment collaborator.
type Provider interface {
	WeatherSource
	PollenSource
}

// LandCover reports the static nesting capacity of a nest area.
type LandCover interface {
	NestingSuitability(area int) (capacity int, suitable bool)
}

// Combine joins a weather source and a pollen source into a Provider.
func Combine(w WeatherSource, p PollenSource) Provider {
	return combined{WeatherSource: w, PollenSource: p}
}

type combined struct {
	WeatherSource
	PollenSource
}

// Validate checks every reading against the configured sanity bounds.
func Validate(w Weather, date time.Time, bounds config.WeatherConfig) error {
	day := date.Format(time.DateOnly)
	if math.IsNaN(w.Temperature) || w.Temperature < bounds.ValidTempMin || w.Temperature > bounds.ValidTempMax {
		return fmt.Errorf("%s: temperature %v: %w", day, w.Temperature, ErrOutOfRange)
	}
	for h := range HoursPerDay {
		if v := w.Wind[h]; math.IsNaN(v) || v < 0 || v > bounds.ValidWindMax {
			return fmt.Errorf("%s hour %d: wind %v: %w", day, h, v, ErrOutOfRange)
		}
		if v := w.Precip[h]; math.IsNaN(v) || v < 0 || v > bounds.ValidPrecipMax {
			return fmt.Errorf("%s hour %d: precipitation %v: %w", day, h, v, ErrOutOfRange)
		}
	}
	return nil
}

// ForageHours counts the hours in [first, last) fit for flight: the day is
// warm enough and the hour is calm and dry enough.
func ForageHours(w Weather, f config.ForageConfig) int {
	if w.Temperature < f.MinFlightTemp {
		return 0
	}
	hours := 0
	for h := max(f.FirstHour, 0); h < min(f.LastHour, HoursPerDay); h++ {
		if w.Wind[h] <= f.MaxFlightWind && w.Precip[h] <= f.MaxFlightPrecip {
			hours++
		}
	}
	return hours
}
