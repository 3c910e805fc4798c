package environment

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/osmia/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestValidate(t *testing.T) {
	cfg := testConfig(t)
	date := time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(w *Weather)
		wantErr bool
	}{
		{"ok", func(w *Weather) {}, false},
		{"nan temperature", func(w *Weather) { w.Temperature = math.NaN() }, true},
		{"too hot", func(w *Weather) { w.Temperature = 80 }, true},
		{"negative wind", func(w *Weather) { w.Wind[3] = -1 }, true},
		{"flood", func(w *Weather) { w.Precip[12] = 1000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Weather{Temperature: 12}
			tt.mutate(&w)
			err := Validate(w, date, cfg.Weather)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutOfRange) {
				t.Errorf("error %v does not wrap ErrOutOfRange", err)
			}
			if err != nil && !strings.Contains(err.Error(), "2020-04-01") {
				t.Errorf("error %q does not name the day", err)
			}
		})
	}
}

func TestForageHours(t *testing.T) {
	cfg := testConfig(t)
	f := cfg.Forage

	calm := Weather{Temperature: 20}
	if got, want := ForageHours(calm, f), f.LastHour-f.FirstHour; got != want {
		t.Errorf("calm day: got %d hours, want %d", got, want)
	}

	cold := Weather{Temperature: f.MinFlightTemp - 1}
	if got := ForageHours(cold, f); got != 0 {
		t.Errorf("cold day: got %d hours, want 0", got)
	}

	mixed := calm
	mixed.Wind[f.FirstHour] = f.MaxFlightWind + 1
	mixed.Precip[f.FirstHour+1] = f.MaxFlightPrecip + 1
	mixed.Precip[0] = 100 // outside the window
	if got, want := ForageHours(mixed, f), f.LastHour-f.FirstHour-2; got != want {
		t.Errorf("mixed day: got %d hours, want %d", got, want)
	}
}

// hourlyCSV writes a full day of rows for each date. Hour 12 of every day
// reads 10 degrees, wind 2 and 0.5 mm; the other hours read temp, calm and dry.
func hourlyCSV(temp float64, dates ...string) string {
	var b strings.Builder
	b.WriteString("date,hour,temperature,wind,precip\n")
	for _, d := range dates {
		for h := range HoursPerDay {
			if h == 12 {
				fmt.Fprintf(&b, "%s,%d,10,2,0.5\n", d, h)
				continue
			}
			fmt.Fprintf(&b, "%s,%d,%g,0,0\n", d, h, temp)
		}
	}
	return b.String()
}

func TestSeries(t *testing.T) {
	s, err := ReadSeries(strings.NewReader(hourlyCSV(4, "2020-03-01", "2020-03-02")))
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	w, err := s.DailyWeather(time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DailyWeather: %v", err)
	}
	if want := (23*4 + 10) / 24.0; math.Abs(w.Temperature-want) > 1e-9 {
		t.Errorf("temperature = %v, want mean %v", w.Temperature, want)
	}
	if w.Wind[12] != 2 || w.Precip[12] != 0.5 {
		t.Errorf("hour 12 = wind %v precip %v, want 2 and 0.5", w.Wind[12], w.Precip[12])
	}

	_, err = s.DailyWeather(time.Date(2020, 3, 3, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrMissingDay) {
		t.Errorf("missing day error = %v, want ErrMissingDay", err)
	}
}

func TestSeriesRejectsIncompleteInput(t *testing.T) {
	full := hourlyCSV(4, "2020-03-01")
	lines := strings.SplitAfter(full, "\n")

	tests := []struct {
		name string
		csv  string
		want error
	}{
		{"hour out of range", "date,hour,temperature,wind,precip\n2020-03-01,24,4,1,0\n", ErrOutOfRange},
		{"single hour", "date,hour,temperature,wind,precip\n2020-03-01,6,20,0,0\n", ErrMissingDay},
		{"one hour dropped", strings.Join(append(lines[:7:7], lines[8:]...), ""), ErrMissingDay},
		{"hour repeated", full + "2020-03-01,0,30,0,0\n", ErrOutOfRange},
		{"gap between days", hourlyCSV(4, "2020-03-01", "2020-03-03"), ErrMissingDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSeries(strings.NewReader(tt.csv)); !errors.Is(err, tt.want) {
				t.Errorf("ReadSeries error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSynthetic(t *testing.T) {
	cfg := testConfig(t)
	s := NewSynthetic(cfg, 7)

	t.Run("weather is valid and repeatable", func(t *testing.T) {
		start := cfg.Derived.StartDate
		for d := 0; d < 365; d += 7 {
			date := start.AddDate(0, 0, d)
			w, err := s.DailyWeather(date)
			if err != nil {
				t.Fatalf("DailyWeather(%s): %v", date.Format(time.DateOnly), err)
			}
			if err := Validate(w, date, cfg.Weather); err != nil {
				t.Fatalf("synthetic weather invalid: %v", err)
			}
			again, _ := s.DailyWeather(date)
			if again != w {
				t.Fatalf("DailyWeather(%s) not repeatable", date.Format(time.DateOnly))
			}
		}
	})

	t.Run("summer warmer than winter", func(t *testing.T) {
		jan, _ := s.DailyWeather(time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC))
		jul, _ := s.DailyWeather(time.Date(2020, 7, 15, 0, 0, 0, 0, time.UTC))
		if jul.Temperature <= jan.Temperature {
			t.Errorf("July %v not warmer than January %v", jul.Temperature, jan.Temperature)
		}
	})

	t.Run("pollen peaks at bloom", func(t *testing.T) {
		x, y := cfg.Landscape.Width/2, cfg.Landscape.Height/2
		peak, _ := s.PollenAvailability(x, y, cfg.Landscape.BloomPeakMonth)
		off, _ := s.PollenAvailability(x, y, (cfg.Landscape.BloomPeakMonth+5)%12+1)
		if peak < off {
			t.Errorf("peak-month pollen %v below off-season %v", peak, off)
		}
		if q, _ := s.PollenAvailability(-1, y, 5); q != 0 {
			t.Errorf("pollen outside landscape = %v, want 0", q)
		}
	})

	t.Run("nesting capacity bounded", func(t *testing.T) {
		areas := cfg.Derived.NestAreaCols * cfg.Derived.NestAreaRows
		suitable := 0
		for a := 0; a < areas; a++ {
			c, ok := s.NestingSuitability(a)
			if ok {
				suitable++
				if c < 1 || c > cfg.Landscape.NestCapacity {
					t.Fatalf("area %d capacity %d outside [1, %d]", a, c, cfg.Landscape.NestCapacity)
				}
			} else if c != 0 {
				t.Fatalf("unsuitable area %d has capacity %d", a, c)
			}
		}
		if suitable == 0 {
			t.Error("no suitable nest areas")
		}
	})
}
