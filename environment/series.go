package environment

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gocarina/gocsv"
)

// HourRecord is one row of an hourly weather CSV:
//
//	date,hour,temperature,wind,precip
//	2020-03-01,0,4.2,3.1,0
type HourRecord struct {
	Date        string  `csv:"date"`
	Hour        int     `csv:"hour"`
	Temperature float64 `csv:"temperature"`
	Wind        float64 `csv:"wind"`
	Precip      float64 `csv:"precip"`
}

// Series is a recorded weather series keyed by calendar day. Every day
// carries all 24 hourly readings and the days are contiguous. The daily
// temperature is the mean of the hourly readings.
type Series struct {
	days map[string]Weather
}

// LoadSeries reads an hourly weather CSV file.
func LoadSeries(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening weather file: %w", err)
	}
	defer f.Close()
	return ReadSeries(f)
}

// ReadSeries parses hourly weather records from r. A duplicated hour is
// ErrOutOfRange; a day with missing hours or a gap between days is
// ErrMissingDay.
func ReadSeries(r io.Reader) (*Series, error) {
	var rows []HourRecord
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parsing weather csv: %w", err)
	}

	days := make(map[string]Weather)
	seen := make(map[string]*[HoursPerDay]bool)
	var first, last time.Time
	for i, row := range rows {
		date, err := time.Parse(time.DateOnly, row.Date)
		if err != nil {
			return nil, fmt.Errorf("weather row %d: %w", i+1, err)
		}
		if row.Hour < 0 || row.Hour >= HoursPerDay {
			return nil, fmt.Errorf("weather row %d: hour %d: %w", i+1, row.Hour, ErrOutOfRange)
		}
		hours := seen[row.Date]
		if hours == nil {
			hours = new([HoursPerDay]bool)
			seen[row.Date] = hours
		}
		if hours[row.Hour] {
			return nil, fmt.Errorf("weather row %d: %s hour %d repeated: %w", i+1, row.Date, row.Hour, ErrOutOfRange)
		}
		hours[row.Hour] = true

		w := days[row.Date]
		w.Temperature += row.Temperature
		w.Wind[row.Hour] = row.Wind
		w.Precip[row.Hour] = row.Precip
		days[row.Date] = w

		if first.IsZero() || date.Before(first) {
			first = date
		}
		if date.After(last) {
			last = date
		}
	}

	for d, hours := range seen {
		for h, ok := range hours {
			if !ok {
				return nil, fmt.Errorf("%s hour %d: %w", d, h, ErrMissingDay)
			}
		}
		w := days[d]
		w.Temperature /= HoursPerDay
		days[d] = w
	}
	for d := first; !first.IsZero() && !d.After(last); d = d.AddDate(0, 0, 1) {
		if _, ok := days[d.Format(time.DateOnly)]; !ok {
			return nil, fmt.Errorf("%s: gap in series: %w", d.Format(time.DateOnly), ErrMissingDay)
		}
	}
	return &Series{days: days}, nil
}

// Len returns the number of days in the series.
func (s *Series) Len() int {
	return len(s.days)
}

// DailyWeather implements WeatherSource.
func (s *Series) DailyWeather(date time.Time) (Weather, error) {
	day := date.Format(time.DateOnly)
	w, ok := s.days[day]
	if !ok {
		return Weather{}, fmt.Errorf("%s: %w", day, ErrMissingDay)
	}
	return w, nil
}
