package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/osmia/config"
)

// csvTable is an append-only CSV file that writes its header with the first row.
type csvTable struct {
	file          *os.File
	headerWritten bool
}

func openTable(dir, name string) (*csvTable, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvTable{file: f}, nil
}

func (t *csvTable) write(records any) error {
	if !t.headerWritten {
		if err := gocsv.Marshal(records, t.file); err != nil {
			return err
		}
		t.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, t.file)
}

// OutputManager handles run output as CSV tables in one directory.
type OutputManager struct {
	dir     string
	daily   *csvTable
	females *csvTable
	perf    *csvTable
	stages  *csvTable
	marks   *csvTable
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, t := range []struct {
		dst  **csvTable
		name string
	}{
		{&om.daily, "daily.csv"},
		{&om.females, "females.csv"},
		{&om.perf, "perf.csv"},
		{&om.stages, "stages.csv"},
		{&om.marks, "bookmarks.csv"},
	} {
		table, err := openTable(dir, t.name)
		if err != nil {
			om.Close()
			return nil, err
		}
		*t.dst = table
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteDay writes a day record to daily.csv.
func (om *OutputManager) WriteDay(stats DayStats) error {
	if om == nil {
		return nil
	}
	if err := om.daily.write([]DayStats{stats}); err != nil {
		return fmt.Errorf("writing daily: %w", err)
	}
	return nil
}

// WriteFemale writes a dead female's record to females.csv.
func (om *OutputManager) WriteFemale(r FemaleRecord) error {
	if om == nil {
		return nil
	}
	if err := om.females.write([]FemaleRecord{r}); err != nil {
		return fmt.Errorf("writing females: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteStages writes stage-length summaries to stages.csv.
func (om *OutputManager) WriteStages(rows []StageStats) error {
	if om == nil || len(rows) == 0 {
		return nil
	}
	if err := om.stages.write(rows); err != nil {
		return fmt.Errorf("writing stages: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.marks.write([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, t := range []*csvTable{om.daily, om.females, om.perf, om.stages, om.marks} {
		if t == nil {
			continue
		}
		if err := t.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
