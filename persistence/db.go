// Package persistence stores run results in SQLite.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/osmia/config"
	"github.com/pthm-cable/osmia/telemetry"
)

// DB wraps a SQLite connection holding one or more runs. It implements
// telemetry.Sink for a single run started with BeginRun.
type DB struct {
	conn  *sqlx.DB
	runID string

	pending []telemetry.FemaleRecord
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close writes any buffered female records and closes the connection.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	var flushErr error
	if db.runID != "" && len(db.pending) > 0 {
		flushErr = db.flushFemales()
	}
	if err := db.conn.Close(); err != nil {
		return err
	}
	return flushErr
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS days (
		run_id TEXT NOT NULL REFERENCES runs(id),
		day INTEGER NOT NULL,
		date TEXT NOT NULL,
		temperature REAL NOT NULL,
		forage_hours REAL NOT NULL,
		eggs INTEGER NOT NULL,
		larvae INTEGER NOT NULL,
		prepupae INTEGER NOT NULL,
		pupae INTEGER NOT NULL,
		in_cocoon INTEGER NOT NULL,
		females INTEGER NOT NULL,
		eggs_laid INTEGER NOT NULL,
		female_eggs INTEGER NOT NULL,
		parasitised INTEGER NOT NULL,
		females_emerged INTEGER NOT NULL,
		males_emerged INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		active_nests INTEGER NOT NULL,
		pollen_mg REAL NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS females (
		run_id TEXT NOT NULL REFERENCES runs(id),
		id INTEGER NOT NULL,
		birth_day INTEGER NOT NULL,
		death_day INTEGER NOT NULL,
		cause TEXT NOT NULL,
		mass REAL NOT NULL,
		eggs_laid INTEGER NOT NULL,
		nests_completed INTEGER NOT NULL,
		dispersals INTEGER NOT NULL,
		pollen_mg REAL NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_females_death ON females(run_id, death_day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun registers a new run and makes it the target of subsequent writes.
func (db *DB) BeginRun(cfg *config.Config, seed int64) (string, error) {
	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	id := uuid.NewString()
	if _, err := db.conn.Exec(`INSERT INTO runs (id, started_at, seed, config_yaml) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), seed, string(cfgYAML)); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	db.runID = id
	slog.Info("run registered", "run_id", id, "seed", seed)
	return id, nil
}

// RunID returns the current run, or "" before BeginRun.
func (db *DB) RunID() string {
	return db.runID
}

// WriteDay stores the day's record together with the females that died
// since the previous day, in one transaction.
func (db *DB) WriteDay(s telemetry.DayStats) error {
	if db.runID == "" {
		return fmt.Errorf("write day %d: no run registered", s.Day)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO days
		(run_id, day, date, temperature, forage_hours, eggs, larvae, prepupae, pupae,
		 in_cocoon, females, eggs_laid, female_eggs, parasitised, females_emerged,
		 males_emerged, deaths, active_nests, pollen_mg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, s.Day, s.Date, s.Temperature, s.ForageHours,
		s.Eggs, s.Larvae, s.Prepupae, s.Pupae, s.InCocoon, s.Females,
		s.EggsLaid, s.FemaleEggs, s.Parasitised, s.FemalesEmerged,
		s.MalesEmerged, s.Deaths(), s.ActiveNests, s.PollenCollected,
	)
	if err != nil {
		return fmt.Errorf("insert day %d: %w", s.Day, err)
	}
	if err := db.insertFemales(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.pending = db.pending[:0]
	return nil
}

// WriteFemale buffers the record until the next WriteDay.
func (db *DB) WriteFemale(r telemetry.FemaleRecord) error {
	db.pending = append(db.pending, r)
	return nil
}

func (db *DB) flushFemales() error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := db.insertFemales(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.pending = db.pending[:0]
	return nil
}

func (db *DB) insertFemales(tx *sqlx.Tx) error {
	if len(db.pending) == 0 {
		return nil
	}
	stmt, err := tx.Preparex(`INSERT INTO females
		(run_id, id, birth_day, death_day, cause, mass, eggs_laid, nests_completed, dispersals, pollen_mg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range db.pending {
		_, err := stmt.Exec(db.runID, r.ID, r.BirthDay, r.DeathDay, r.Cause, r.Mass,
			r.EggsLaid, r.NestsCompleted, r.Dispersals, r.PollenCollected)
		if err != nil {
			return fmt.Errorf("insert female %d: %w", r.ID, err)
		}
	}
	return nil
}

// DayRow is a stored day as read back for reporting.
type DayRow struct {
	Day         int     `db:"day"`
	Date        string  `db:"date"`
	Females     int     `db:"females"`
	InCocoon    int     `db:"in_cocoon"`
	EggsLaid    int     `db:"eggs_laid"`
	Emerged     int     `db:"females_emerged"`
	Deaths      int     `db:"deaths"`
	PollenMg    float64 `db:"pollen_mg"`
	ActiveNests int     `db:"active_nests"`
}

// Days returns the stored days of a run in order.
func (db *DB) Days(runID string) ([]DayRow, error) {
	var rows []DayRow
	err := db.conn.Select(&rows,
		`SELECT day, date, females, in_cocoon, eggs_laid, females_emerged, deaths, pollen_mg, active_nests
		 FROM days WHERE run_id = ? ORDER BY day`, runID)
	return rows, err
}

// TotalEggs returns the eggs laid over a run.
func (db *DB) TotalEggs(runID string) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COALESCE(SUM(eggs_laid), 0) FROM days WHERE run_id = ?", runID)
	return n, err
}

// FemaleCount returns the number of female records stored for a run.
func (db *DB) FemaleCount(runID string) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM females WHERE run_id = ?", runID)
	return n, err
}
