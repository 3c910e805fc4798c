package systems

import (
	"time"

	"github.com/pthm-cable/osmia/config"
)

// SeasonFlags are the population-wide triggers consulted by cocooned adults.
type SeasonFlags struct {
	PrewinterEnded  bool
	OverwinterEnded bool
}

// Day is the read-only context for one simulated day. It is built once by
// the scheduler and shared by every worker.
type Day struct {
	Index         int
	Date          time.Time
	Month         int // 1..12
	Temperature   float64
	ForageHours   float64
	PrepupalRate  float64
	Season        SeasonFlags
	LateEmergence bool // the annual reset date: cocoons still waiting fail
}

// autumnWindow is the number of daily temperatures the autumn rule inspects.
const autumnWindow = 6

// SeasonState owns the seasonal flags. It is only mutated at end of day.
type SeasonState struct {
	SeasonFlags

	cfg   config.SeasonConfig
	temps [autumnWindow]float64 // ring buffer of daily temperatures
	next  int
	seen  int
}

// NewSeasonState creates the season tracker for a run starting on start.
// The overwinter flag is set when the run starts between the spring and
// reset dates.
func NewSeasonState(cfg config.SeasonConfig, start time.Time, prewinterEnded bool) *SeasonState {
	s := &SeasonState{cfg: cfg}
	s.PrewinterEnded = prewinterEnded
	s.OverwinterEnded = !cfg.Spring.Before(start) && cfg.Reset.Before(start)
	return s
}

// Flags returns a copy of the current flags for the parallel phase.
func (s *SeasonState) Flags() SeasonFlags {
	return s.SeasonFlags
}

// IsLateEmergence reports whether date is the annual reset date.
func (s *SeasonState) IsLateEmergence(date time.Time) bool {
	return s.cfg.Reset.Matches(date)
}

// recent returns the temperature k days before the latest one.
func (s *SeasonState) recent(k int) float64 {
	return s.temps[(s.next-1-k+2*autumnWindow)%autumnWindow]
}

// EndOfDay records today's temperature and updates the flags.
func (s *SeasonState) EndOfDay(date time.Time, temp float64) {
	s.temps[s.next] = temp
	s.next = (s.next + 1) % autumnWindow
	if s.seen < autumnWindow {
		s.seen++
	}

	if s.cfg.Reset.Matches(date) {
		s.PrewinterEnded = false
		s.OverwinterEnded = false
		return
	}
	if s.cfg.Spring.Matches(date) {
		s.OverwinterEnded = true
	}
	if !s.PrewinterEnded && !s.cfg.AutumnCheckFrom.Before(date) && s.seen == autumnWindow {
		s.PrewinterEnded = s.autumnArrived()
	}
}

// autumnArrived applies the cold-spell rule: three cold days in a row
// following either two successive daily drops or a single sharp drop.
func (s *SeasonState) autumnArrived() bool {
	t0, t1, t2, t3, t4, t5 := s.recent(0), s.recent(1), s.recent(2), s.recent(3), s.recent(4), s.recent(5)
	cold := s.cfg.AutumnColdTemp
	if t0 >= cold || t1 >= cold || t2 >= cold {
		return false
	}
	steady := t5-t4 > s.cfg.AutumnDailyDrop && t4-t3 > s.cfg.AutumnDailyDrop
	sharp := t3 < cold && t5-t4 >= s.cfg.AutumnSharpDrop
	return steady || sharp
}
