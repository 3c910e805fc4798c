package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstEmergence  BookmarkType = "first_emergence"
	BookmarkFirstEgg        BookmarkType = "first_egg"
	BookmarkPrewinterEnded  BookmarkType = "prewinter_ended"
	BookmarkOverwinterEnded BookmarkType = "overwinter_ended"
	BookmarkFemaleCrash     BookmarkType = "female_crash"
	BookmarkExtinction      BookmarkType = "extinction"
)

// Bookmark marks a notable day of the run.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Day         int          `csv:"day"`
	Date        string       `csv:"date"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"day", b.Day,
		"date", b.Date,
		"description", b.Description,
	)
}

// BookmarkDetector watches the daily records for season transitions and
// population events. First-of-season events re-arm when the year's
// flags reset.
type BookmarkDetector struct {
	prev    DayStats
	hasPrev bool

	emergedThisYear bool
	laidThisYear    bool
	femalePeak      int
	extinct         bool
}

// NewBookmarkDetector creates a detector.
func NewBookmarkDetector() *BookmarkDetector {
	return &BookmarkDetector{}
}

// Check analyzes the latest day and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(s DayStats) []Bookmark {
	var out []Bookmark
	mark := func(t BookmarkType, format string, args ...any) {
		out = append(out, Bookmark{Type: t, Day: s.Day, Date: s.Date, Description: fmt.Sprintf(format, args...)})
	}

	if bd.hasPrev {
		if s.PrewinterEnded && !bd.prev.PrewinterEnded {
			mark(BookmarkPrewinterEnded, "Autumn cooling detected at %.1f°C", s.Temperature)
		}
		if s.OverwinterEnded && !bd.prev.OverwinterEnded {
			mark(BookmarkOverwinterEnded, "Overwintering ended with %d in cocoon", s.InCocoon)
		}
		if !s.PrewinterEnded && !s.OverwinterEnded && (bd.prev.PrewinterEnded || bd.prev.OverwinterEnded) {
			bd.emergedThisYear = false
			bd.laidThisYear = false
			bd.femalePeak = 0
		}
	}

	if !bd.emergedThisYear && s.FemalesEmerged > 0 {
		bd.emergedThisYear = true
		mark(BookmarkFirstEmergence, "%d females emerged", s.FemalesEmerged)
	}
	if !bd.laidThisYear && s.EggsLaid > 0 {
		bd.laidThisYear = true
		mark(BookmarkFirstEgg, "%d eggs laid", s.EggsLaid)
	}

	if s.Females > bd.femalePeak {
		bd.femalePeak = s.Females
	} else if bd.femalePeak >= 20 && s.Females > 0 && float64(s.Females) < 0.5*float64(bd.femalePeak) {
		// Only early in the flight season; the late-season decline is expected.
		if s.FemalesEmerged > 0 {
			mark(BookmarkFemaleCrash, "Females fell to %d from peak %d during emergence", s.Females, bd.femalePeak)
			bd.femalePeak = s.Females
		}
	}

	if !bd.extinct && s.Population() == 0 && bd.hasPrev && bd.prev.Population() > 0 {
		bd.extinct = true
		mark(BookmarkExtinction, "Population reached zero after %d", bd.prev.Population())
	}

	bd.prev = s
	bd.hasPrev = true
	return out
}
