package telemetry

import "testing"

func hasBookmark(bs []Bookmark, typ BookmarkType) bool {
	for _, b := range bs {
		if b.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_SeasonFlags(t *testing.T) {
	bd := NewBookmarkDetector()

	bd.Check(DayStats{Day: 0, InCocoon: 50})
	if bs := bd.Check(DayStats{Day: 1, InCocoon: 50, PrewinterEnded: true}); !hasBookmark(bs, BookmarkPrewinterEnded) {
		t.Error("expected prewinter_ended bookmark")
	}
	if bs := bd.Check(DayStats{Day: 2, InCocoon: 50, PrewinterEnded: true}); len(bs) != 0 {
		t.Errorf("flag held steady but got %v", bs)
	}
	if bs := bd.Check(DayStats{Day: 3, InCocoon: 50, PrewinterEnded: true, OverwinterEnded: true}); !hasBookmark(bs, BookmarkOverwinterEnded) {
		t.Error("expected overwinter_ended bookmark")
	}
}

func TestBookmarkDetector_FirstEventsRearm(t *testing.T) {
	bd := NewBookmarkDetector()

	if bs := bd.Check(DayStats{Day: 0, Females: 3, FemalesEmerged: 3, OverwinterEnded: true}); !hasBookmark(bs, BookmarkFirstEmergence) {
		t.Error("expected first_emergence bookmark")
	}
	if bs := bd.Check(DayStats{Day: 1, Females: 5, FemalesEmerged: 2, OverwinterEnded: true}); hasBookmark(bs, BookmarkFirstEmergence) {
		t.Error("first_emergence fired twice in one year")
	}
	bd.Check(DayStats{Day: 2, Eggs: 1, EggsLaid: 1})
	if bs := bd.Check(DayStats{Day: 3, Females: 2, FemalesEmerged: 2, OverwinterEnded: true}); !hasBookmark(bs, BookmarkFirstEmergence) {
		t.Error("first_emergence did not re-arm after the yearly reset")
	}
}

func TestBookmarkDetector_Extinction(t *testing.T) {
	bd := NewBookmarkDetector()

	bd.Check(DayStats{Day: 0, Females: 2})
	bs := bd.Check(DayStats{Day: 1})
	if !hasBookmark(bs, BookmarkExtinction) {
		t.Fatal("expected extinction bookmark")
	}
	if bs := bd.Check(DayStats{Day: 2}); hasBookmark(bs, BookmarkExtinction) {
		t.Error("extinction fired twice")
	}
}

func TestBookmarkDetector_FemaleCrash(t *testing.T) {
	bd := NewBookmarkDetector()

	bd.Check(DayStats{Day: 0, Females: 100, FemalesEmerged: 100})
	if bs := bd.Check(DayStats{Day: 1, Females: 40, FemalesEmerged: 1}); !hasBookmark(bs, BookmarkFemaleCrash) {
		t.Error("expected female_crash bookmark")
	}
	if bs := bd.Check(DayStats{Day: 2, Females: 30}); hasBookmark(bs, BookmarkFemaleCrash) {
		t.Error("late-season decline flagged as a crash")
	}
}
