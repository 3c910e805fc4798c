package components

// Female holds adult female behaviour state.
type Female struct {
	State    FemaleState
	BirthDay int // simulation day of emergence
	Mass     float64

	EggLoad        int // eggs she can still lay in her lifetime
	EggsLaid       int
	NestsCompleted int
	ClutchPlanned  int
	ClutchLaid     int
	Nest           *Nest

	FailedSearchDays int
	CoarseFailures   int
	Dispersals       int
	PollenCollected  float64 // mg over her lifetime
}

// HasNest reports whether the female currently holds a nest.
func (f *Female) HasNest() bool {
	return f.Nest != nil
}
