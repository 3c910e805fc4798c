package components

// String returns the display name for a Stage.
func (s Stage) String() string {
	names := StageNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// StageNames returns the display names for all stages.
// The order matches the Stage constants.
func StageNames() []string {
	return []string{"egg", "larva", "prepupa", "pupa", "in_cocoon", "female"}
}

// ParseStage maps a stage name back to its Stage.
func ParseStage(name string) (Stage, bool) {
	for i, n := range StageNames() {
		if n == name {
			return Stage(i), true
		}
	}
	return 0, false
}

// String returns the display name for a CocoonPhase.
func (p CocoonPhase) String() string {
	switch p {
	case CocoonPrewinter:
		return "prewinter"
	case CocoonOverwintering:
		return "overwintering"
	case CocoonPreEmergence:
		return "pre_emergence"
	}
	return "Unknown"
}

// String returns the display name for a Sex.
func (s Sex) String() string {
	if s == SexMale {
		return "male"
	}
	return "female"
}

// String returns the display name for a Parasitoid.
func (p Parasitoid) String() string {
	switch p {
	case ParasitoidNone:
		return "none"
	case ParasitoidBombylid:
		return "bombylid"
	case ParasitoidCleptoparasite:
		return "cleptoparasite"
	}
	return "Unknown"
}

// String returns the display name for a DeathCause.
func (c DeathCause) String() string {
	names := CauseNames()
	if int(c) < len(names) {
		return names[c]
	}
	return "Unknown"
}

// CauseNames returns the display names for all death causes.
func CauseNames() []string {
	return []string{"none", "mortality", "winter", "failed_emergence", "parasitoid", "male_emerged", "old_age", "eggs_exhausted"}
}

// String returns the display name for a FemaleState.
func (s FemaleState) String() string {
	switch s {
	case StateMaturing:
		return "maturing"
	case StateSeekingNest:
		return "seeking_nest"
	case StateDispersing:
		return "dispersing"
	case StateProvisioning:
		return "provisioning"
	}
	return "Unknown"
}
