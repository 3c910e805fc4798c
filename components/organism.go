package components

// Individual is the state shared by every life stage.
// Development holds degree-days (egg, larva, pupa), prepupal days, or
// chilling degree-days (in cocoon) and is reset only on a forward transition.
type Individual struct {
	ID          uint32
	Stage       Stage
	Age         int // days; reset to 0 when the adult emerges
	StageAge    int // days spent in the current stage
	Development float64
	Mass        float64 // provision mass (mg) for brood, body mass for adults
	Sex         Sex
	Parasitoid  Parasitoid
	Cocoon      CocoonPhase
	PrewinterDD float64 // degree-days above the prewinter threshold
	NestID      uint32
	Cell        int
	MotherID    uint32
	Dead        bool
	Cause       DeathCause
}

// Kill marks the individual dead. The first cause recorded wins.
func (ind *Individual) Kill(cause DeathCause) {
	if ind.Dead {
		return
	}
	ind.Dead = true
	ind.Cause = cause
}

// Advance moves the individual into the next stage and restarts development.
func (ind *Individual) Advance() {
	next := ind.Stage.Next()
	if next <= ind.Stage {
		panic("components: stage regression from " + ind.Stage.String())
	}
	ind.Stage = next
	ind.StageAge = 0
	ind.Development = 0
}
