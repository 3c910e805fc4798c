package systems

import "math/rand/v2"

// Stream is a reusable random stream for one worker. It is reseeded for
// every individual so the draws an individual sees on a given day depend
// only on the run seed, the day and its ID, never on scheduling.
type Stream struct {
	pcg *rand.PCG
	*rand.Rand
}

// NewStream allocates a stream. Call Reset before drawing.
func NewStream() *Stream {
	pcg := rand.NewPCG(0, 0)
	return &Stream{pcg: pcg, Rand: rand.New(pcg)}
}

// Reset reseeds the stream for one individual on one day.
func (s *Stream) Reset(seed uint64, day int, id uint32) {
	s.pcg.Seed(seed, uint64(day)<<32|uint64(id))
}

// Source returns the underlying source, for gonum distributions.
func (s *Stream) Source() rand.Source {
	return s.pcg
}
