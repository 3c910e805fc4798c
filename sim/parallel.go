package sim

import (
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/osmia/components"
	"github.com/pthm-cable/osmia/systems"
)

// parallelThreshold is the minimum snapshot count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// snapshot is the copy of one live individual the parallel phases work on.
type snapshot struct {
	Entity   ecs.Entity
	Pos      components.Position
	Ind      components.Individual
	Female   components.Female
	IsFemale bool
}

// intent records what happened to a snapshot, for the apply phase.
type intent struct {
	Brood     systems.BroodEvent
	Adult     systems.FemaleEvent
	NewFemale bool // emerged today; the Female component must be added
}

// pass selects the work a chunk performs.
type pass uint8

const (
	passDensity pass = iota
	passUpdate
)

// workChunk represents a range of snapshots for a worker to process.
type workChunk struct {
	start, end int
	pass       pass
}

// parallelState holds the snapshot buffers and the persistent worker pool.
type parallelState struct {
	snapshots  []snapshot
	intents    []intent
	streams    []*systems.Stream // one per worker
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

func newParallelState(workers int) *parallelState {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	streams := make([]*systems.Stream, workers)
	for i := range streams {
		streams[i] = systems.NewStream()
	}
	return &parallelState{
		numWorkers: workers,
		streams:    streams,
		snapshots:  make([]snapshot, 0, 1024),
		intents:    make([]intent, 0, 1024),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(s *Scheduler) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(s, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(s *Scheduler, workerID int) {
	defer p.wg.Done()
	stream := p.streams[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			s.computeChunk(chunk, stream)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes one pass over all snapshots, single-threaded for small
// populations and on the worker pool otherwise. It returns once every
// chunk is done.
func (p *parallelState) run(s *Scheduler, ps pass) {
	n := len(p.snapshots)
	if n == 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		s.computeChunk(workChunk{start: 0, end: n, pass: ps}, p.streams[0])
		return
	}

	if !p.running {
		p.startWorkers(s)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, pass: ps}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

// computeChunk processes a range of snapshots for a single worker.
// Workers write only their own snapshots and intents; the density grid and
// the nest registry are the shared structures they touch.
func (s *Scheduler) computeChunk(c workChunk, stream *systems.Stream) {
	snaps := s.parallel.snapshots
	intents := s.parallel.intents
	day := &s.today

	switch c.pass {
	case passDensity:
		for i := c.start; i < c.end; i++ {
			if snaps[i].IsFemale {
				s.density.Add(snaps[i].Pos)
			}
		}

	case passUpdate:
		for i := c.start; i < c.end; i++ {
			snap := &snaps[i]
			in := &intents[i]
			*in = intent{}
			stream.Reset(s.seed, day.Index, snap.Ind.ID)

			if snap.IsFemale {
				in.Adult = s.behaviour.Step(&snap.Ind, &snap.Female, &snap.Pos, day, stream)
				continue
			}
			in.Brood = s.development.Step(&snap.Ind, day, stream.Rand)
			if in.Brood.Emerged && !snap.Ind.Dead && snap.Ind.Stage == components.StageFemale {
				snap.Female = s.behaviour.Emerge(&snap.Ind, day, stream)
				snap.IsFemale = true
				in.NewFemale = true
			}
		}
	}
}
