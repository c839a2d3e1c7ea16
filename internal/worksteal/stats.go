package worksteal

// WorkerStats counts what one worker handled since the group was created.
type WorkerStats struct {
	Handled uint64
	Stolen  uint64
	Panics  uint64
}

// Stats is a snapshot of every worker's counters.
type Stats struct {
	Workers []WorkerStats
}

// Handled returns the items handled by all workers.
func (s Stats) Handled() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Handled
	}
	return n
}

// Stolen returns the items obtained by stealing.
func (s Stats) Stolen() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Stolen
	}
	return n
}

// Panics returns the handler panics recovered by all workers.
func (s Stats) Panics() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Panics
	}
	return n
}

// Stats returns a snapshot of the per-worker counters.
func (g *Group[T]) Stats() Stats {
	s := Stats{Workers: make([]WorkerStats, len(g.stats))}
	for i := range g.stats {
		st := &g.stats[i]
		s.Workers[i] = WorkerStats{
			Handled: st.handled.Load(),
			Stolen:  st.stolen.Load(),
			Panics:  st.panics.Load(),
		}
	}
	return s
}
