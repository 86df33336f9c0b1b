package sim

import "math/rand"

// SortedAdmission keeps the pending queue in descending comparator order so
// the front is always the highest-ranked job.
type SortedAdmission struct{}

func (SortedAdmission) Admit(s *GlobalScheduler, job *Job) {
	s.Queue().InsertSorted(job, s.Policy())
}

// FIFOAdmission appends the job to the back of the queue.
type FIFOAdmission struct{}

func (FIFOAdmission) Admit(s *GlobalScheduler, job *Job) {
	s.Queue().Enqueue(job)
}

// ShuffleAdmission appends the job and reshuffles the whole queue.
type ShuffleAdmission struct {
	rng *rand.Rand
}

// NewShuffleAdmission creates a ShuffleAdmission drawing from rng.
func NewShuffleAdmission(rng *rand.Rand) *ShuffleAdmission {
	return &ShuffleAdmission{rng: rng}
}

func (a *ShuffleAdmission) Admit(s *GlobalScheduler, job *Job) {
	q := s.Queue()
	q.Enqueue(job)
	q.Reorder(func(jobs []*Job) {
		a.rng.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })
	})
}
