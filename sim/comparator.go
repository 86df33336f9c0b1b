package sim

// PriorityComparator orders jobs by priority, then by remaining runtime, then
// by release time with earlier releases ranking higher.
// At equal priority a job with more remaining work outranks one with less.
type PriorityComparator struct{}

func (PriorityComparator) Compare(a, b *Job) int {
	switch {
	case a.Priority != b.Priority:
		if a.Priority > b.Priority {
			return 1
		}
		return -1
	case a.Runtime() != b.Runtime():
		if a.Runtime() > b.Runtime() {
			return 1
		}
		return -1
	case a.ReleaseTime != b.ReleaseTime:
		if a.ReleaseTime < b.ReleaseTime {
			return 1
		}
		return -1
	default:
		return 0
	}
}

// IndifferentComparator treats every pair of jobs as equivalent.
type IndifferentComparator struct{}

func (IndifferentComparator) Compare(_, _ *Job) int { return 0 }
