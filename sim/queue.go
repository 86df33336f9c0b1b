// Implements the PendingQueue, which holds all jobs waiting to be placed on a machine.
// Jobs are enqueued on release and re-enqueued when preempted.

package sim

import (
	"fmt"
	"slices"
	"strings"
)

// PendingQueue is the global scheduler's ordered queue of jobs awaiting
// placement. The front of the queue is the next job to place; the admission
// rule decides what order that implies.
type PendingQueue struct {
	queue []*Job
}

// Enqueue adds a job to the back of the queue.
func (pq *PendingQueue) Enqueue(j *Job) {
	if j == nil {
		panic("Enqueue: job must not be nil")
	}
	j.State = JobPending
	pq.queue = append(pq.queue, j)
}

// InsertSorted places j so the queue stays in descending comparator order.
// Among equivalent jobs the newcomer goes last, keeping insertion stable.
func (pq *PendingQueue) InsertSorted(j *Job, c JobComparator) {
	if j == nil {
		panic("InsertSorted: job must not be nil")
	}
	j.State = JobPending
	idx := len(pq.queue)
	for i, other := range pq.queue {
		if Outranks(c, j, other) {
			idx = i
			break
		}
	}
	pq.queue = slices.Insert(pq.queue, idx, j)
}

func (pq *PendingQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, j := range pq.queue {
		sb.WriteString(fmt.Sprint(j.ID))
		if i < len(pq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of jobs in the queue.
func (pq *PendingQueue) Len() int {
	return len(pq.queue)
}

// Peek returns the job at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (pq *PendingQueue) Peek() *Job {
	if len(pq.queue) == 0 {
		return nil
	}
	return pq.queue[0]
}

// PopFront removes and returns the job at the front of the queue.
// Returns nil if the queue is empty.
func (pq *PendingQueue) PopFront() *Job {
	if len(pq.queue) == 0 {
		return nil
	}
	j := pq.queue[0]
	pq.queue[0] = nil
	pq.queue = pq.queue[1:]
	return j
}

// Items returns the queue contents for iteration.
// The returned slice is the queue's internal storage -- callers MUST NOT
// append to or reslice it. For reordering, use Reorder() instead.
func (pq *PendingQueue) Items() []*Job {
	return pq.queue
}

// Reorder applies fn to the queue contents, allowing in-place reordering.
// fn MUST NOT change the slice length (no append/delete).
func (pq *PendingQueue) Reorder(fn func([]*Job)) {
	if fn == nil {
		panic("Reorder: fn must not be nil")
	}
	n := len(pq.queue)
	fn(pq.queue)
	if len(pq.queue) != n {
		panic(fmt.Sprintf("Reorder: fn changed queue length from %d to %d", n, len(pq.queue)))
	}
}

func (pq *PendingQueue) reset() {
	pq.queue = nil
}
