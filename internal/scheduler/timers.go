package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// Job represents a dispatch scheduled for future execution
type Job struct {
	ID    string
	RunAt time.Time
	Fn    func()
	index int // index in the heap (for heap.Interface)
}

// jobHeap is a min-heap of Jobs ordered by RunAt
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	return h[i].RunAt.Before(h[j].RunAt)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	n := len(*h)
	job := x.(*Job)
	job.index = n
	*h = append(*h, job)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil  // avoid memory leak
	job.index = -1  // for safety
	*h = old[0 : n-1]
	return job
}

// Timers manages scheduled jobs using a min-heap
type Timers struct {
	heap    jobHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	jobs    map[string]*Job // for O(1) lookup by ID
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewTimers creates a new timer set
func NewTimers() *Timers {
	t := &Timers{
		heap:   make(jobHeap, 0),
		wakeup: make(chan struct{}, 1),
		jobs:   make(map[string]*Job),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	heap.Init(&t.heap)
	return t
}

// Start starts the timer loop
func (t *Timers) Start() {
	go t.run()
}

// Stop stops the timer loop gracefully
func (t *Timers) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.stopCh)
	t.mu.Unlock()

	<-t.doneCh
}

// Schedule adds a new job to be executed at the specified time. An
// existing job with the same ID is replaced.
func (t *Timers) Schedule(id string, runAt time.Time, fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrTimersStopped
	}

	if existing, ok := t.jobs[id]; ok {
		heap.Remove(&t.heap, existing.index)
		delete(t.jobs, id)
	}

	job := &Job{
		ID:    id,
		RunAt: runAt,
		Fn:    fn,
	}

	heap.Push(&t.heap, job)
	t.jobs[id] = job

	// Wake up the loop if this is now the earliest job
	if t.heap[0] == job {
		select {
		case t.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel removes a scheduled job
func (t *Timers) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return false
	}

	heap.Remove(&t.heap, job.index)
	delete(t.jobs, id)
	return true
}

// Pending returns the number of scheduled jobs
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// run is the main timer loop
func (t *Timers) run() {
	defer close(t.doneCh)

	for {
		t.mu.Lock()

		if t.stopped {
			t.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if t.heap.Len() == 0 {
			// No jobs, wait until something is scheduled
			waitDuration = 24 * time.Hour
		} else {
			next := t.heap[0]
			waitDuration = time.Until(next.RunAt)

			if waitDuration <= 0 {
				job := heap.Pop(&t.heap).(*Job)
				delete(t.jobs, job.ID)

				go job.Fn()

				t.mu.Unlock()
				continue
			}
		}

		t.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-t.wakeup:
			timer.Stop()
		case <-t.stopCh:
			timer.Stop()
			return
		}
	}
}

var ErrTimersStopped = &timersError{"timers are stopped"}

type timersError struct {
	msg string
}

func (e *timersError) Error() string {
	return e.msg
}
