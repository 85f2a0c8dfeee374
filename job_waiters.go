package main

import "sync"

// jobWaiters notifies observers when a job reaches a terminal state, so a
// progress stream can push the final payload without waiting for its next
// poll tick.
type jobWaiters struct {
	mu sync.Mutex
	m  map[string][]chan Job
}

func newJobWaiters() *jobWaiters {
	return &jobWaiters{m: make(map[string][]chan Job)}
}

func (w *jobWaiters) register(jobID string) chan Job {
	ch := make(chan Job, 1)
	w.mu.Lock()
	w.m[jobID] = append(w.m[jobID], ch)
	w.mu.Unlock()
	return ch
}

func (w *jobWaiters) notify(job Job) {
	w.mu.Lock()
	waiters := w.m[job.ID]
	delete(w.m, job.ID)
	w.mu.Unlock()
	for _, ch := range waiters {
		select {
		case ch <- job:
		default:
		}
		close(ch)
	}
}

// unregister removes and closes ch. A channel already handed off to
// notify is left alone, which keeps the two paths from double-closing.
func (w *jobWaiters) unregister(jobID string, ch chan Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	waiters := w.m[jobID]
	for i, c := range waiters {
		if c == ch {
			w.m[jobID] = append(waiters[:i], waiters[i+1:]...)
			if len(w.m[jobID]) == 0 {
				delete(w.m, jobID)
			}
			close(ch)
			return
		}
	}
}
