// ABOUTME: Per-user FIFO of pending turns, each drained by its own short-lived worker
// ABOUTME: One user's turns run in arrival order; different users never wait on each other

package conversation

import "sync"

// userQueues runs jobs for one key strictly in push order, and jobs for
// different keys concurrently. A key has a worker goroutine only while it
// has pending or running work.
type userQueues struct {
	mu      sync.Mutex
	pending map[string][]func() // present while a worker is draining the key
	workers sync.WaitGroup
}

func newUserQueues() *userQueues {
	return &userQueues{pending: make(map[string][]func())}
}

// Push appends job to key's queue and starts a worker if none is running.
// It never blocks on other jobs.
func (q *userQueues) Push(key string, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, draining := q.pending[key]
	q.pending[key] = append(jobs, job)
	if !draining {
		q.workers.Add(1)
		go q.drain(key)
	}
}

func (q *userQueues) drain(key string) {
	defer q.workers.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[key]
		if len(jobs) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		jobs[0] = nil
		q.pending[key] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// Len returns the number of keys with queued or running work.
func (q *userQueues) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until every worker has drained its queue.
func (q *userQueues) Wait() {
	q.workers.Wait()
}
