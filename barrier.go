package mapreduce

import "sync"

// Barrier is a reusable N-way rendezvous point: n goroutines each call
// ArriveAndWait, none of them returns until all n have arrived, and then the
// barrier resets itself so the same Barrier can be used again for the next
// phase. It is the Go equivalent of a pthread_barrier_t; a Job creates three
// of them (post-map, post-shuffle and terminal) and uses each once.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	waiting int
	gen     uint64
}

// NewBarrier returns a Barrier that releases its arrivals once n goroutines
// have called ArriveAndWait. An n below 1 is clamped to 1; a barrier of 1 is
// a no-op, matching a single-worker job.
func NewBarrier(n int) *Barrier {
	if n < 1 {
		n = 1
	}

	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// ArriveAndWait blocks the calling goroutine until n goroutines (including
// this one) have called ArriveAndWait on b, then releases all of them and
// resets b for reuse. Safe for concurrent use by exactly n goroutines per
// round; calling it from more than n goroutines in one round is misuse.
func (b *Barrier) ArriveAndWait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return
	}

	for gen == b.gen {
		b.cond.Wait()
	}
}
