package mapreduce

import "sync"

// A DoneChan signals job completion. A Job closes it exactly once, from the
// goroutine that observes every worker has exited; Wait, however many times
// and from however many goroutines it's called, just receives from Done.
type DoneChan struct {
	done chan struct{}
	once sync.Once
}

// NewDoneChan returns a DoneChan.
func NewDoneChan() *DoneChan {
	return &DoneChan{
		done: make(chan struct{}),
	}
}

// Close closes dc, it's safe to close more than once.
func (dc *DoneChan) Close() {
	dc.once.Do(func() {
		close(dc.done)
	})
}

// Done returns a channel that can be notified on dc closed.
func (dc *DoneChan) Done() chan struct{} {
	return dc.done
}
