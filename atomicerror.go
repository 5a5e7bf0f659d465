package mapreduce

import "sync/atomic"

// AtomicError is used to store and load an error across goroutines without
// a mutex. The zero value is usable and loads as nil.
type AtomicError struct {
	err atomic.Value
}

// atomicErrorContainer wraps the error so a nil error can still be stored:
// atomic.Value panics if you try to Store a nil interface value directly,
// and panics again if later Store calls change the concrete type.
type atomicErrorContainer struct {
	err error
}

// Set stores err, replacing whatever was stored before, including nil.
func (ae *AtomicError) Set(err error) {
	ae.err.Store(atomicErrorContainer{err: err})
}

// Load returns the most recently Set error, or nil if Set was never called.
func (ae *AtomicError) Load() error {
	v := ae.err.Load()
	if v == nil {
		return nil
	}

	return v.(atomicErrorContainer).err
}
