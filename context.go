package mapreduce

// Context is the opaque token the runtime passes to Client.Map and
// Client.Reduce. Implementations must pass the same Context they were given
// to Emit2 / Emit3; it identifies the calling worker and must not be used
// after the Map or Reduce call that received it returns.
type Context struct {
	worker *worker
	job    *Job
}

// Emit2 appends (key, value) to the calling worker's private intermediate
// buffer. It must only be called from within the Map call that received ctx.
// It takes no lock: the buffer is written only by its owning worker during
// MAP, and read only by worker 0 during SHUFFLE, after the post-map barrier
// has already synchronized the two.
func (ctx *Context) Emit2(key K2, value any) {
	w := ctx.worker
	w.buffer = append(w.buffer, IntermediatePair{Key: key, Value: value})
}

// Emit3 appends (key, value) to the job's output. It must only be called
// from within the Reduce call that received ctx. Reduce workers may call it
// concurrently, so the append is serialized on the job's input mutex, the
// same lock used to hand out shuffled groups.
func (ctx *Context) Emit3(key, value any) {
	j := ctx.job
	j.mu.Lock()
	*j.output = append(*j.output, OutputPair{Key: key, Value: value})
	j.mu.Unlock()
}
