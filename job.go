// Package mapreduce runs a user-supplied map/reduce pair over an in-memory
// input sequence across a fixed pool of worker goroutines. It is the classic
// three-phase MapReduce (map, shuffle, reduce) executed on a single process:
// no distribution across machines, no persistence, no cancellation of an
// in-flight job.
package mapreduce

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

const minWorkers = 1

// worker is the per-goroutine record: an id, a private intermediate buffer
// filled by Emit2 during MAP and drained by worker 0 during SHUFFLE, and a
// scratch field recording the size of the group most recently taken during
// REDUCE, used for progress accounting.
type worker struct {
	id            int
	buffer        []IntermediatePair
	lastGroupSize int
}

// group is one bucket of the shuffled map: all intermediate pairs whose key
// compares equal to k under K2.Less.
type group struct {
	key   K2
	pairs []IntermediatePair
}

// Job is the handle returned by StartJob. Its fields are unexported; State,
// Wait and Close are the only ways to observe or drive it. State does not
// wait for any phase to finish, but during MAP it briefly takes the same
// mutex the workers use (see State).
type Job struct {
	client Client
	output *[]OutputPair

	workers []*worker

	stage    atomic.Int32
	finished atomic.Bool

	// mu guards input, shuffledMap, *output and their bookkeeping during the
	// phases where more than one worker may touch them concurrently.
	mu    sync.Mutex
	input []InputPair

	shuffledMap []group

	initialInputSize  int
	totalIntermediate atomic.Int64
	shuffledCount     atomic.Int64
	reducedCount      atomic.Int64

	postMapBarrier     *Barrier
	postShuffleBarrier *Barrier
	terminalBarrier    *Barrier

	wg      sync.WaitGroup
	done    *DoneChan
	err     AtomicError
	errOnce sync.Once
}

// StartJob constructs the shared job state, spawns nWorkers goroutines, and
// returns immediately with a handle to follow the job's progress. nWorkers
// is clamped to at least 1. output must outlive the job; the runtime appends
// to it from reduce workers but never replaces or reads it otherwise, so the
// caller sees results land in place.
func StartJob(client Client, input []InputPair, output *[]OutputPair, nWorkers int) *Job {
	if nWorkers < minWorkers {
		nWorkers = minWorkers
	}

	j := &Job{
		client:             client,
		output:             output,
		input:              append([]InputPair(nil), input...),
		initialInputSize:   len(input),
		postMapBarrier:     NewBarrier(nWorkers),
		postShuffleBarrier: NewBarrier(nWorkers),
		terminalBarrier:    NewBarrier(nWorkers),
		done:               NewDoneChan(),
	}

	j.workers = make([]*worker, nWorkers)
	for i := range j.workers {
		j.workers[i] = &worker{id: i}
	}

	j.wg.Add(nWorkers)
	for _, w := range j.workers {
		go j.runWorker(w)
	}

	go func() {
		j.wg.Wait()
		j.done.Close()
	}()

	return j
}

// runWorker drives one worker through map, shuffle (worker 0 only) and
// reduce, in that order, gated by the job's barriers. Each phase runs under
// its own safeCall: a panic escaping the client's Map or Reduce must not
// stop this worker from reaching the barriers after the panicking phase,
// since every other worker already waiting there would otherwise block
// forever. Only the first panic recovered across all workers and phases is
// kept (see safeCall).
func (j *Job) runWorker(w *worker) {
	defer j.wg.Done()

	j.safeCall(w.id, func() { j.runMap(w) })
	j.postMapBarrier.ArriveAndWait()

	if w.id == 0 {
		j.safeCall(w.id, j.runShuffle)
	}
	j.postShuffleBarrier.ArriveAndWait()

	j.safeCall(w.id, func() { j.runReduce(w) })
	j.terminalBarrier.ArriveAndWait()

	// Every worker writes the same value; the race is benign (see design
	// notes on stage-write races) and cheaper than electing a single writer.
	j.finished.Store(true)
}

// safeCall runs fn and recovers any panic escaping it, so the calling
// worker still proceeds to its next ArriveAndWait instead of leaving the
// rest of the pool blocked on a barrier that will never fill. Only the
// first panic observed anywhere in the job is logged and kept as its
// error; later ones are dropped rather than overwriting it.
func (j *Job) safeCall(workerID int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			j.errOnce.Do(func() {
				log.Error().
					Int("worker", workerID).
					Str("stage", Stage(j.stage.Load()).String()).
					Err(err).
					Msg("system error: recovered panic in client callback")
				j.err.Set(err)
			})
		}
	}()

	fn()
}

// runMap publishes the MAP stage, then repeatedly pops one InputPair from
// the back of the queue and hands it to the client until the queue is
// empty. Popping from the back keeps the critical section O(1); map order
// is unspecified, so this is safe.
func (j *Job) runMap(w *worker) {
	j.stage.Store(int32(MapStage))

	// Deferred so a panic partway through the loop still credits whatever
	// this worker had already buffered before unwinding into safeCall.
	defer func() {
		j.totalIntermediate.Add(int64(len(w.buffer)))
	}()

	for {
		j.mu.Lock()
		if len(j.input) == 0 {
			j.mu.Unlock()
			break
		}
		last := len(j.input) - 1
		pair := j.input[last]
		j.input = j.input[:last]
		j.mu.Unlock()

		j.client.Map(pair.Key, pair.Value, &Context{worker: w, job: j})
	}
}

// runShuffle is only ever called on worker 0, with every other worker
// already blocked on postShuffleBarrier, so shuffledMap needs no lock: it is
// written here and nowhere else until REDUCE, where groups are taken off it
// only under the mutex.
func (j *Job) runShuffle() {
	j.stage.Store(int32(ShuffleStage))

	for _, w := range j.workers {
		for _, pair := range w.buffer {
			j.shuffleInsert(pair.Key.(K2), pair)
			j.shuffledCount.Add(1)
		}
	}
}

// shuffleInsert places pair into the group for key, creating the group if
// none of the existing groups compares equal to key. shuffledMap is kept
// sorted by Less so insertion and lookup can both use binary search, the Go
// equivalent of the comparator-ordered std::map the original framework used.
func (j *Job) shuffleInsert(key K2, pair IntermediatePair) {
	idx := sort.Search(len(j.shuffledMap), func(i int) bool {
		return !j.shuffledMap[i].key.Less(key)
	})

	if idx < len(j.shuffledMap) && !key.Less(j.shuffledMap[idx].key) {
		j.shuffledMap[idx].pairs = append(j.shuffledMap[idx].pairs, pair)
		return
	}

	j.shuffledMap = append(j.shuffledMap, group{})
	copy(j.shuffledMap[idx+1:], j.shuffledMap[idx:])
	j.shuffledMap[idx] = group{key: key, pairs: []IntermediatePair{pair}}
}

// runReduce publishes the REDUCE stage, then repeatedly takes one group off
// shuffledMap and hands it to the client until none remain. The reduced
// count is credited once per group, at the point it is taken, rather than
// once per Emit3 call: crediting it in Emit3 would overshoot whenever a
// reducer emits more than one pair per group, since the denominator
// (totalIntermediate) counts intermediate pairs, not output pairs.
func (j *Job) runReduce(w *worker) {
	j.stage.Store(int32(ReduceStage))

	for {
		j.mu.Lock()
		if len(j.shuffledMap) == 0 {
			j.mu.Unlock()
			break
		}
		last := len(j.shuffledMap) - 1
		g := j.shuffledMap[last]
		j.shuffledMap = j.shuffledMap[:last]
		w.lastGroupSize = len(g.pairs)
		j.reducedCount.Add(int64(w.lastGroupSize))
		j.mu.Unlock()

		j.client.Reduce(g.pairs, &Context{worker: w, job: j})
	}
}

// Wait blocks until every worker has exited, then returns the first panic
// any of them recovered from, if any. It is safe to call from any number of
// goroutines, concurrently or in sequence: every caller observes the same
// completion signal and the same error.
func (j *Job) Wait() error {
	<-j.done.Done()
	return j.err.Load()
}

// State takes a snapshot of the job's progress. shuffledCount and
// reducedCount are read atomically without a lock, while a worker may be
// updating them, so the result may be momentarily stale. During MAP, State
// holds the job mutex for the length read of input, so it can wait for, and
// briefly delay, a worker that is taking an input pair under that mutex.
func (j *Job) State() JobState {
	stage := Stage(j.stage.Load())
	if j.finished.Load() {
		return JobState{Stage: stage, Percentage: 100}
	}

	switch stage {
	case MapStage:
		if j.initialInputSize == 0 {
			return JobState{Stage: stage, Percentage: 0}
		}
		j.mu.Lock()
		remaining := len(j.input)
		j.mu.Unlock()
		pct := 100 * (1 - float64(remaining)/float64(j.initialInputSize))
		return JobState{Stage: stage, Percentage: pct}
	case ShuffleStage:
		return JobState{Stage: stage, Percentage: ratio(j.shuffledCount.Load(), j.totalIntermediate.Load())}
	case ReduceStage:
		return JobState{Stage: stage, Percentage: ratio(j.reducedCount.Load(), j.totalIntermediate.Load())}
	default:
		return JobState{Stage: stage, Percentage: 0}
	}
}

func ratio(num, denom int64) float64 {
	if denom == 0 {
		return 0
	}
	return 100 * float64(num) / float64(denom)
}

// Close waits for the job to finish, then releases its shuffled-map
// bookkeeping. Calling Close more than once, or using the Job afterward, is
// undefined, matching the contract of the original framework's
// closeJobHandle.
func (j *Job) Close() error {
	err := j.Wait()

	j.mu.Lock()
	j.shuffledMap = nil
	j.mu.Unlock()

	return err
}
