package mapreduce

// Pair is a generic key/value pair. InputPair, IntermediatePair and
// OutputPair are all the same shape; the name only documents which phase
// produced it.
type Pair struct {
	Key   any
	Value any
}

type (
	// InputPair is consumed by the map phase.
	InputPair = Pair
	// IntermediatePair is produced by Emit2 and consumed by the reduce phase.
	IntermediatePair = Pair
	// OutputPair is produced by Emit3 and appended to the job's output.
	OutputPair = Pair
)

// K2 is the interface an intermediate key must satisfy so the runtime can
// group IntermediatePairs by key during the shuffle phase: a strict total
// order via Less. Two keys for which neither a.Less(b) nor b.Less(a) holds
// are treated as equal and collapse into the same group.
type K2 interface {
	Less(other any) bool
}

// Client supplies the map and reduce business logic. The runtime is opaque
// to K1, V1, K2, V2, K3 and V3; it only requires that values handed to
// Emit2 as a key implement K2.
//
// Map and Reduce must not retain key, value or the pairs slice beyond the
// call, and must only call methods on ctx from the goroutine that invoked
// them, and only for the duration of the call.
type Client interface {
	// Map is invoked once per input pair. It should call ctx.Emit2 zero or
	// more times to publish intermediate pairs.
	Map(key, value any, ctx *Context)
	// Reduce is invoked once per shuffled group, all of whose keys compare
	// equal under K2.Less. It should call ctx.Emit3 one or more times.
	Reduce(pairs []IntermediatePair, ctx *Context)
}

// Stage is the current phase of a job. It only ever advances.
type Stage int32

const (
	// Undefined is the stage before any worker has started.
	Undefined Stage = iota
	// MapStage is the input-consuming, Emit2-producing phase.
	MapStage
	// ShuffleStage groups intermediate pairs by key; only worker 0 runs it.
	ShuffleStage
	// ReduceStage drains the shuffled groups and produces output.
	ReduceStage
)

func (s Stage) String() string {
	switch s {
	case MapStage:
		return "map"
	case ShuffleStage:
		return "shuffle"
	case ReduceStage:
		return "reduce"
	default:
		return "undefined"
	}
}

// JobState is a point-in-time snapshot returned by Job.State.
type JobState struct {
	Stage      Stage
	Percentage float64
}
