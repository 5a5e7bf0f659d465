package mapreduce

import (
	"os"

	"github.com/rs/zerolog"
)

// log is the package's diagnostic logger. The error handling contract calls
// for a "system error: <reason>" style report whenever a worker cannot
// continue; we route that through structured logging instead of fmt.Fprintf
// so the reason, the worker id and the job stage are all queryable fields.
var log = zerolog.New(os.Stderr).With().Timestamp().Str("component", "mapreduce").Logger()
