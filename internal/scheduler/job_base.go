package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultJobTimeout bounds a single scheduled run
const DefaultJobTimeout = 15 * time.Minute

// JobBase holds the logger shared by every job.
// Jobs embed it and are silent until SetLogger is called.
type JobBase struct {
	log zerolog.Logger
}

func newJobBase() JobBase {
	return JobBase{log: zerolog.Nop()}
}

// SetLogger sets the logger for the job
func (j *JobBase) SetLogger(log zerolog.Logger) {
	j.log = log
}
