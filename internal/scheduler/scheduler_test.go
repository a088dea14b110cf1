package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.calls.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, s.AddJob("0 0 22 * * MON-FRI", &countingJob{name: "daily_decision"}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "backup"}))
	assert.Equal(t, []string{"daily_decision", "backup"}, s.Jobs())

	err := s.AddJob("not a schedule", &countingJob{name: "broken"})
	assert.Error(t, err)
	assert.Len(t, s.Jobs(), 2)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))
	job := &countingJob{name: "evaluate_accuracy", err: errors.New("boom")}

	err := s.RunNow(job)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))
	job := &countingJob{name: "slow", block: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		s.execute(job)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.execute(job)
	assert.Equal(t, int32(1), job.calls.Load())

	close(job.block)
	<-done

	job.block = nil
	s.execute(job)
	assert.Equal(t, int32(2), job.calls.Load())
}
