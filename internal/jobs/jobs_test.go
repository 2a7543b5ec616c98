package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/cache"
	"tracker/internal/testsupport"
	"tracker/internal/views"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

// slowJob holds every run open until release is closed.
type slowJob struct {
	name    string
	runs    atomic.Int32
	release chan struct{}
}

func (j *slowJob) Name() string { return j.name }

func (j *slowJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	select {
	case <-j.release:
	case <-ctx.Done():
	}
	return nil
}

type panickingJob struct{}

func (panickingJob) Name() string              { return "panicking" }
func (panickingJob) Run(context.Context) error { panic("boom") }

func TestSchedulerRunsJobsOnInterval(t *testing.T) {
	job := &countingJob{name: "counting"}
	s := NewScheduler(testsupport.GetLogger(), Scheduled{Job: job, Interval: 10 * time.Millisecond})

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return job.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())

	stopped := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, job.runs.Load(), "no runs after Stop")
}

func TestSchedulerStartsEveryJobImmediately(t *testing.T) {
	release := make(chan struct{})
	retention := &slowJob{name: "views_retention", release: release}
	expiry := &slowJob{name: "cache_expiry", release: release}

	s := NewScheduler(testsupport.GetLogger(),
		Scheduled{Job: retention, Interval: 24 * time.Hour},
		Scheduled{Job: expiry, Interval: time.Hour})
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool {
		return retention.runs.Load() == 1 && expiry.runs.Load() == 1
	}, time.Second, 5*time.Millisecond, "a running job must not keep another job from starting")

	close(release)
	s.Stop()
}

func TestSchedulerSkipsOverlappingRunsOfOneJob(t *testing.T) {
	release := make(chan struct{})
	job := &slowJob{name: "slow", release: release}
	s := NewScheduler(testsupport.GetLogger(), Scheduled{Job: job, Interval: time.Hour})
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.RunOnce("slow"))
	assert.Equal(t, int32(1), job.runs.Load(), "the job is still running")

	close(release)
	s.Stop()
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(testsupport.GetLogger(), Scheduled{Job: &countingJob{name: "bad"}})
	assert.Error(t, s.Start())
}

func TestRunOnce(t *testing.T) {
	failing := &countingJob{name: "failing", err: errors.New("disk full")}
	s := NewScheduler(testsupport.GetLogger(),
		Scheduled{Job: failing, Interval: time.Hour},
		Scheduled{Job: panickingJob{}, Interval: time.Hour})

	assert.ErrorIs(t, s.RunOnce("failing"), failing.err)
	assert.Equal(t, int32(1), failing.runs.Load())

	assert.Error(t, s.RunOnce("panicking"), "a panic is recovered and reported")
	assert.Error(t, s.RunOnce("missing"))
}

func TestRetentionJob(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()
	store := views.NewStore(db, testsupport.GetLogger(), true)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	testsupport.CreateView(t, db, "en", now.AddDate(0, 0, -40))
	testsupport.CreateView(t, db, "en", now.AddDate(0, 0, -10))

	t.Run("disabled keeps everything", func(t *testing.T) {
		job := NewRetentionJob(store, testsupport.GetLogger(), 0)
		require.NoError(t, job.Run(ctx))

		n, err := store.Query().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("deletes views past the cutoff", func(t *testing.T) {
		job := NewRetentionJob(store, testsupport.GetLogger(), 30)
		job.now = func() time.Time { return now }
		require.NoError(t, job.Run(ctx))

		n, err := store.Query().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestCacheExpiryJob(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()
	store := cache.NewDatabaseStore(db, testsupport.GetLogger())
	require.NoError(t, store.Put(ctx, "tracker.between.a", 1, time.Nanosecond))
	require.NoError(t, store.Put(ctx, "tracker.between.b", 2, 0))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, NewCacheExpiryJob(store, testsupport.GetLogger()).Run(ctx))

	var remaining int64
	require.NoError(t, db.Model(&cache.CacheEntry{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
