package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls int
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls++
	return 3, s.err
}

type countingRefresher struct {
	calls int
}

func (r *countingRefresher) RefreshStatuses(context.Context) (int64, int64, error) {
	r.calls++
	return 1, 2, nil
}

func TestNewRegistersBothJobs(t *testing.T) {
	j, err := New(&countingSweeper{}, &countingRefresher{}, time.Minute, 5*time.Minute, clockwork.NewFakeClock())
	require.NoError(t, err)
	defer func() { _ = j.Stop() }()

	names := map[string]bool{}
	for _, job := range j.scheduler.Jobs() {
		names[job.Name()] = true
	}
	assert.True(t, names["expiry-sweep"])
	assert.True(t, names["showtime-status"])
}

func TestNewRejectsZeroInterval(t *testing.T) {
	_, err := New(&countingSweeper{}, &countingRefresher{}, 0, time.Minute, nil)
	assert.Error(t, err)
}

func TestTaskBodiesCallThrough(t *testing.T) {
	sweeper := &countingSweeper{}
	refresher := &countingRefresher{}
	j := &Jobs{sweeper: sweeper, refresher: refresher}

	j.SweepExpired(context.Background())
	j.RefreshStatuses(context.Background())
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 1, refresher.calls)

	sweeper.err = errors.New("redis down")
	j.SweepExpired(context.Background())
	assert.Equal(t, 2, sweeper.calls)
}
