package stats

import (
	"errors"
	"sync"
	"testing"

	"github.com/jzx17/procsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Counts(t *testing.T) {
	a := NewAggregator()

	a.Started(1, 1, 3)
	a.Finished(1, 1)
	a.DurationReported(0, 3)
	a.Started(2, 2, 4)
	a.Failed(2, 2, errors.New("boom"))
	a.DurationReported(1, 4)
	a.Shutdown(1, 1)
	a.Shutdown(2, 1)
	a.Shutdown(3, 1)
	a.AllDone()

	s := a.Snapshot()
	assert.Equal(t, int64(1), s.Completed())
	assert.Equal(t, int64(1), s.Failed())
	assert.Equal(t, int64(7), s.TotalDuration)
	assert.Equal(t, map[int]int64{0: 3, 1: 4}, s.DurationPerWorker)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, s.IdlePerWorker)
	assert.Equal(t, int64(0), s.CompletedPerWorker[3])
	assert.Equal(t, []int{1, 2, 3}, s.Workers())
	assert.True(t, s.AllDone)
	assert.NoError(t, s.Verify(2, 7))
}

func TestAggregator_ShutdownSeedsCompleted(t *testing.T) {
	a := NewAggregator()
	a.Finished(1, 1)
	a.Shutdown(1, 1)
	a.Shutdown(2, 1)

	s := a.Snapshot()
	assert.Equal(t, map[int]int64{1: 1, 2: 0}, s.CompletedPerWorker)
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	a := NewAggregator()
	a.Finished(1, 1)

	s := a.Snapshot()
	s.CompletedPerWorker[1] = 99

	assert.Equal(t, int64(1), a.Snapshot().CompletedPerWorker[1])
}

func TestAggregator_Concurrent(t *testing.T) {
	const (
		workers   = 8
		perWorker = 500
	)
	a := NewAggregator()

	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				a.Started(w, i, 2)
				a.Finished(w, i)
				a.DurationReported(w-1, 2)
			}
			a.Shutdown(w, 1)
		}(w)
	}
	wg.Wait()

	s := a.Snapshot()
	assert.Equal(t, int64(workers*perWorker), s.Completed())
	assert.Equal(t, int64(workers*perWorker*2), s.TotalDuration)
	for w := 1; w <= workers; w++ {
		assert.Equal(t, int64(perWorker), s.CompletedPerWorker[w])
	}
}

func TestSnapshot_Verify(t *testing.T) {
	a := NewAggregator()
	a.Started(1, 1, 2)
	a.Finished(1, 1)
	a.DurationReported(0, 2)

	err := a.Snapshot().Verify(2, 5)
	require.Error(t, err)

	var invErr *types.InvariantError
	require.True(t, errors.As(err, &invErr))
	assert.Contains(t, err.Error(), "tasks executed")
	assert.Contains(t, err.Error(), "total duration")
}
