package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	count atomic.Int32
}

func (c *countingInvalidator) Invalidate() { c.count.Add(1) }

func TestScheduleRebuildFiresInvalidate(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Stop()

	inv := &countingInvalidator{}
	id, err := s.ScheduleRebuild(20*time.Millisecond, inv)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s.Start()
	require.Eventually(t, func() bool {
		return inv.count.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStopShutsDownCleanly(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	s.Start()
	require.NoError(t, s.Stop())
}
