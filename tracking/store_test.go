package tracking_test

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/tracking"
)

func pointAt(frame int) tracking.Point {
	return tracking.Point{Position: image.Pt(frame*3, 100+frame), Frame: frame}
}

func TestUpdateKeepsLastMaxHistoryPointsInOrder(t *testing.T) {
	t.Parallel()

	for _, total := range []int{1, 29, 30, 31, 75, 300} {
		store := tracking.NewStore(30)

		var traj tracking.Trajectory
		for frame := 1; frame <= total; frame++ {
			traj = store.Update(1, pointAt(frame))
			require.LessOrEqual(t, traj.Len(), 30)
		}

		first := total - 30 + 1
		if first < 1 {
			first = 1
		}
		var want []tracking.Point
		for frame := first; frame <= total; frame++ {
			want = append(want, pointAt(frame))
		}

		if diff := cmp.Diff(want, traj.Points()); diff != "" {
			t.Errorf("total=%d trajectory mismatch (-want +got):\n%s", total, diff)
		}
		if diff := cmp.Diff(want, store.Get(1).Points()); diff != "" {
			t.Errorf("total=%d Get mismatch (-want +got):\n%s", total, diff)
		}
	}
}

func TestGetUnknownIdentityIsEmpty(t *testing.T) {
	t.Parallel()

	store := tracking.NewStore(10)
	store.Update(7, pointAt(1))

	traj := store.Get(8)
	assert.Equal(t, 0, traj.Len())
	assert.Empty(t, traj.Points())
	assert.Empty(t, traj.Positions())

	_, ok := traj.Last()
	assert.False(t, ok)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	t.Parallel()

	store := tracking.NewStore(3)
	for frame := 1; frame <= 5; frame++ {
		store.Update(1, pointAt(frame))
	}
	store.Update(2, pointAt(9))

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 3, store.Get(1).Len())
	assert.Equal(t, 1, store.Get(2).Len())

	last, ok := store.Get(1).Last()
	require.True(t, ok)
	assert.Equal(t, 5, last.Frame)
	assert.Equal(t, 3, store.Get(1).At(0).Frame)
}

func TestNonPositiveHistoryUsesDefault(t *testing.T) {
	t.Parallel()

	store := tracking.NewStore(0)
	assert.Equal(t, tracking.DefaultMaxHistory, store.MaxHistory())
}

func TestEvictDisabledByDefault(t *testing.T) {
	t.Parallel()

	store := tracking.NewStore(5)
	store.Update(1, pointAt(1))

	assert.Equal(t, 0, store.Evict(10_000))
	assert.Equal(t, 1, store.Len())
}

func TestEvictDropsIdleTrajectories(t *testing.T) {
	t.Parallel()

	store := tracking.NewStore(5, tracking.WithIdleEviction(10))
	store.Update(1, pointAt(1))
	store.Update(2, pointAt(15))

	assert.Equal(t, 1, store.Evict(20))
	assert.Equal(t, 0, store.Get(1).Len())
	assert.Equal(t, 1, store.Get(2).Len())
}
