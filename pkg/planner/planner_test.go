package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v1(x int64) Vector { return Vector{x} }

// TestFillAndFragment ports the flux-sched planner regression scenario
//: three spans packed back to back leave a single free
// instant, then releasing the middle two reopens a gap whose usable
// duration is bounded by the plan's end.
func TestFillAndFragment(t *testing.T) {
	p, err := New(0, 10, v1(1), 1)
	require.NoError(t, err)

	at, err := p.AvailTimeFirst(v1(1), 5, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, at)
	_, err = p.AddReservation(1, at, 5, v1(1), true)
	require.NoError(t, err)

	at, err = p.AvailTimeFirst(v1(1), 2, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, at)
	_, err = p.AddReservation(2, at, 2, v1(1), true)
	require.NoError(t, err)

	at, err = p.AvailTimeFirst(v1(1), 2, false)
	require.NoError(t, err)
	assert.EqualValues(t, 7, at)
	_, err = p.AddReservation(3, at, 2, v1(1), true)
	require.NoError(t, err)

	at, err = p.AvailTimeFirst(v1(1), 2, false)
	require.NoError(t, err)
	assert.EqualValues(t, -1, at)

	at, err = p.AvailTimeFirst(v1(1), 1, false)
	require.NoError(t, err)
	assert.EqualValues(t, 9, at)
	_, err = p.AddReservation(4, at, 1, v1(1), true)
	require.NoError(t, err)

	r2, ok := p.ReservationByID(2)
	require.True(t, ok)
	assert.EqualValues(t, 5, r2.Start())

	require.NoError(t, p.RemoveReservation(2))
	require.NoError(t, p.RemoveReservation(3))

	at, err = p.AvailTimeFirst(v1(1), 5, false)
	require.NoError(t, err)
	assert.EqualValues(t, -1, at, "window touching plan_end exactly can't hold duration 5 after reservation 4 occupies [9,10)")

	at, err = p.AvailTimeFirst(v1(1), 4, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, at)
	_, err = p.AddReservation(5, at, 4, v1(1), true)
	require.NoError(t, err)
}

// TestLargerTotals: nine equal spans leave exactly one unit free; a
// tenth span of the same size exhausts it entirely.
func TestLargerTotals(t *testing.T) {
	p, err := New(0, 1_000_000, v1(1000), 1)
	require.NoError(t, err)

	for i := int64(1); i <= 9; i++ {
		_, err := p.AddReservation(i, 0, 100, v1(100), true)
		require.NoError(t, err)
	}

	at, err := p.AvailTimeFirst(v1(100), 100, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, at)

	_, err = p.AddReservation(10, 0, 100, v1(100), true)
	require.NoError(t, err)

	at, err = p.AvailTimeFirst(v1(1), 1000, false)
	require.NoError(t, err)
	assert.EqualValues(t, 100, at)
}

// TestMultiDim exercises a five-dimensional request where one dimension
// is exhausted at t=0, forcing the query past it.
func TestMultiDim(t *testing.T) {
	total := Vector{2, 20, 200, 2000, 20000}
	p, err := New(0, 1_000_000, total, 5)
	require.NoError(t, err)

	req := Vector{1, 10, 100, 1000, 10000}
	_, err = p.AddReservation(1, 0, 2, req, true)
	require.NoError(t, err)
	_, err = p.AddReservation(2, 0, 2, req, true)
	require.NoError(t, err)

	query := Vector{0, 20, 100, 1000, 10000}
	at, err := p.AvailTimeFirst(query, 2, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, at)
}

// TestInvariantScheduledAndRemainingSumToTotal checks // S[d] + R[d] == Total[d] invariant across a sequence of mutations.
func TestInvariantScheduledAndRemainingSumToTotal(t *testing.T) {
	p, err := New(0, 100, v1(4), 1)
	require.NoError(t, err)

	_, err = p.AddReservation(1, 0, 10, v1(4), true)
	require.NoError(t, err)
	_, err = p.AddReservation(2, 10, 10, v1(2), true)
	require.NoError(t, err)

	p.points.all(func(pt *ScheduledPoint) bool {
		assert.EqualValues(t, p.total[0], pt.S[0]+pt.R[0])
		assert.GreaterOrEqual(t, pt.S[0], int64(0))
		assert.LessOrEqual(t, pt.S[0], p.total[0])
		return true
	})

	require.NoError(t, p.RemoveReservation(1))
	require.NoError(t, p.RemoveReservation(2))

	assert.Equal(t, 1, p.points.len(), "removing every reservation restores the single sentinel point")
	assert.Equal(t, 0, p.ReservationCount())
}

// TestAddRemoveRoundTrip checks that adding then removing the same
// reservation is a no-op on the point set.
func TestAddRemoveRoundTrip(t *testing.T) {
	p, err := New(0, 50, v1(8), 1)
	require.NoError(t, err)

	before := p.points.len()
	_, err = p.AddReservation(1, 5, 10, v1(3), true)
	require.NoError(t, err)
	require.NoError(t, p.RemoveReservation(1))

	assert.Equal(t, before, p.points.len())
	assert.True(t, p.reserved.verify())
	assert.True(t, p.mintime.verify())
}

// TestReAddArbitraryOrder checks that tearing down and re-adding a set
// of reservations in a different order produces the same point set.
func TestReAddArbitraryOrder(t *testing.T) {
	spans := []struct {
		id, start, dur int64
		req            int64
	}{
		{1, 0, 5, 2}, {2, 5, 3, 1}, {3, 2, 2, 1},
	}

	p, err := New(0, 20, v1(4), 1)
	require.NoError(t, err)
	for _, s := range spans {
		_, err := p.AddReservation(s.id, s.start, s.dur, v1(s.req), true)
		require.NoError(t, err)
	}
	var forward []int64
	p.points.all(func(pt *ScheduledPoint) bool {
		forward = append(forward, pt.t)
		return true
	})

	for _, s := range spans {
		require.NoError(t, p.RemoveReservation(s.id))
	}
	reordered := []int{2, 0, 1}
	for _, idx := range reordered {
		s := spans[idx]
		_, err := p.AddReservation(s.id, s.start, s.dur, v1(s.req), true)
		require.NoError(t, err)
	}
	var again []int64
	p.points.all(func(pt *ScheduledPoint) bool {
		again = append(again, pt.t)
		return true
	})
	assert.Equal(t, forward, again)
}

// TestBoundaryBehavior checks edge instants around the plan boundary.
func TestBoundaryBehavior(t *testing.T) {
	p, err := New(0, 10, v1(4), 1)
	require.NoError(t, err)

	_, err = p.AddReservation(1, 0, 1, Vector{}, true)
	require.Error(t, err)

	_, err = p.AddReservation(2, 0, 0, v1(1), true)
	require.Error(t, err)

	// A reservation's last used instant (start+duration-1) touching
	// plan_end exactly is accepted; one past it is not.
	_, err = p.AddReservation(3, 5, 6, v1(1), true)
	require.NoError(t, err)

	_, err = p.AddReservation(4, 5, 7, v1(1), true)
	require.Error(t, err)

	require.NoError(t, p.RemoveReservation(3))
	ok, err := p.AvailResourcesAt(0, 10, v1(4), true)
	require.NoError(t, err)
	assert.True(t, ok, "exclusive request succeeds when Total is currently unallocated")

	_, err = p.AddReservation(5, 0, 1, v1(1), true)
	require.NoError(t, err)
	ok, err = p.AvailResourcesAt(0, 1, v1(4), true)
	require.NoError(t, err)
	assert.False(t, ok, "exclusive request fails once anything is allocated")
}

// TestUnsatisfiableRequestExceedsTotal checks that a request larger than
// Total in any dimension is rejected as OutOfRange.
func TestUnsatisfiableRequestExceedsTotal(t *testing.T) {
	p, err := New(0, 10, v1(2), 1)
	require.NoError(t, err)

	_, err = p.AddReservation(1, 0, 1, v1(3), true)
	require.Error(t, err)

	_, err = p.AvailTimeFirst(v1(3), 1, false)
	require.Error(t, err)
}

func TestIntervalAndMinTimeIndexInvariantsHold(t *testing.T) {
	p, err := New(0, 30, v1(6), 1)
	require.NoError(t, err)
	for i := int64(0); i < 6; i++ {
		_, err := p.AddReservation(i+1, i*2, 4, v1(1), false)
		require.NoError(t, err)
	}
	assert.True(t, p.reserved.verify())
	assert.True(t, p.mintime.verify())
}
