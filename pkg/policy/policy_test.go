package policy

import (
	"testing"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneNodeTree(t *testing.T) *resource.Tree {
	t.Helper()
	cluster, err := resource.New(1, "cluster", "c0", 1, 1000)
	require.NoError(t, err)
	node, err := resource.New(2, "node", "node0", 4, 1000)
	require.NoError(t, err)
	cluster.AddChild(node)
	return resource.NewTree(cluster, nil)
}

func TestFCFSFindsNowOnly(t *testing.T) {
	tree := oneNodeTree(t)
	pol := NewFCFS()
	req := request.NewNode("node", 1, 1)

	cand, start, err := pol.Find(tree, req, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, start)
	assert.True(t, pol.Select(cand, req))
}

func TestFCFSReserveAlwaysStops(t *testing.T) {
	pol := NewFCFS()
	v, err := pol.Reserve(nil, &job.Job{}, 10)
	require.NoError(t, err)
	assert.Equal(t, Stop, v)
}

func TestBackfillZeroNeverReserves(t *testing.T) {
	b := NewBackfill(0)
	v, err := b.Reserve(oneNodeTree(t), &job.Job{ID: 1, Requested: job.Requested{WalltimeSecs: 10}}, 5)
	require.NoError(t, err)
	assert.Equal(t, Continue, v)
	assert.Equal(t, 0, b.reservationsThisPass)
}

func TestBackfillEasyReservesOnlyFirstJob(t *testing.T) {
	tree := oneNodeTree(t)
	b := NewBackfill(1)
	require.NoError(t, b.LoopSetup())

	tree.Root.Children[0].Stage(4)
	j1 := &job.Job{ID: 1, Requested: job.Requested{WalltimeSecs: 10}}
	_, err := b.Reserve(tree, j1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, b.reservationsThisPass)

	j2 := &job.Job{ID: 2, Requested: job.Requested{WalltimeSecs: 10}}
	_, err = b.Reserve(tree, j2, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, b.reservationsThisPass, "EASY caps at one reservation per pass")
}

func TestBackfillParsesReserveDepth(t *testing.T) {
	b := NewBackfill(0)
	require.NoError(t, b.Parse("reserve-depth=3"))
	assert.Equal(t, 3, b.K)
}

func TestBackfillFindUsesCompletionTimesWhenNowFails(t *testing.T) {
	tree := oneNodeTree(t)
	node := tree.Root.Children[0]
	// Occupy all 4 cores from t=0 to t=100.
	node.Stage(4)
	require.NoError(t, node.Allocate(99, 0, 100))

	b := NewBackfill(0)
	b.SetCompletionTimes([]int64{100, 100, 50})
	req := request.NewNode("node", 1, 4)

	_, start, err := b.Find(tree, req, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 100, start, "duplicate completion times collapse and the earliest usable one wins")
}
