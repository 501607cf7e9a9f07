package resource

import (
	"testing"

	"github.com/quartzsched/quartz/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) *Resource {
	t.Helper()
	cluster, err := New(1, "cluster", "c0", 1, 1000)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		node, err := New(int64(10+i), "node", nodeName(i), 1, 1000)
		require.NoError(t, err)
		core, err := New(int64(100+i), "core", "core0", 4, 1000)
		require.NoError(t, err)
		node.AddChild(core)
		cluster.AddChild(node)
	}
	return cluster
}

func nodeName(i int) string {
	return []string{"node0", "node1"}[i]
}

func TestSearchFindsDirectTypeMatches(t *testing.T) {
	root := buildTree(t)
	tree := NewTree(root, nil)

	req := request.NewNode("node", 2, 1)
	cand := tree.Search(req)

	assert.Equal(t, 2, req.NFound())
	assert.Len(t, cand.Matches, 2)
}

func TestSearchSparseDescentThroughIntermediateLayer(t *testing.T) {
	root := buildTree(t)
	tree := NewTree(root, nil)

	// A request for "core" skips the intermediate "node" layer.
	req := request.NewNode("core", 2, 1)
	cand := tree.Search(req)

	assert.Equal(t, 2, req.NFound())
	assert.Len(t, cand.Matches, 2)
}

func TestSearchRequiresChildSubrequestsSatisfied(t *testing.T) {
	root := buildTree(t)
	tree := NewTree(root, nil)

	child := request.NewNode("core", 1, 8) // more cores than any node has
	parent := request.NewNode("node", 2, 1)
	parent.AddChild(child)

	cand := tree.Search(parent)
	assert.Equal(t, 0, parent.NFound(), "no node can supply 8 cores so no node-level match counts")
	assert.Len(t, cand.Matches, 2, "both nodes are still structural candidates")
}

func TestSelectStagesExactlyRequiredQty(t *testing.T) {
	root := buildTree(t)
	tree := NewTree(root, nil)

	req := request.NewNode("node", 1, 1)
	cand := tree.Search(req)
	require.GreaterOrEqual(t, len(cand.Matches), 1)

	Select(cand, req)

	staged := 0
	for _, m := range cand.Matches {
		if m.Resource.Staged() > 0 {
			staged++
		}
	}
	assert.Equal(t, 1, staged)
}

func TestUnstageAllClearsWholeSubtree(t *testing.T) {
	root := buildTree(t)
	root.Children[0].Stage(1)
	root.Children[0].Children[0].Stage(2)

	root.UnstageAll()

	assert.EqualValues(t, 0, root.Children[0].Staged())
	assert.EqualValues(t, 0, root.Children[0].Children[0].Staged())
}

func TestAllocateThenReleaseRoundTrips(t *testing.T) {
	root := buildTree(t)
	node := root.Children[0]
	node.Stage(1)

	require.NoError(t, node.Allocate(42, 0, 10))
	assert.Equal(t, 1, node.Plan.ReservationCount())

	node.Release(42)
	assert.Equal(t, 0, node.Plan.ReservationCount())
}
