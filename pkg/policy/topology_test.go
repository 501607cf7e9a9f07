package policy

import (
	"fmt"
	"testing"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTopologyTree constructs a cluster -> pods -> switches -> nodes tree.
// Each node has a capacity of 1 over a 1000-tick horizon, so a size-1 node
// request fully consumes it - modeling whole-node scheduling.
func buildTopologyTree(t *testing.T, pods, switchesPerPod, nodesPerSwitch int) *resource.Tree {
	t.Helper()
	var nextID int64 = 1
	next := func() int64 {
		id := nextID
		nextID++
		return id
	}

	cluster, err := resource.New(next(), "cluster", "c0", 1, 1000)
	require.NoError(t, err)

	for p := 0; p < pods; p++ {
		pod, err := resource.New(next(), "pod", fmt.Sprintf("pod%d", p), 1, 1000)
		require.NoError(t, err)
		for s := 0; s < switchesPerPod; s++ {
			sw, err := resource.New(next(), "switch", fmt.Sprintf("pod%d-sw%d", p, s), 1, 1000)
			require.NoError(t, err)
			for n := 0; n < nodesPerSwitch; n++ {
				node, err := resource.New(next(), "node", fmt.Sprintf("pod%d-sw%d-node%d", p, s, n), 1, 1000)
				require.NoError(t, err)
				sw.AddChild(node)
			}
			pod.AddChild(sw)
		}
		cluster.AddChild(pod)
	}
	return resource.NewTree(cluster, nil)
}

func TestTopologyClassifyTiers(t *testing.T) {
	tree := buildTopologyTree(t, 2, 3, 4) // S5 shape: 2 pods, 3 switches/pod, 4 nodes/switch
	topo := NewTopology(0)

	tier, switches, pods := topo.classify(tree, 4)
	assert.Equal(t, T1, tier)
	assert.Len(t, switches, 6)
	assert.Len(t, pods, 2)

	tier, _, _ = topo.classify(tree, 8)
	assert.Equal(t, T2, tier)

	tier, _, _ = topo.classify(tree, 20)
	assert.Equal(t, T3, tier)
}

// TestTopologyT1PlacesInLowestAvailableSwitch exercises the S5 scenario: two
// 4-node T1 jobs against an empty cluster -> 2 pods -> 3 switches -> 4 nodes
// tree each land in a different switch.
func TestTopologyT1PlacesInLowestAvailableSwitch(t *testing.T) {
	tree := buildTopologyTree(t, 2, 3, 4)
	topo := NewTopology(0)

	req1 := request.NewNode("node", 4, 1)
	cand1, start1, err := topo.Find(tree, req1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, start1)
	require.True(t, topo.Select(cand1, req1))

	res1 := selectedResources(cand1, req1.RequiredQty)
	require.Len(t, res1, 4)
	sw1 := ancestorOfType(res1[0], "switch")
	require.NotNil(t, sw1)
	for _, r := range res1 {
		assert.Equal(t, sw1.ID, ancestorOfType(r, "switch").ID, "a T1 job is confined to one switch")
	}

	j1 := &job.Job{ID: 1, Requested: job.Requested{WalltimeSecs: 10}}
	require.NoError(t, topo.Allocate(tree, j1, 0))

	req2 := request.NewNode("node", 4, 1)
	cand2, start2, err := topo.Find(tree, req2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, start2)
	require.True(t, topo.Select(cand2, req2))

	res2 := selectedResources(cand2, req2.RequiredQty)
	require.Len(t, res2, 4)
	sw2 := ancestorOfType(res2[0], "switch")
	require.NotNil(t, sw2)

	assert.NotEqual(t, sw1.ID, sw2.ID, "second T1 job lands in a different switch")
}

// TestTopologyT2TracksOccupiedSwitchesByID pins down the occupant-tracking
// bug: switchT2Occupant must be keyed by the switch IDs a T2 job actually
// lands on, not by the pod it was found in.
func TestTopologyT2TracksOccupiedSwitchesByID(t *testing.T) {
	tree := buildTopologyTree(t, 1, 2, 2) // 1 pod, 2 switches, 2 nodes/switch
	topo := NewTopology(0)
	switches := findByType(tree.Root, "switch")
	require.Len(t, switches, 2)

	req := request.NewNode("node", 3, 1) // spans both switches in the one pod: T2
	cand, start, err := topo.Find(tree, req, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, start)
	require.True(t, topo.Select(cand, req))

	res := selectedResources(cand, req.RequiredQty)
	require.Len(t, res, 3)

	wantOccupied := map[int64]bool{}
	for _, r := range res {
		sw := ancestorOfType(r, "switch")
		require.NotNil(t, sw)
		wantOccupied[sw.ID] = true
	}
	assert.Len(t, wantOccupied, 2, "a 3-node job over 2x2 switches must touch both switches")

	assert.Equal(t, wantOccupied, topo.switchT2Occupant,
		"switchT2Occupant must be keyed by the switch IDs actually selected, not the pod ID")
	for _, sw := range switches {
		assert.False(t, topo.podT3Occupant[sw.ID], "switch IDs must never leak into podT3Occupant")
	}
}

// TestTopologyT2PrefersUnoccupiedSwitches verifies the T2 placement rule:
// a later T2 job prefers a pod (and, within it, switches) with no existing
// T2 footprint over reusing one that's already partially consumed.
func TestTopologyT2PrefersUnoccupiedSwitches(t *testing.T) {
	tree := buildTopologyTree(t, 2, 2, 2) // 2 pods, 2 switches/pod, 2 nodes/switch
	topo := NewTopology(0)

	req1 := request.NewNode("node", 3, 1)
	cand1, start1, err := topo.Find(tree, req1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, start1)
	require.True(t, topo.Select(cand1, req1))
	j1 := &job.Job{ID: 1, Requested: job.Requested{WalltimeSecs: 10}}
	require.NoError(t, topo.Allocate(tree, j1, 0))

	firstPod := map[int64]bool{}
	for _, r := range selectedResources(cand1, req1.RequiredQty) {
		firstPod[ancestorOfType(r, "pod").ID] = true
	}
	require.Len(t, firstPod, 1, "a T2 job is confined to a single pod")

	// The first pod now has only 1 free node; a second 3-node T2 job can't
	// fit there and must move to the other, still-empty pod.
	req2 := request.NewNode("node", 3, 1)
	cand2, start2, err := topo.Find(tree, req2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, start2)
	require.True(t, topo.Select(cand2, req2))

	for _, r := range selectedResources(cand2, req2.RequiredQty) {
		podID := ancestorOfType(r, "pod").ID
		assert.False(t, firstPod[podID], "second T2 job avoids the pod already touched by the first")
	}

	assert.Len(t, topo.switchT2Occupant, 4, "both jobs together must mark all 4 switches used across the two pods")
}

// TestTopologyT3MarksOnlyTheUsedPods is the regression test for the other
// half of the occupant bug: a T3 placement must mark only the pod(s) its
// own selection actually touched, not every pod in the tree.
func TestTopologyT3MarksOnlyTheUsedPods(t *testing.T) {
	tree := buildTopologyTree(t, 3, 1, 4) // 3 pods, 1 switch/pod, 4 nodes/switch
	topo := NewTopology(0)
	pods := findByType(tree.Root, "pod")
	require.Len(t, pods, 3)

	req := request.NewNode("node", 5, 1) // spans pods: T3
	cand, start, err := topo.Find(tree, req, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, start)
	require.True(t, topo.Select(cand, req))

	res := selectedResources(cand, req.RequiredQty)
	require.Len(t, res, 5)

	touched := map[int64]bool{}
	for _, r := range res {
		pod := ancestorOfType(r, "pod")
		require.NotNil(t, pod)
		touched[pod.ID] = true
	}
	assert.Len(t, touched, 2, "5 nodes over 3 pods of 4 touches exactly 2 pods")

	assert.Equal(t, touched, topo.podT3Occupant,
		"podT3Occupant must record only the pods this placement actually used")
	assert.False(t, topo.podT3Occupant[pods[2].ID], "the untouched third pod must not be marked")
}
