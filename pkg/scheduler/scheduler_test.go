package scheduler

import (
	"testing"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/policy"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue is a minimal PendingQueue for exercising Loop.Pass in isolation
// from pkg/core.
type fakeQueue struct {
	jobs       []*job.Job
	requests   map[int64]*request.Node
	endTimes   []int64
	allocated  []int64
	transitions []string
}

func (q *fakeQueue) Pending() []*job.Job { return q.jobs }

func (q *fakeQueue) RequestFor(j *job.Job) *request.Node { return q.requests[j.ID] }

func (q *fakeQueue) RunningEndTimes() []int64 { return q.endTimes }

func (q *fakeQueue) Transition(j *job.Job, old, new job.State) error {
	q.transitions = append(q.transitions, old.String()+"->"+new.String())
	j.State = new
	return nil
}

func (q *fakeQueue) OnAllocated(j *job.Job, now int64) {
	q.allocated = append(q.allocated, j.ID)
}

func oneNodeTree(t *testing.T) *resource.Tree {
	t.Helper()
	cluster, err := resource.New(1, "cluster", "c0", 1, 1000)
	require.NoError(t, err)
	node, err := resource.New(2, "node", "node0", 4, 1000)
	require.NoError(t, err)
	cluster.AddChild(node)
	return resource.NewTree(cluster, nil)
}

func TestPassAllocatesFCFSJobThatFitsNow(t *testing.T) {
	tree := oneNodeTree(t)
	j := &job.Job{ID: 1, State: job.SchedReq, Requested: job.Requested{WalltimeSecs: 10}}
	q := &fakeQueue{
		jobs:     []*job.Job{j},
		requests: map[int64]*request.Node{1: request.NewNode("node", 1, 1)},
	}

	loop := New(tree, q, policy.NewFCFS(), 10, false, func() int64 { return 0 })
	loop.Pass()

	assert.Equal(t, []int64{1}, q.allocated)
	assert.Contains(t, q.transitions, "sched-req->selected")
}

func TestPassSkipsJobThatCannotFit(t *testing.T) {
	tree := oneNodeTree(t)
	j := &job.Job{ID: 1, State: job.SchedReq, Requested: job.Requested{WalltimeSecs: 10}}
	q := &fakeQueue{
		jobs:     []*job.Job{j},
		requests: map[int64]*request.Node{1: request.NewNode("node", 2, 1)}, // only 1 node exists
	}

	loop := New(tree, q, policy.NewFCFS(), 10, false, func() int64 { return 0 })
	loop.Pass()

	assert.Empty(t, q.allocated)
	assert.Empty(t, q.transitions)
}

func TestPassReleasesReservationsBeforeEachPass(t *testing.T) {
	tree := oneNodeTree(t)
	node := tree.Root.Children[0]
	node.Stage(4)
	require.NoError(t, node.Allocate(99, 0, 100))
	require.Equal(t, 1, node.Plan.ReservationCount())

	q := &fakeQueue{}
	loop := New(tree, q, policy.NewFCFS(), 10, false, func() int64 { return 0 })
	loop.Pass()

	assert.Equal(t, 0, node.Plan.ReservationCount(), "every pass starts by releasing all reservations")
}

func TestQueueDepthBoundsThePass(t *testing.T) {
	tree := oneNodeTree(t)
	jobs := make([]*job.Job, 3)
	requests := map[int64]*request.Node{}
	for i := range jobs {
		jobs[i] = &job.Job{ID: int64(i + 1), State: job.SchedReq, Requested: job.Requested{WalltimeSecs: 10}}
		requests[int64(i+1)] = request.NewNode("node", 1, 1)
	}
	q := &fakeQueue{jobs: jobs, requests: requests}

	loop := New(tree, q, policy.NewFCFS(), 1, false, func() int64 { return 0 })
	loop.Pass()

	assert.Len(t, q.allocated, 1, "only the first queue-depth entries are considered")
}

func TestDelaySchedBatchesUntilIdle(t *testing.T) {
	tree := oneNodeTree(t)
	j := &job.Job{ID: 1, State: job.SchedReq, Requested: job.Requested{WalltimeSecs: 10}}
	q := &fakeQueue{
		jobs:     []*job.Job{j},
		requests: map[int64]*request.Node{1: request.NewNode("node", 1, 1)},
	}

	loop := New(tree, q, policy.NewFCFS(), 10, true, func() int64 { return 0 })
	loop.Notify()
	assert.Empty(t, q.allocated, "delay-sched defers the pass")

	loop.Idle()
	assert.Equal(t, []int64{1}, q.allocated, "idle drains the pending pass")
}
