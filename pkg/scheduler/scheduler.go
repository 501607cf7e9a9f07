// Package scheduler implements the scheduling loop: a queue-depth-bounded
// pass over pending jobs that asks the active policy to find, select, and
// allocate-or-reserve a resource sub-tree for each.
package scheduler

import (
	"sync"
	"time"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/log"
	"github.com/quartzsched/quartz/pkg/metrics"
	"github.com/quartzsched/quartz/pkg/policy"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/rs/zerolog"
)

// Clock supplies "now"; tests inject a virtual clock.
type Clock func() int64

// PendingQueue is the ordered view of jobs a Loop walks each pass. The
// scheduler only needs enough to walk it in order and ask for each job's
// request shape — job-table ownership stays with pkg/core.
type PendingQueue interface {
	// Pending returns jobs currently in SchedReq, in queue order.
	Pending() []*job.Job
	// RequestFor builds the request tree a job needs satisfied.
	RequestFor(j *job.Job) *request.Node
	// RunningEndTimes returns the completion times of currently running
	// jobs, feeding backfill's future-window search.
	RunningEndTimes() []int64
	// Transition advances j's state, returning an error if the move is
	// refused; the loop logs that error.
	Transition(j *job.Job, old, new job.State) error
	// OnAllocated is called once a job is allocated at instant now and
	// should be sent a run request.
	OnAllocated(j *job.Job, now int64)
}

// Loop runs scheduling passes against a resource tree and a pending queue,
// using whichever Policy is currently active.
type Loop struct {
	tree  *resource.Tree
	queue PendingQueue
	clock Clock
	log   zerolog.Logger

	mu         sync.Mutex
	pol        policy.Policy
	queueDepth int
	delaySched bool
	dirty      bool
}

// New constructs a Loop over tree and queue using pol, bounded to
// queueDepth pending entries per pass.
func New(tree *resource.Tree, queue PendingQueue, pol policy.Policy, queueDepth int, delaySched bool, clock Clock) *Loop {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Loop{
		tree:       tree,
		queue:      queue,
		clock:      clock,
		log:        log.WithComponent("scheduler"),
		pol:        pol,
		queueDepth: queueDepth,
		delaySched: delaySched,
	}
}

// SetPolicy hot-swaps the active policy.
func (l *Loop) SetPolicy(pol policy.Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pol = pol
}

// MarkDirty records that a scheduling pass is owed; under delay-sched it is
// drained at the next Idle call instead of running immediately (the
// delay-sched batching mode).
func (l *Loop) MarkDirty() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirty = true
}

// Idle runs one pass if delay-sched batching left one pending.
func (l *Loop) Idle() {
	l.mu.Lock()
	dirty := l.delaySched && l.dirty
	l.dirty = false
	l.mu.Unlock()
	if dirty {
		l.Pass()
	}
}

// Notify is called on a resource-freed event or a periodic tick, or on
// SchedReq entry when delay-sched is off.
func (l *Loop) Notify() {
	l.mu.Lock()
	delay := l.delaySched
	l.mu.Unlock()
	if delay {
		l.MarkDirty()
		return
	}
	l.Pass()
}

// Pass runs exactly one scheduling pass.
func (l *Loop) Pass() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingPassLatency)

	l.mu.Lock()
	pol := l.pol
	depth := l.queueDepth
	l.mu.Unlock()

	// Step 1: release every reservation; the policy recomputes them below.
	releaseAllReservations(l.tree.Root)

	// Step 2.
	if err := pol.LoopSetup(); err != nil {
		l.log.Error().Err(err).Msg("policy loop_setup failed, aborting pass")
		return
	}
	if nct, ok := pol.(policy.NeedsCompletionTimes); ok {
		nct.SetCompletionTimes(l.queue.RunningEndTimes())
	}

	now := l.clock()
	pending := l.queue.Pending()
	if len(pending) > depth {
		pending = pending[:depth]
	}

	for _, j := range pending {
		if j.State != job.SchedReq {
			continue
		}
		verdict := l.considerOne(pol, j, now)
		if verdict == policy.Stop {
			break
		}
	}
}

func (l *Loop) considerOne(pol policy.Policy, j *job.Job, now int64) policy.Verdict {
	jlog := log.WithJobID(j.ID)
	req := l.queue.RequestFor(j)

	cand, windowStart, err := pol.Find(l.tree, req, now)
	if err != nil {
		jlog.Error().Err(err).Msg("find_resources failed, skipping job")
		metrics.JobsSkipped.Inc()
		return policy.Continue
	}
	if windowStart < 0 {
		return policy.Continue
	}

	l.tree.Root.UnstageAll()
	allFound := pol.Select(cand, req)
	if !allFound {
		l.tree.Root.UnstageAll()
		return policy.Continue
	}

	if windowStart == now {
		if len(cand.Matches) > 0 {
			// Representative sub-tree for persistence/rank lookup; a
			// multi-match request still commits every staged node, this just
			// names the first as Job.Selected.
			j.Selected = cand.Matches[0].Resource
		}
		if err := pol.Allocate(l.tree, j, now); err != nil {
			jlog.Error().Err(err).Msg("allocate_resources failed")
			l.tree.Root.UnstageAll()
			return policy.Continue
		}
		if err := l.queue.Transition(j, job.SchedReq, job.Selected); err != nil {
			jlog.Error().Err(err).Msg("transition to selected failed")
			return policy.Continue
		}
		metrics.JobsScheduled.Inc()
		l.queue.OnAllocated(j, now)
		return policy.Continue
	}

	verdict, err := pol.Reserve(l.tree, j, windowStart)
	if err != nil {
		jlog.Error().Err(err).Msg("reserve_resources failed")
		l.tree.Root.UnstageAll()
		return policy.Continue
	}
	return verdict
}

func releaseAllReservations(r *resource.Resource) {
	releaseAllFromPlanner(r)
	for _, c := range r.Children {
		releaseAllReservations(c)
	}
}

func releaseAllFromPlanner(r *resource.Resource) {
	ids := make([]int64, 0, r.Plan.ReservationCount())
	r.Plan.Walk(func(id int64) { ids = append(ids, id) })
	for _, id := range ids {
		_ = r.Plan.RemoveReservation(id)
	}
}
