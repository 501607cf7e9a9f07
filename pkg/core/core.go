// Package core implements the single-threaded cooperative reactor: it owns
// the resource tree, the job table, and a storage handle, and drives a
// background pkg/scheduler.Loop.
package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quartzsched/quartz/pkg/events"
	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/jsc"
	"github.com/quartzsched/quartz/pkg/launch"
	"github.com/quartzsched/quartz/pkg/log"
	"github.com/quartzsched/quartz/pkg/metrics"
	"github.com/quartzsched/quartz/pkg/policy"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/quartzsched/quartz/pkg/scheduler"
	"github.com/quartzsched/quartz/pkg/storage"
	"github.com/rs/zerolog"
)

// EventKind tags one reactor event.
type EventKind int

const (
	EventJobStatus EventKind = iota
	EventHeartbeat
	EventResourceFreed
	EventPluginLoad
	EventPluginUnload
)

// Event is the tagged union fed into Core.Submit; only the fields relevant
// to Kind are populated.
type Event struct {
	Kind EventKind

	// EventJobStatus
	JobID    int64
	OldState job.State
	NewState job.State

	// EventResourceFreed
	FreedBy int64

	// EventPluginLoad
	PluginPath string
	PluginArgs string

	// EventPluginUnload
	PluginName string
}

// Config carries the policy-agnostic options that affect Core's own
// behavior rather than a specific policy's.
type Config struct {
	QueueDepth int
	DelaySched bool
	SchedOnce  bool
}

// Core is the reactor: one goroutine reads events off a buffered channel
// and processes them to completion before returning to the channel read,
// matching "yields only at explicit suspension points".
type Core struct {
	tree    *resource.Tree
	machine *job.Machine
	sched   *scheduler.Loop
	store   storage.Store
	broker  *events.Broker
	jscs    jsc.Store
	launch  launch.Launcher
	ranks   *resource.RankTable
	reg     *policy.Registry

	schedOnce bool

	mu      sync.Mutex
	jobs    map[int64]*job.Job
	pending []int64 // job ids in SchedReq, queue order
	running []int64 // job ids currently holding an allocation

	events chan Event
	stopCh chan struct{}
	log    zerolog.Logger
}

// New wires a Core over tree starting with the "fcfs" policy, bounded by
// cfg's queue-depth/delay-sched, and backed by store, broker, jscStore,
// and launcher.
func New(tree *resource.Tree, cfg Config, store storage.Store, broker *events.Broker,
	jscStore jsc.Store, launcher launch.Launcher, clock scheduler.Clock) (*Core, error) {

	reg := policy.NewRegistry()
	pol, err := reg.Load("fcfs", "")
	if err != nil {
		return nil, fmt.Errorf("core.New: %w", err)
	}

	c := &Core{
		tree:      tree,
		machine:   job.NewMachine(),
		store:     store,
		broker:    broker,
		jscs:      jscStore,
		launch:    launcher,
		ranks:     resource.NewRankTable(),
		reg:       reg,
		schedOnce: cfg.SchedOnce,
		jobs:      map[int64]*job.Job{},
		events:    make(chan Event, 256),
		stopCh:    make(chan struct{}),
		log:       log.WithComponent("core"),
	}
	c.sched = scheduler.New(tree, c, pol, cfg.QueueDepth, cfg.DelaySched, clock)
	return c, nil
}

// RankTable exposes the (hostname, digest) -> rank side table
// for the caller to populate from hardware inventory.
func (c *Core) RankTable() *resource.RankTable { return c.ranks }

// LoadPolicy installs name as the active scheduling policy.
func (c *Core) LoadPolicy(name, args string) error {
	pol, err := c.reg.Load(name, args)
	if err != nil {
		return err
	}
	c.sched.SetPolicy(pol)
	return nil
}

// Run drives the reactor loop until ctx is cancelled or Stop is called.
// The periodic tick implements trigger (b).
func (c *Core) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case ev := <-c.events:
			c.handle(ctx, ev)
		case <-ticker.C:
			c.sched.Notify()
			c.sched.Idle()
		}
	}
}

// Stop ends Run's loop.
func (c *Core) Stop() { close(c.stopCh) }

// Submit enqueues ev for the reactor goroutine. It never blocks: a full channel drops the event and logs.
func (c *Core) Submit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Msg("event channel full, dropping event")
	}
}

// JobSummary is the per-job snapshot exposed to external listers (cmd/quartz's
// "job list"); it deliberately carries less than job.Job itself.
type JobSummary struct {
	ID    int64
	State string
}

// Jobs returns a snapshot of every job Core currently knows about.
func (c *Core) Jobs() []JobSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]JobSummary, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, JobSummary{ID: j.ID, State: j.State.String()})
	}
	return out
}

func (c *Core) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventJobStatus:
		c.handleJobStatus(ctx, ev.JobID, ev.OldState, ev.NewState)
	case EventHeartbeat, EventResourceFreed:
		c.sched.Notify()
	case EventPluginLoad:
		if err := c.LoadPolicy(ev.PluginPath, ev.PluginArgs); err != nil {
			c.log.Error().Err(err).Str("policy", ev.PluginPath).Msg("plugin.load failed")
		}
	case EventPluginUnload:
		c.reg.Unload(ev.PluginName)
	}
}

func (c *Core) handleJobStatus(ctx context.Context, jobID int64, old, new job.State) {
	c.mu.Lock()
	j, exists := c.jobs[jobID]
	c.mu.Unlock()

	if !exists {
		if !job.IsNewJobSignal(old, new) {
			c.log.Warn().Int64("job_id", jobID).Msg("status tuple for unknown job")
			return
		}
		j = &job.Job{ID: jobID, State: job.Null, SubmitTime: time.Now()}
		c.mu.Lock()
		c.jobs[jobID] = j
		c.mu.Unlock()
	}

	if err := c.machine.Transition(j, old, new); err != nil {
		c.log.Error().Err(err).Int64("job_id", jobID).
			Str("old", old.String()).Str("new", new.String()).
			Msg("rejected job status transition")
		return
	}
	c.saveState(j)

	switch new {
	case job.Submitted:
		c.onSubmitted(ctx, j)
	case job.Complete, job.Cancelled:
		c.onJobEnded(ctx, j, new)
	}
}

// onSubmitted is first suspension point: fetch the job's
// resource requirement from the external job-description store, then
// self-drive Submitted->Pending->SchedReq and wake the scheduler.
func (c *Core) onSubmitted(ctx context.Context, j *job.Job) {
	requested, req, err := c.jscs.FetchRequest(ctx, j.ID)
	if err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("fetch_request failed")
		return
	}
	if req != nil {
		if err := req.Validate(); err != nil {
			c.log.Error().Err(err).Int64("job_id", j.ID).Msg("invalid resource request")
			return
		}
	}
	j.Requested = requested
	j.Request = req

	if err := c.machine.Transition(j, job.Submitted, job.Pending); err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("submitted->pending failed")
		return
	}
	c.saveState(j)
	c.enqueue(j)
}

func (c *Core) enqueue(j *job.Job) {
	if err := c.machine.Transition(j, job.Pending, job.SchedReq); err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("pending->sched-req failed")
		return
	}
	c.saveState(j)

	c.mu.Lock()
	c.pending = append(c.pending, j.ID)
	c.mu.Unlock()

	c.sched.Notify()
}

// onJobEnded handles the Running->Complete and Running->Cancelled paths,
// plus the broader reachability of Cancelled (it may arrive from Selected
// onward).
func (c *Core) onJobEnded(ctx context.Context, j *job.Job, new job.State) {
	c.mu.Lock()
	c.removeFromPendingLocked(j.ID)
	c.removeFromRunningLocked(j.ID)
	c.mu.Unlock()

	if !c.schedOnce {
		c.tree.Root.Release(j.ID)
		j.Selected = nil
		c.publishResourceFreed(j.ID)
	}
	if j.RunRequestID != 0 {
		if c.launch != nil {
			_ = c.launch.Cancel(ctx, j.RunRequestID)
		}
		j.RunRequestID = 0
	}
}

func (c *Core) removeFromPendingLocked(jobID int64) {
	c.pending = removeID(c.pending, jobID)
}

func (c *Core) removeFromRunningLocked(jobID int64) {
	c.running = removeID(c.running, jobID)
}

func removeID(ids []int64, target int64) []int64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (c *Core) saveState(j *job.Job) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveJobState(j.ID, j.State.String(), time.Now()); err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("save job state failed")
	}
}

func (c *Core) publishResourceFreed(jobID int64) {
	if c.broker != nil {
		c.broker.Publish(&events.Event{
			Type:    events.EventResourceFreed,
			Message: fmt.Sprintf("job %d released its sub-tree", jobID),
		})
	}
	c.Submit(Event{Kind: EventResourceFreed, FreedBy: jobID})
}

// Stats implements metrics.StatsSource.
func (c *Core) Stats() metrics.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byState := map[string]int{}
	for _, j := range c.jobs {
		byState[j.State.String()]++
	}

	byPath := map[string]int{}
	countReservations(c.tree.Root, byPath)

	return metrics.Stats{
		JobsByState:        byState,
		PendingQueueDepth:  len(c.pending),
		ReservationsByPath: byPath,
	}
}

func countReservations(r *resource.Resource, out map[string]int) {
	if n := r.Plan.ReservationCount(); n > 0 {
		out[r.Path] = n
	}
	for _, ch := range r.Children {
		countReservations(ch, out)
	}
}

// --- scheduler.PendingQueue ---

// Pending returns jobs currently in SchedReq, in queue order.
func (c *Core) Pending() []*job.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*job.Job, 0, len(c.pending))
	for _, id := range c.pending {
		if j := c.jobs[id]; j != nil {
			out = append(out, j)
		}
	}
	return out
}

// RequestFor returns j's full request tree, fetched at Reserved->Submitted.
func (c *Core) RequestFor(j *job.Job) *request.Node {
	return j.Request
}

// RunningEndTimes returns the allocation-window ends of currently running
// (allocated) jobs, feeding backfill's future-window search.
func (c *Core) RunningEndTimes() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, 0, len(c.running))
	for _, id := range c.running {
		if j := c.jobs[id]; j != nil {
			out = append(out, j.AllocatedUntil)
		}
	}
	return out
}

// Transition advances j's state, logging and persisting on success.
func (c *Core) Transition(j *job.Job, old, new job.State) error {
	if err := c.machine.Transition(j, old, new); err != nil {
		return err
	}
	c.saveState(j)
	if new == job.Selected {
		c.mu.Lock()
		c.removeFromPendingLocked(j.ID)
		c.running = append(c.running, j.ID)
		c.mu.Unlock()
	}
	return nil
}

// OnAllocated commits the allocation metadata and sends the run request.
func (c *Core) OnAllocated(j *job.Job, now int64) {
	j.AllocatedUntil = now + j.Requested.WalltimeSecs

	if err := c.saveAllocation(j); err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("commit allocation metadata failed")
	}

	if err := c.machine.Transition(j, job.Selected, job.Allocated); err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("selected->allocated failed")
		return
	}
	c.saveState(j)

	if c.launch == nil {
		return
	}
	runID, err := c.launch.Run(context.Background(), j.ID)
	if err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("exec.run failed")
		return
	}
	j.RunRequestID = runID
	if err := c.machine.Transition(j, job.Allocated, job.RunRequest); err != nil {
		c.log.Error().Err(err).Int64("job_id", j.ID).Msg("allocated->run-request failed")
		return
	}
	c.saveState(j)
}

// saveAllocation persists the selected sub-tree's path and the rank
// allocations derived from it; this is the second of Core's two
// persistence suspension points.
func (c *Core) saveAllocation(j *job.Job) error {
	if c.store == nil || j.Selected == nil {
		return nil
	}
	if err := c.store.SaveRDL(j.ID, []byte(j.Selected.Path)); err != nil {
		return err
	}
	allocs := collectAllocations(j.Selected, j.Requested.CoresPerNode, c.ranks)
	return c.store.SaveAllocation(j.ID, allocs)
}

// collectAllocations walks sel for node-type resources with a known rank,
// emitting {containing_rank, ncores} per rank; ncores is the job's flat
// cores-per-node demand rather than a recount of the sub-tree, since
// staged sizes are cleared once committed.
func collectAllocations(sel *resource.Resource, coresPerNode int64, ranks *resource.RankTable) []resource.Allocation {
	if coresPerNode <= 0 {
		coresPerNode = 1
	}
	var out []resource.Allocation
	var walk func(r *resource.Resource)
	walk = func(r *resource.Resource) {
		if strings.EqualFold(r.Type, "node") {
			if rank, ok := ranks.Lookup(r.Name, r.Digest); ok {
				out = append(out, resource.Allocation{ContainingRank: rank, NCores: coresPerNode})
			}
		}
		for _, c := range r.Children {
			walk(c)
		}
	}
	walk(sel)
	return out
}
