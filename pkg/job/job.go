// Package job implements the per-job finite state machine: job attributes, the allowed-transition table, and a
// submit-time priority score.
package job

import (
	"time"

	"github.com/quartzsched/quartz/pkg/planner"
	"github.com/quartzsched/quartz/pkg/qerr"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
)

// State is a single tagged variant for a job's lifecycle stage, carried
// as one internal representation and translated only at the boundary.
type State int

const (
	Null State = iota
	Reserved
	Submitted
	Pending
	SchedReq
	Selected
	Allocated
	RunRequest
	Starting
	Running
	Complete
	Cancelled
	Reaped
)

func (s State) String() string {
	switch s {
	case Null:
		return "null"
	case Reserved:
		return "reserved"
	case Submitted:
		return "submitted"
	case Pending:
		return "pending"
	case SchedReq:
		return "sched-req"
	case Selected:
		return "selected"
	case Allocated:
		return "allocated"
	case RunRequest:
		return "run-request"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Cancelled:
		return "cancelled"
	case Reaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions leave this state.
func (s State) Terminal() bool { return s == Reaped }

// ParseState is the inverse of String, for CLI/RPC boundaries that carry
// state names as text.
func ParseState(s string) (State, error) {
	for _, st := range []State{Null, Reserved, Submitted, Pending, SchedReq,
		Selected, Allocated, RunRequest, Starting, Running, Complete, Cancelled, Reaped} {
		if st.String() == s {
			return st, nil
		}
	}
	return Null, qerr.Newf(qerr.InvalidArgument, "job.ParseState", "unknown state %q", s)
}

// Requested is a job's resource demand.
type Requested struct {
	Nodes        int64
	Cores        int64
	CoresPerNode int64
	WalltimeSecs int64
	Exclusive    bool
}

// Association identifies who a job belongs to for accounting/priority
// purposes.
type Association struct {
	Account string
	User    string
}

// Job is one scheduled unit of work.
type Job struct {
	ID        int64
	State     State
	Requested Requested
	Assoc     Association

	SubmitTime time.Time
	StartTime  time.Time
	EndTime    time.Time

	// Selected is the resource sub-tree chosen for this job, nil until
	// Select_resources runs.
	Selected *resource.Resource

	// Request is the full request tree fetched from the external job
	// description store on Reserved->Submitted; nil until then.
	Request *request.Node

	// AllocatedUntil is the committed reservation/allocation window's end
	// instant, set once the scheduling loop allocates this job's sub-tree.
	// It feeds backfill's future-window search via running jobs'
	// completion times.
	AllocatedUntil int64

	QueuePosition int

	// RunRequestID names the in-flight launch message so Cancellation can
	// drop it by id.
	RunRequestID int64
}

// Priority is an age-only score: the negative of the submit time in Unix
// seconds, so an older submission scores higher and sorts first in
// descending order. Queue position is not part of it.
func (j *Job) Priority() int64 {
	return -j.SubmitTime.Unix()
}

// RequestVector builds the planner vector a search should look for: cores
// per node in dim 0, mirroring Requested.CoresPerNode.
func (j *Job) RequestVector() planner.Vector {
	return planner.Vector{j.Requested.CoresPerNode}
}

// allowed is the state-machine adjacency table, built once.
var allowed = map[State]map[State]bool{
	Null:       {Null: true, Reserved: true},
	Reserved:   {Submitted: true},
	Submitted:  {Pending: true},
	Pending:    {SchedReq: true},
	SchedReq:   {Selected: true},
	Selected:   {Allocated: true, Cancelled: true},
	Allocated:  {RunRequest: true, Cancelled: true},
	RunRequest: {Starting: true, Cancelled: true},
	Starting:   {Running: true, Cancelled: true},
	Running:    {Complete: true, Cancelled: true},
	Complete:   {Reaped: true},
	Cancelled:  {Reaped: true},
	Reaped:     {},
}

// Machine validates and applies job-state transitions driven by external
// status tuples.
type Machine struct{}

// NewMachine returns a Machine; it carries no state of its own, the table
// above is fixed at compile time.
func NewMachine() *Machine { return &Machine{} }

// CanTransition reports whether old→new is a legal move.
func (m *Machine) CanTransition(old, new State) bool {
	next, ok := allowed[old]
	if !ok {
		return false
	}
	return next[new]
}

// Transition validates and applies old→new to j, returning a Conflict
// error when j is not in state old and an InvalidArgument error when
// old→new is not in the table.
func (m *Machine) Transition(j *Job, old, new State) error {
	if j.State != old {
		return qerr.Newf(qerr.Conflict, "job.Transition",
			"job %d is in state %s, not %s", j.ID, j.State, old)
	}
	if !m.CanTransition(old, new) {
		return qerr.Newf(qerr.InvalidArgument, "job.Transition",
			"%s -> %s is not an allowed transition", old, new)
	}
	j.State = new
	switch new {
	case Running:
		j.StartTime = time.Now()
	case Complete, Cancelled:
		j.EndTime = time.Now()
	}
	return nil
}

// IsNewJobSignal reports whether tuple (old, new) signals a job the core
// has not seen before, which must be inserted into the pending queue.
func IsNewJobSignal(old, new State) bool {
	return (old == Null && new == Null) || (old == Null && new == Reserved)
}
