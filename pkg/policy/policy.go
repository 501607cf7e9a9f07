// Package policy implements quartz's pluggable scheduling policies: each
// is a bundle of five hooks invoked by the scheduling loop in
// pkg/scheduler.
package policy

import (
	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
)

// Verdict is the scheduling loop's per-job control signal: Stop abandons the rest of the pending queue for this pass.
type Verdict int

const (
	Continue Verdict = iota
	Stop
)

// Policy is the five-hook extension point scheduling plugins implement.
// Each implementation may parse its own comma-separated argument string
// opaquely via Parse.
type Policy interface {
	Name() string
	Parse(args string) error

	// LoopSetup runs once at the start of each scheduling pass, after all
	// reservations have been released.
	LoopSetup() error

	// Find returns a candidate sub-tree for req and the window start it
	// was found at. A negative windowStart with a nil
	// error means nothing was found at all (FCFS's "now fails -> give
	// up"); a non-negative windowStart in the future means the request
	// only fits later and Reserve should be tried.
	Find(tree *resource.Tree, req *request.Node, now int64) (cand *resource.Candidate, windowStart int64, err error)

	// Select culls cand to req's exact shape and reports whether every
	// node of req was satisfied.
	Select(cand *resource.Candidate, req *request.Node) bool

	// Allocate commits the staged selection for j starting now and ending
	// at now+walltime.
	Allocate(tree *resource.Tree, j *job.Job, now int64) error

	// Reserve commits the staged selection against a future window instead
	// of allocating it now, returning whether the loop
	// should keep considering the rest of the queue this pass.
	Reserve(tree *resource.Tree, j *job.Job, windowStart int64) (Verdict, error)
}

// allocate is the mechanics shared by every policy's Allocate/Reserve hook:
// commit the already-staged sub-tree against (job_id, start, last).
func allocate(tree *resource.Tree, j *job.Job, start, last int64) error {
	return tree.Root.Allocate(j.ID, start, last)
}

func reserve(tree *resource.Tree, j *job.Job, start, last int64) error {
	return tree.Root.Reserve(j.ID, start, last)
}
