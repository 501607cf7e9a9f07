package policy

import (
	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
)

// FCFS is minimal policy: it only ever searches the current
// instant and never reserves a future window.
type FCFS struct{}

func NewFCFS() *FCFS { return &FCFS{} }

func (f *FCFS) Name() string         { return "fcfs" }
func (f *FCFS) Parse(args string) error { return nil }
func (f *FCFS) LoopSetup() error     { return nil }

func (f *FCFS) Find(tree *resource.Tree, req *request.Node, now int64) (*resource.Candidate, int64, error) {
	req.HasWindow = true
	req.Start = now
	req.Last = now
	cand := tree.Search(req)
	if !req.AllFound() {
		return cand, -1, nil
	}
	return cand, now, nil
}

func (f *FCFS) Select(cand *resource.Candidate, req *request.Node) bool {
	resource.Select(cand, req)
	return req.AllFound()
}

func (f *FCFS) Allocate(tree *resource.Tree, j *job.Job, now int64) error {
	return allocate(tree, j, now, now+j.Requested.WalltimeSecs)
}

// Reserve is a no-op that always stops the pass: FCFS never looks ahead,
// so a job that can't run now blocks everyone behind it.
func (f *FCFS) Reserve(tree *resource.Tree, j *job.Job, windowStart int64) (Verdict, error) {
	return Stop, nil
}
