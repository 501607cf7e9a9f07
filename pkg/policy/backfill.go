package policy

import (
	"sort"
	"strconv"
	"strings"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/qerr"
	"github.com/quartzsched/quartz/pkg/request"
	"github.com/quartzsched/quartz/pkg/resource"
)

// NeedsCompletionTimes is implemented by policies whose future-window
// search depends on the completion times of currently running jobs: a
// sorted, de-duplicated list of them as candidate start points. The
// scheduling loop feeds these in during LoopSetup.
type NeedsCompletionTimes interface {
	SetCompletionTimes(times []int64)
}

// Backfill implements reservation-depth family: K=0 is pure
// backfill (never reserves), K=1 is EASY (reserve only the first blocked
// job), K>1 is hybrid (up to K reservations per pass), K<0 is conservative
// (reserve every blocked job, bounded only by the loop's queue-depth).
type Backfill struct {
	K int

	completionTimes      []int64
	reservationsThisPass int
}

// NewBackfill constructs a Backfill with the given reservation depth.
func NewBackfill(k int) *Backfill { return &Backfill{K: k} }

func (b *Backfill) Name() string { return "backfill" }

// Parse understands a single "reserve-depth=N" key.
func (b *Backfill) Parse(args string) error {
	for _, kv := range strings.Split(args, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if parts[0] == "reserve-depth" {
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return qerr.Wrap(qerr.InvalidArgument, "Backfill.Parse", err)
			}
			b.K = n
		}
	}
	return nil
}

func (b *Backfill) SetCompletionTimes(times []int64) {
	uniq := make([]int64, 0, len(times))
	seen := map[int64]bool{}
	for _, t := range times {
		if !seen[t] {
			seen[t] = true
			uniq = append(uniq, t)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	b.completionTimes = uniq
}

func (b *Backfill) LoopSetup() error {
	b.reservationsThisPass = 0
	return nil
}

func (b *Backfill) Find(tree *resource.Tree, req *request.Node, now int64) (*resource.Candidate, int64, error) {
	duration := req.Duration()

	req.HasWindow = true
	req.Start = now
	req.Last = now + duration
	cand := tree.Search(req)
	if req.AllFound() {
		return cand, now, nil
	}

	// Try each known completion time as a candidate start, earliest first.
	for _, ct := range b.completionTimes {
		if ct <= now {
			continue
		}
		req.Start = ct
		req.Last = ct + duration
		cand = tree.Search(req)
		if req.AllFound() {
			return cand, ct, nil
		}
	}
	return cand, -1, nil
}

func (b *Backfill) Select(cand *resource.Candidate, req *request.Node) bool {
	resource.Select(cand, req)
	return req.AllFound()
}

func (b *Backfill) Allocate(tree *resource.Tree, j *job.Job, now int64) error {
	return allocate(tree, j, now, now+j.Requested.WalltimeSecs)
}

func (b *Backfill) Reserve(tree *resource.Tree, j *job.Job, windowStart int64) (Verdict, error) {
	switch {
	case b.K == 0:
		// Pure backfill: never holds a reservation, so nothing here
		// disturbs a later, smaller job's chance to run now.
		return Continue, nil
	case b.K < 0:
		// Conservative: reserve every job that can't start now; the loop's
		// own queue-depth bound is the only cap.
		if err := reserve(tree, j, windowStart, windowStart+j.Requested.WalltimeSecs); err != nil {
			return Continue, err
		}
		b.reservationsThisPass++
		return Continue, nil
	default:
		// EASY (K=1) / hybrid (K>1): up to K reservations per pass.
		if b.reservationsThisPass < b.K {
			if err := reserve(tree, j, windowStart, windowStart+j.Requested.WalltimeSecs); err != nil {
				return Continue, err
			}
			b.reservationsThisPass++
		}
		return Continue, nil
	}
}
