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

// Tier classifies a job's spatial footprint against the topology: T1 fits
// a single switch, T2 spans switches within one pod, T3 spans pods.
type Tier int

const (
	T1 Tier = iota
	T2
	T3
)

// Topology wraps Backfill with a best-fit confinement pass over a
// cluster→pod→switch→node tree, tracking per-tier occupancy.
type Topology struct {
	Backfill

	// switchT2Occupant marks a switch a T2 job has actually landed on, so
	// T1 and later T2 placements prefer switches with no T2 footprint yet.
	// podT3Occupant marks a pod a T3 job has actually landed on, so T2
	// placements prefer pods with no T3 footprint yet.
	switchT2Occupant map[int64]bool
	podT3Occupant    map[int64]bool
}

// NewTopology constructs a topology-aware backfill policy with the given
// reservation depth.
func NewTopology(k int) *Topology {
	return &Topology{
		Backfill:         Backfill{K: k},
		switchT2Occupant: map[int64]bool{},
		podT3Occupant:    map[int64]bool{},
	}
}

func (t *Topology) Name() string { return "topology" }

// Parse accepts both backfill's reserve-depth and the rdl-topology path;
// the path is accepted and ignored, and nothing else reads it: the tree
// the policy sees is the one cmd/quartz built from rdl-conf.
func (t *Topology) Parse(args string) error {
	for _, kv := range strings.Split(args, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "reserve-depth":
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return qerr.Wrap(qerr.InvalidArgument, "Topology.Parse", err)
			}
			t.K = n
		case "rdl-topology":
			// Accepted and ignored.
		}
	}
	return nil
}

func findByType(root *resource.Resource, typ string) []*resource.Resource {
	var out []*resource.Resource
	var walk func(r *resource.Resource)
	walk = func(r *resource.Resource) {
		if strings.EqualFold(r.Type, typ) {
			out = append(out, r)
			return
		}
		for _, c := range r.Children {
			walk(c)
		}
	}
	for _, c := range root.Children {
		walk(c)
	}
	return out
}

func countNodesUnder(r *resource.Resource) int {
	if strings.EqualFold(r.Type, "node") {
		return 1
	}
	total := 0
	for _, c := range r.Children {
		total += countNodesUnder(c)
	}
	return total
}

// availableNodes estimates how many free "node" resources sit under r by
// issuing a throwaway structural search, used for best-fit ranking.
func availableNodes(r *resource.Resource, clock resource.Clock) int {
	sub := resource.NewTree(r, clock)
	probe := request.NewNode("node", countNodesUnder(r), 1)
	cand := sub.Search(probe)
	return len(cand.Matches)
}

func (t *Topology) classify(tree *resource.Tree, nodesNeeded int) (Tier, []*resource.Resource, []*resource.Resource) {
	switches := findByType(tree.Root, "switch")
	pods := findByType(tree.Root, "pod")

	if len(switches) > 0 {
		nodesPerSwitch := countNodesUnder(switches[0])
		if nodesNeeded <= nodesPerSwitch {
			return T1, switches, pods
		}
	}
	if len(pods) > 0 {
		nodesPerPod := countNodesUnder(pods[0])
		if nodesNeeded <= nodesPerPod {
			return T2, switches, pods
		}
	}
	return T3, switches, pods
}

// Find applies the tier confinement rule before falling back to the plain
// backfill search for T3 jobs, which span pods with no confinement.
func (t *Topology) Find(tree *resource.Tree, req *request.Node, now int64) (*resource.Candidate, int64, error) {
	nodesNeeded := req.RequiredQty
	tier, switches, pods := t.classify(tree, nodesNeeded)
	duration := req.Duration()

	switch tier {
	case T1:
		ranked := rankByAvailability(switches, tree.Clock, func(id int64) bool { return !t.switchT2Occupant[id] })
		for _, sw := range ranked {
			sub := resource.NewTree(sw, tree.Clock)
			req.HasWindow = true
			req.Start = now
			req.Last = now + duration
			cand := sub.Search(req)
			if req.AllFound() {
				return cand, now, nil
			}
		}
		// No single switch fits now; fall through to the time-shifted
		// backfill search (still confined, but against any switch).
		var cand *resource.Candidate
		for _, sw := range switches {
			c, start, err := t.Backfill.Find(resource.NewTree(sw, tree.Clock), req, now)
			if err != nil || start >= 0 {
				return c, start, err
			}
			cand = c
		}
		return cand, -1, nil
	case T2:
		ranked := rankByAvailability(pods, tree.Clock, func(id int64) bool { return !t.podT3Occupant[id] })
		for _, pod := range ranked {
			rankedSwitches := rankByAvailability(findByType(pod, "switch"), tree.Clock,
				func(id int64) bool { return !t.switchT2Occupant[id] })
			view := pod
			if len(rankedSwitches) > 0 {
				view = &resource.Resource{Children: rankedSwitches}
			}
			sub := resource.NewTree(view, tree.Clock)
			req.HasWindow = true
			req.Start = now
			req.Last = now + duration
			cand := sub.Search(req)
			if req.AllFound() {
				for _, res := range selectedResources(cand, req.RequiredQty) {
					if sw := ancestorOfType(res, "switch"); sw != nil {
						t.switchT2Occupant[sw.ID] = true
					}
				}
				return cand, now, nil
			}
		}
		return t.Backfill.Find(tree, req, now)
	default:
		cand, start, err := t.Backfill.Find(tree, req, now)
		if err == nil && start >= 0 {
			for _, res := range selectedResources(cand, req.RequiredQty) {
				if pod := ancestorOfType(res, "pod"); pod != nil {
					t.podT3Occupant[pod.ID] = true
				}
			}
		}
		return cand, start, err
	}
}

// selectedResources returns the first n matched resources from cand, in
// the same order Select will later stage them, without mutating any
// staged state itself.
func selectedResources(cand *resource.Candidate, n int) []*resource.Resource {
	var out []*resource.Resource
	for _, m := range cand.Matches {
		if len(out) >= n {
			break
		}
		out = append(out, m.Resource)
	}
	return out
}

// ancestorOfType walks up from r looking for the nearest ancestor of the
// given type.
func ancestorOfType(r *resource.Resource, typ string) *resource.Resource {
	for p := r.Parent; p != nil; p = p.Parent {
		if strings.EqualFold(p.Type, typ) {
			return p
		}
	}
	return nil
}

func rankByAvailability(resources []*resource.Resource, clock resource.Clock, keep func(id int64) bool) []*resource.Resource {
	type scored struct {
		r   *resource.Resource
		avl int
	}
	var cands []scored
	for _, r := range resources {
		if !keep(r.ID) {
			continue
		}
		cands = append(cands, scored{r, availableNodes(r, clock)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].avl < cands[j].avl })
	out := make([]*resource.Resource, len(cands))
	for i, c := range cands {
		out[i] = c.r
	}
	return out
}

func (t *Topology) Select(cand *resource.Candidate, req *request.Node) bool {
	return t.Backfill.Select(cand, req)
}

func (t *Topology) Allocate(tree *resource.Tree, j *job.Job, now int64) error {
	return t.Backfill.Allocate(tree, j, now)
}

func (t *Topology) Reserve(tree *resource.Tree, j *job.Job, windowStart int64) (Verdict, error) {
	return t.Backfill.Reserve(tree, j, windowStart)
}
