// Package resource implements the hierarchical resource tree: a typed, named tree whose nodes each own a planner.Planner sized
// by the node's local capacity, searchable by a request.Node template.
package resource

import (
	"strings"

	"github.com/google/uuid"
	"github.com/quartzsched/quartz/pkg/planner"
	"github.com/quartzsched/quartz/pkg/qerr"
	"github.com/quartzsched/quartz/pkg/request"
)

// Resource is one node of the tree: a cluster, rack, node, socket, or core.
type Resource struct {
	Type string
	Name string
	Path string
	ID   int64
	UUID string

	Plan *planner.Planner

	Properties map[string]struct{}
	Tags       map[string]struct{}

	// Digest links this resource to a managing broker rank via a weak,
	// name-keyed side-table lookup; never an ownership edge.
	Digest string

	Parent   *Resource
	Children []*Resource

	staged int64
}

// New constructs a resource with the given type/name and a planner sized to
// capacity over [0, horizon).
func New(id int64, typ, name string, capacity, horizon int64) (*Resource, error) {
	plan, err := planner.New(0, horizon, planner.Vector{capacity}, 1)
	if err != nil {
		return nil, qerr.Wrap(qerr.InvalidArgument, "resource.New", err)
	}
	plan.SetResourceTypeNames([]string{typ})
	return &Resource{
		Type:       typ,
		Name:       name,
		Path:       name,
		ID:         id,
		UUID:       uuid.NewString(),
		Plan:       plan,
		Properties: map[string]struct{}{},
		Tags:       map[string]struct{}{},
	}, nil
}

// AddChild attaches child under r, setting its Parent and Path.
func (r *Resource) AddChild(child *Resource) {
	child.Parent = r
	child.Path = r.Path + "/" + child.Name
	r.Children = append(r.Children, child)
}

// AddProperty / AddTag mark the resource with a string property or tag.
func (r *Resource) AddProperty(p string) { r.Properties[p] = struct{}{} }
func (r *Resource) AddTag(t string)      { r.Tags[t] = struct{}{} }

// HasProperty / HasTag report membership.
func (r *Resource) HasProperty(p string) bool { _, ok := r.Properties[p]; return ok }
func (r *Resource) HasTag(t string) bool      { _, ok := r.Tags[t]; return ok }

// Stage marks this resource with a size that will be committed if the
// staged selection is later allocated or reserved. Calling Stage twice
// overwrites rather than accumulates; calling Unstage twice is a no-op.
func (r *Resource) Stage(size int64) { r.staged = size }

// Unstage clears any staged size on this resource (not its children).
func (r *Resource) Unstage() { r.staged = 0 }

// Staged returns the resource's current staged size.
func (r *Resource) Staged() int64 { return r.staged }

// UnstageAll recursively clears staged sizes across the whole sub-tree.
func (r *Resource) UnstageAll() {
	r.Unstage()
	for _, c := range r.Children {
		c.UnstageAll()
	}
}

// Allocate commits every staged size under r against (jobID, start, last),
// clearing the staged markers it consumes. It recurses into children
// regardless of whether r itself is staged, since a request's children can
// stage resources deeper in the tree than their parent match.
func (r *Resource) Allocate(jobID, start, last int64) error {
	return r.commit(jobID, start, last, true)
}

// Reserve is identical to Allocate except the caller is expected to purge
// it at the next scheduling pass; the planner records no
// distinction between the two — the distinction is in when it gets removed.
func (r *Resource) Reserve(jobID, start, last int64) error {
	return r.commit(jobID, start, last, false)
}

func (r *Resource) commit(jobID, start, last int64, _ bool) error {
	if r.staged > 0 {
		duration := last - start
		if duration < 1 {
			duration = 1
		}
		req := planner.Vector{r.staged}
		if _, err := r.Plan.AddReservation(jobID, start, duration, req, true); err != nil {
			return err
		}
		r.staged = 0
	}
	for _, c := range r.Children {
		if err := c.commit(jobID, start, last, true); err != nil {
			return err
		}
	}
	return nil
}

// Release removes the reservation keyed by jobID from every Planner in r's
// sub-tree. Missing reservations are not an error: a job may
// not have touched every branch.
func (r *Resource) Release(jobID int64) {
	if err := r.Plan.RemoveReservation(jobID); err != nil && !qerr.Is(err, qerr.NotFound) {
		// Planner invariants guarantee NotFound is the only expected error
		// here; anything else indicates a bug, but release must not abort
		// partway through the sub-tree.
	}
	for _, c := range r.Children {
		c.Release(jobID)
	}
}

func typeMatches(r *Resource, req *request.Node) bool {
	if !strings.EqualFold(r.Type, req.Type) {
		return false
	}
	return true
}

func propsSubset(r *Resource, req *request.Node) bool {
	for _, p := range req.RequiredProperties {
		if !r.HasProperty(p) {
			return false
		}
	}
	for _, tg := range req.RequiredTags {
		if !r.HasTag(tg) {
			return false
		}
	}
	return true
}

// Clock supplies the current time for live (non-windowed) availability
// checks, keeping the tree testable in virtual time.
type Clock func() int64

// Tree wraps a root resource with the clock seam used for live queries.
type Tree struct {
	Root  *Resource
	Clock Clock
}

// NewTree returns a Tree rooted at root using the given clock; a nil clock
// defaults to a fixed time of 0, useful for tests.
func NewTree(root *Resource, clock Clock) *Tree {
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	return &Tree{Root: root, Clock: clock}
}

// Match pairs a resource accepted for a request.Node with the candidates
// found for that request's own children inside the resource's sub-tree.
type Match struct {
	Resource *Resource
	Children []*Candidate
}

// Candidate is the search result for one request.Node: every resource in
// the tree that structurally and temporally satisfies it, each paired with
// its own children's candidates.
type Candidate struct {
	Req     *request.Node
	Matches []*Match
}

// Search walks t looking for resources satisfying req, recording nfound on
// req and its descendants. It resets req's counters first.
func (t *Tree) Search(req *request.Node) *Candidate {
	req.Reset()
	return t.search(t.Root, req)
}

func (t *Tree) search(root *Resource, req *request.Node) *Candidate {
	cand := &Candidate{Req: req}
	var found []*Resource
	collectMatches(root, req, &found)

	for _, res := range found {
		if !t.availableFor(res, req) {
			continue
		}
		m := &Match{Resource: res}
		allChildrenOK := true
		for _, childReq := range req.Children {
			childCand := t.search(res, childReq)
			m.Children = append(m.Children, childCand)
			if !childReq.AllFound() {
				allChildrenOK = false
			}
		}
		if allChildrenOK {
			req.RecordFound(1)
		}
		cand.Matches = append(cand.Matches, m)
	}
	return cand
}

// collectMatches walks root's children looking for a type/property/tag
// match against req. A non-matching intermediate layer is descended
// through transparently, so a request for node→core may match
// node→socket→core.
func collectMatches(root *Resource, req *request.Node, out *[]*Resource) {
	for _, c := range root.Children {
		if typeMatches(c, req) && propsSubset(c, req) {
			*out = append(*out, c)
		} else {
			collectMatches(c, req, out)
		}
	}
}

func (t *Tree) availableFor(res *Resource, req *request.Node) bool {
	size := req.Size
	if size <= 0 {
		size = 1
	}
	req2 := planner.Vector{size}
	if req.HasWindow {
		ok, err := res.Plan.AvailDuring(req.Start, req.Last-req.Start, req2, req.Exclusive)
		return err == nil && ok
	}
	ok, err := res.Plan.AvailResourcesAt(t.Clock(), 1, req2, req.Exclusive)
	return err == nil && ok
}

// Select culls cand down to exactly the shape req demands: depth-first,
// first-fit in child order. It stages exactly
// req.RequiredQty matching resources (and, recursively, their children's
// selections) and unstages everything else the search touched.
func Select(cand *Candidate, req *request.Node) {
	chosen := 0
	for _, m := range cand.Matches {
		if chosen >= req.RequiredQty {
			m.Resource.Unstage()
			unstageChildren(m)
			continue
		}
		size := req.Size
		if size <= 0 {
			size = 1
		}
		m.Resource.Stage(size)
		for i, childReq := range req.Children {
			if i < len(m.Children) {
				Select(m.Children[i], childReq)
			}
		}
		chosen++
	}
}

func unstageChildren(m *Match) {
	for _, c := range m.Children {
		for _, cm := range c.Matches {
			cm.Resource.Unstage()
			unstageChildren(cm)
		}
	}
}

// RankTable resolves a (hostname, digest) pair to the broker rank managing
// it, a weak side-table lookup rather than an ownership edge.
type RankTable struct {
	byKey map[string]int64
}

// NewRankTable builds an empty table.
func NewRankTable() *RankTable {
	return &RankTable{byKey: map[string]int64{}}
}

// Set records the rank for a given hostname+digest pair.
func (rt *RankTable) Set(hostname, digest string, rank int64) {
	rt.byKey[rankKey(hostname, digest)] = rank
}

// Lookup returns the rank for hostname+digest, or false if unknown.
func (rt *RankTable) Lookup(hostname, digest string) (int64, bool) {
	rank, ok := rt.byKey[rankKey(hostname, digest)]
	return rank, ok
}

func rankKey(hostname, digest string) string { return hostname + "\x00" + digest }

// Allocation pairs a broker rank with the core count allocated on it; this
// is the `rdl.alloc` entry shape persisted per job.
type Allocation struct {
	ContainingRank int64
	NCores         int64
}
