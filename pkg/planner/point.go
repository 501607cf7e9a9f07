package planner

import "github.com/google/btree"

// ScheduledPoint is a time at which a Planner's remaining capacity changes.
// It is simultaneously a node in the point map (by t), a node
// in the min-time resource index (by R, while inMinTime is true), and is
// referenced by every Reservation whose start or last lands on it.
type ScheduledPoint struct {
	t        int64
	S        Vector
	R        Vector
	refCount int

	// inMinTime is true while this point is present in the min-time index.
	inMinTime bool
	mt        *mtNode // backing node in the min-time treap, nil if absent

	sentinel bool
}

// T returns the point's time.
func (p *ScheduledPoint) T() int64 { return p.t }

// Scheduled returns the in-use vector at this point (dim entries meaningful).
func (p *ScheduledPoint) Scheduled() Vector { return p.S }

// Remaining returns the remaining vector at this point.
func (p *ScheduledPoint) Remaining() Vector { return p.R }

// pointMap is the ordered map of scheduled points, keyed by t, backed by
// a google/btree ordered B-tree in place of a hand-rolled RB-tree, since
// it exposes the Ascend/Descend successor iteration callers need.
type pointMap struct {
	tree *btree.BTreeG[*ScheduledPoint]
}

func newPointMap() *pointMap {
	less := func(a, b *ScheduledPoint) bool { return a.t < b.t }
	return &pointMap{tree: btree.NewG[*ScheduledPoint](32, less)}
}

func (m *pointMap) get(t int64) (*ScheduledPoint, bool) {
	return m.tree.Get(&ScheduledPoint{t: t})
}

func (m *pointMap) insert(p *ScheduledPoint) {
	m.tree.ReplaceOrInsert(p)
}

func (m *pointMap) delete(p *ScheduledPoint) {
	m.tree.Delete(p)
}

func (m *pointMap) len() int { return m.tree.Len() }

// floor returns the point with the greatest t <= t, if any.
func (m *pointMap) floor(t int64) (*ScheduledPoint, bool) {
	var found *ScheduledPoint
	m.tree.DescendLessOrEqual(&ScheduledPoint{t: t}, func(p *ScheduledPoint) bool {
		found = p
		return false
	})
	return found, found != nil
}

// ceiling returns the point with the smallest t >= t, if any.
func (m *pointMap) ceiling(t int64) (*ScheduledPoint, bool) {
	var found *ScheduledPoint
	m.tree.AscendGreaterOrEqual(&ScheduledPoint{t: t}, func(p *ScheduledPoint) bool {
		found = p
		return false
	})
	return found, found != nil
}

// successor returns the point with the smallest t strictly greater than p.t.
func (m *pointMap) successor(p *ScheduledPoint) (*ScheduledPoint, bool) {
	return m.ceiling(p.t + 1)
}

// predecessor returns the point with the greatest t strictly less than p.t.
func (m *pointMap) predecessor(p *ScheduledPoint) (*ScheduledPoint, bool) {
	return m.floor(p.t - 1)
}

// ascend calls fn for every point with t >= from, in increasing order of t,
// until fn returns false.
func (m *pointMap) ascend(from int64, fn func(*ScheduledPoint) bool) {
	m.tree.AscendGreaterOrEqual(&ScheduledPoint{t: from}, fn)
}

// all calls fn for every point in increasing order of t.
func (m *pointMap) all(fn func(*ScheduledPoint) bool) {
	m.tree.Ascend(fn)
}
