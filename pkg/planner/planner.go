package planner

import "github.com/quartzsched/quartz/pkg/qerr"

// Planner is the temporal resource planner: a set of scheduled points
// sharing one point map, one reservation interval tree, and one min-time
// resource index, tracking how much of a fixed Total vector remains free
// at every instant in [planStart, planEnd].
type Planner struct {
	dim       int
	total     Vector
	typeNames [MaxDim]string

	planStart int64
	planEnd   int64

	points   *pointMap
	reserved *intervalTree
	mintime  *minTimeIndex

	byID map[int64]*Reservation

	// iterState holds the running cursor for AvailTimeFirst/AvailTimeNext:
	// the request being satisfied and the points pulled out of the
	// min-time index along the way, so the next call resumes the walk
	// instead of restarting it.
	iterReq     Vector
	iterDur     int64
	iterExcl    bool
	iterSet     bool
	iterStashed []*ScheduledPoint
}

// New creates a Planner spanning [planStart, planStart+planDuration) with
// dim resource dimensions, each bounded by total[d].
func New(planStart, planDuration int64, total Vector, dim int) (*Planner, error) {
	const op = "planner.New"
	if planStart < 0 {
		return nil, qerr.Newf(qerr.InvalidArgument, op, "planStart %d must be >= 0", planStart)
	}
	if planDuration < 1 {
		return nil, qerr.Newf(qerr.InvalidArgument, op, "planDuration %d must be >= 1", planDuration)
	}
	if dim < 1 || dim > MaxDim {
		return nil, qerr.Newf(qerr.InvalidArgument, op, "dim %d out of range [1,%d]", dim, MaxDim)
	}
	p := &Planner{dim: dim, total: total}
	p.reset(planStart, planDuration, total)
	return p, nil
}

// Reset clears all reservations and re-bounds the plan. The
// resource dimensionality is fixed at construction and cannot change.
func (p *Planner) Reset(planStart, planDuration int64, total Vector) error {
	const op = "planner.Reset"
	if planStart < 0 {
		return qerr.Newf(qerr.InvalidArgument, op, "planStart %d must be >= 0", planStart)
	}
	if planDuration < 1 {
		return qerr.Newf(qerr.InvalidArgument, op, "planDuration %d must be >= 1", planDuration)
	}
	p.reset(planStart, planDuration, total)
	return nil
}

func (p *Planner) reset(planStart, planDuration int64, total Vector) {
	p.total = total
	p.planStart = planStart
	p.planEnd = planStart + planDuration
	p.points = newPointMap()
	p.reserved = newIntervalTree()
	p.mintime = newMinTimeIndex(p.dim)
	p.byID = make(map[int64]*Reservation)
	p.iterSet = false
	p.iterStashed = nil

	sentinel := &ScheduledPoint{t: planStart, R: total, refCount: 1, sentinel: true}
	p.points.insert(sentinel)
	p.mintime.insert(sentinel)
}

// Dim returns the planner's resource dimensionality.
func (p *Planner) Dim() int { return p.dim }

// Total returns the planner's total resource vector.
func (p *Planner) Total() Vector { return p.total }

// PlanStart returns the plan's start instant.
func (p *Planner) PlanStart() int64 { return p.planStart }

// PlanEnd returns the plan's end instant.
func (p *Planner) PlanEnd() int64 { return p.planEnd }

// SetResourceTypeNames records human-readable names for the first
// min(len(names), Dim) dimensions, for diagnostics.
func (p *Planner) SetResourceTypeNames(names []string) {
	n := len(names)
	if n > p.dim {
		n = p.dim
	}
	for i := 0; i < n; i++ {
		p.typeNames[i] = names[i]
	}
}

// ResourceTypeName returns the name assigned to dimension i, or "".
func (p *Planner) ResourceTypeName(i int) string {
	if i < 0 || i >= p.dim {
		return ""
	}
	return p.typeNames[i]
}

func (p *Planner) notFeasible(start, duration int64, req Vector) bool {
	return start < p.planStart || duration < 1 || start+(duration-1) > p.planEnd
}

// restoreStashed re-inserts any points the avail-time walk pulled out of
// the min-time index back into it, undoing the previous query's side
// effects before any mutation.
func (p *Planner) restoreStashed() {
	for _, pt := range p.iterStashed {
		if !pt.inMinTime {
			p.mintime.insert(pt)
		}
	}
	p.iterStashed = nil
}

// getOrNewPoint returns the point at t, creating one with R = Total (no
// reservations yet recorded at it) if none exists.
func (p *Planner) getOrNewPoint(t int64) (*ScheduledPoint, bool) {
	if existing, ok := p.points.get(t); ok {
		return existing, false
	}
	pt := &ScheduledPoint{t: t, R: p.total}
	p.points.insert(pt)
	return pt, true
}

func (p *Planner) applyDelta(pt *ScheduledPoint, req Vector, sign int64) {
	for d := 0; d < p.dim; d++ {
		pt.S[d] += sign * req[d]
		pt.R[d] -= sign * req[d]
	}
}

func (p *Planner) reindex(pt *ScheduledPoint) {
	if pt.inMinTime {
		p.mintime.remove(pt)
	}
	if pt.refCount > 0 {
		p.mintime.insert(pt)
	}
}

// AddReservation records a claim of req units over [start, start+duration)
// under the given unique id. If validate, the claim is first
// checked for feasibility and rejected without mutation if unsatisfiable.
func (p *Planner) AddReservation(id, start, duration int64, req Vector, validate bool) (*Reservation, error) {
	const op = "planner.AddReservation"
	if _, exists := p.byID[id]; exists {
		return nil, qerr.Newf(qerr.AlreadyExists, op, "reservation %d already exists", id)
	}
	if p.notFeasible(start, duration, req) {
		return nil, qerr.Newf(qerr.InvalidArgument, op, "reservation [%d,+%d) outside plan bounds", start, duration)
	}
	sum := sumVec(req, p.dim)
	if sum <= 0 {
		return nil, qerr.Newf(qerr.OutOfRange, op, "request vector must have positive total")
	}
	for d := 0; d < p.dim; d++ {
		if req[d] > p.total[d] {
			return nil, qerr.Newf(qerr.OutOfRange, op, "request dim %d exceeds total", d)
		}
	}

	last := start + duration
	if validate {
		ok, err := p.AvailDuring(start, duration, req, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, qerr.Newf(qerr.Conflict, op, "insufficient resources over [%d,%d)", start, last)
		}
	}

	p.restoreStashed()

	r := &Reservation{id: id, start: start, last: last, req: req, dim: p.dim}

	touched := make(map[int64]*ScheduledPoint)

	startPt, startIsNew := p.getOrNewPoint(start)
	p.applyDelta(startPt, req, 1)
	startPt.refCount++
	touched[startPt.t] = startPt

	lastPt, lastIsNew := p.getOrNewPoint(last)
	lastPt.refCount++
	touched[lastPt.t] = lastPt

	r.startPoint = startPt
	r.lastPoint = lastPt

	// Every reservation already overlapping [start,last) whose own start or
	// last point falls strictly inside it must absorb req at that point.
	p.reserved.iterOverlap(start, last, func(other *Reservation) bool {
		addInterior(p, other.start, start, last, other.startPoint, r, touched, false)
		addInterior(p, other.last, start, last, other.lastPoint, r, touched, false)
		return true
	})
	// Symmetrically, if this reservation's own start or last point falls
	// strictly inside an overlapping reservation's range, it must absorb
	// that reservation's req. A freshly created point has no history to
	// rely on and must pick up every such overlap unconditionally; a point
	// that already existed was kept correct by earlier insertions.
	p.reserved.iterOverlap(start, last, func(other *Reservation) bool {
		addInterior(p, start, other.start, other.last, startPt, other, touched, startIsNew)
		addInterior(p, last, other.start, other.last, lastPt, other, touched, lastIsNew)
		return true
	})

	for _, pt := range touched {
		p.reindex(pt)
	}

	p.reserved.insert(r)
	p.byID[id] = r
	r.added = true
	return r, nil
}

// addInterior applies r's req to p's point if t strictly falls inside
// (rangeStart, rangeLast) -- the open interval owned by the *other*
// reservation whose boundary point this is -- mirroring add_I/sub_I's
// "interception due to being equal has already been taken care of" rule.
func addInterior(pl *Planner, t, rangeStart, rangeLast int64, pt *ScheduledPoint, r *Reservation, touched map[int64]*ScheduledPoint, force bool) {
	if !(rangeStart < t && t < rangeLast) {
		return
	}
	if _, already := touched[pt.t]; already && !force {
		return
	}
	pl.applyDelta(pt, r.req, 1)
	touched[pt.t] = pt
}

// RemoveReservation releases a previously added reservation.
func (p *Planner) RemoveReservation(id int64) error {
	const op = "planner.RemoveReservation"
	r, ok := p.byID[id]
	if !ok {
		return qerr.Newf(qerr.NotFound, op, "reservation %d not found", id)
	}
	if !r.added {
		return nil
	}

	p.restoreStashed()

	touched := make(map[int64]*ScheduledPoint)

	r.startPoint.refCount--
	p.applyDelta(r.startPoint, r.req, -1)
	touched[r.startPoint.t] = r.startPoint

	r.lastPoint.refCount--
	touched[r.lastPoint.t] = r.lastPoint

	p.reserved.iterOverlap(r.start, r.last, func(other *Reservation) bool {
		if other.id == r.id {
			return true
		}
		subInterior(p, other.start, r.start, r.last, other.startPoint, r, touched)
		subInterior(p, other.last, r.start, r.last, other.lastPoint, r, touched)
		return true
	})

	p.reserved.remove(r)
	delete(p.byID, id)
	r.added = false

	for _, pt := range touched {
		if pt.refCount <= 0 && !pt.sentinel {
			p.points.delete(pt)
			if pt.inMinTime {
				p.mintime.remove(pt)
			}
			continue
		}
		p.reindex(pt)
	}
	return nil
}

func subInterior(pl *Planner, t, rangeStart, rangeLast int64, pt *ScheduledPoint, r *Reservation, touched map[int64]*ScheduledPoint) {
	if !(rangeStart < t && t < rangeLast) {
		return
	}
	if _, already := touched[pt.t]; already {
		return
	}
	pl.applyDelta(pt, r.req, -1)
	touched[pt.t] = pt
}

// ReservationByID returns the reservation registered under id, if any.
func (p *Planner) ReservationByID(id int64) (*Reservation, bool) {
	r, ok := p.byID[id]
	return r, ok
}

// ReservationCount returns the number of reservations currently held.
func (p *Planner) ReservationCount() int { return len(p.byID) }

// Walk calls fn with the id of every reservation currently held, in
// unspecified order. It is used by the scheduling loop's release-all-
// reservations pass.
func (p *Planner) Walk(fn func(id int64)) {
	for id := range p.byID {
		fn(id)
	}
}

// AvailResourcesAt reports whether req (or, if exclusive, the entire
// Total) fits at every scheduled point covering [start, start+duration).
func (p *Planner) AvailResourcesAt(start, duration int64, req Vector, exclusive bool) (bool, error) {
	const op = "planner.AvailResourcesAt"
	if start < 0 {
		return false, qerr.Newf(qerr.InvalidArgument, op, "start %d must be >= 0", start)
	}
	if !fits(req, p.total, p.dim) {
		return false, qerr.Newf(qerr.OutOfRange, op, "request exceeds total capacity")
	}
	eff := req
	if exclusive {
		eff = p.total
	}

	at, ok := p.points.floor(start)
	if !ok {
		return false, nil
	}
	if !fits(eff, at.R, p.dim) {
		return false, nil
	}

	ok2 := true
	p.points.ascend(at.t+1, func(d *ScheduledPoint) bool {
		if d.t-start >= duration {
			return false
		}
		if !fits(eff, d.R, p.dim) {
			ok2 = false
			return false
		}
		return true
	})
	return ok2, nil
}

// AvailDuring is an alias of AvailResourcesAt kept for callers that read
// naturally in terms of an interval rather than a point-in-time query.
func (p *Planner) AvailDuring(start, duration int64, req Vector, exclusive bool) (bool, error) {
	return p.AvailResourcesAt(start, duration, req, exclusive)
}

// AvailTimeFirst returns the earliest instant at or after PlanStart at
// which req can be satisfied for duration units, starting a cursor that
// AvailTimeNext can advance past rejected candidates.
func (p *Planner) AvailTimeFirst(req Vector, duration int64, exclusive bool) (int64, error) {
	const op = "planner.AvailTimeFirst"
	if duration < 1 {
		return -1, qerr.Newf(qerr.InvalidArgument, op, "duration %d must be >= 1", duration)
	}
	if !fits(req, p.total, p.dim) {
		return -1, qerr.Newf(qerr.OutOfRange, op, "request exceeds total capacity")
	}
	p.restoreStashed()
	p.iterReq = req
	p.iterDur = duration
	p.iterExcl = exclusive
	p.iterSet = true
	return p.availTimeInternal()
}

// AvailTimeNext resumes the cursor started by AvailTimeFirst, returning
// the next candidate instant. It is an error to call this
// before a successful AvailTimeFirst.
func (p *Planner) AvailTimeNext() (int64, error) {
	const op = "planner.AvailTimeNext"
	if !p.iterSet {
		return -1, qerr.New(qerr.InvalidArgument, op, "no avail-time cursor is active")
	}
	return p.availTimeInternal()
}

// availTimeInternal implements iterative anchor-and-verify
// walk: repeatedly pull the min-time index's best-fit anchor, stash it out
// of the index, and confirm no point for the rest of the request's
// duration dips below the request. The first anchor whose duration window
// holds is the answer; every anchor tried (success or failure) stays
// stashed until the next mutation or the planner restores them.
func (p *Planner) availTimeInternal() (int64, error) {
	eff := p.iterReq
	if p.iterExcl {
		eff = p.total
	}
	for {
		anchor := p.mintime.findAnchor(eff)
		if anchor == nil {
			return -1, nil
		}
		p.mintime.remove(anchor)
		p.iterStashed = append(p.iterStashed, anchor)

		var blocked bool
		p.points.ascend(anchor.t+1, func(d *ScheduledPoint) bool {
			if d.t-anchor.t >= p.iterDur {
				return false
			}
			if !fits(eff, d.R, p.dim) {
				blocked = true
				return false
			}
			return true
		})
		if !blocked {
			// The earliest window-satisfying anchor still has to leave room
			// for the full duration before planEnd; since candidates are
			// tried in increasing t order, a later one could never do
			// better, so a boundary miss here ends the search outright.
			if p.planEnd-anchor.t < p.iterDur {
				return -1, nil
			}
			return anchor.t, nil
		}
	}
}
