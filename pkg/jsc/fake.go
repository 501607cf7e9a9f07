package jsc

import (
	"context"
	"fmt"
	"sync"

	"github.com/quartzsched/quartz/pkg/job"
	"github.com/quartzsched/quartz/pkg/request"
)

// Fake is an in-memory Store for tests: requests are pre-seeded with Seed
// and every Update call is recorded for assertions.
type Fake struct {
	mu       sync.Mutex
	requests map[int64]fakeEntry
	updates  []FakeUpdate
}

type fakeEntry struct {
	requested job.Requested
	request   *request.Node
}

// FakeUpdate records one Update call made against a Fake.
type FakeUpdate struct {
	JobID int64
	Field string
	Value []byte
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{requests: map[int64]fakeEntry{}}
}

// Seed registers the request a later FetchRequest(jobID) call should return.
func (f *Fake) Seed(jobID int64, requested job.Requested, req *request.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[jobID] = fakeEntry{requested: requested, request: req}
}

func (f *Fake) FetchRequest(ctx context.Context, jobID int64) (job.Requested, *request.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.requests[jobID]
	if !ok {
		return job.Requested{}, nil, fmt.Errorf("jsc.Fake: no seeded request for job %d", jobID)
	}
	return e.requested, e.request, nil
}

func (f *Fake) Update(ctx context.Context, jobID int64, field string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, FakeUpdate{JobID: jobID, Field: field, Value: append([]byte(nil), value...)})
	return nil
}

// Updates returns every recorded Update call, in order.
func (f *Fake) Updates() []FakeUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeUpdate(nil), f.updates...)
}
