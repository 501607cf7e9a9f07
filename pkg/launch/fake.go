package launch

import (
	"context"
	"sync"
)

// Fake is an in-memory Launcher for tests: every Run call is recorded and
// assigned a sequential run-request id; Cancel records the ids dropped.
type Fake struct {
	mu        sync.Mutex
	nextID    int64
	Ran       []int64 // job ids passed to Run, in call order
	Cancelled []int64 // run-request ids passed to Cancel, in call order
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Run(ctx context.Context, jobID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.Ran = append(f.Ran, jobID)
	return f.nextID, nil
}

func (f *Fake) Cancel(ctx context.Context, runRequestID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, runRequestID)
	return nil
}
