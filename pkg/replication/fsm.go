// Package replication wraps pkg/storage.Store behind a raft log, so a
// cluster of quartz cores can agree on job state instead of each trusting
// its own local bolt file.
package replication

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/quartzsched/quartz/pkg/storage"
	"github.com/hashicorp/raft"
)

// Command is one quartz job-record mutation committed through the raft
// log.
type Command struct {
	Op    string `json:"op"`
	JobID int64  `json:"job_id"`

	State string `json:"state,omitempty"`
	At    int64  `json:"at,omitempty"`

	RDL []byte `json:"rdl,omitempty"`

	Allocations []resource.Allocation `json:"allocations,omitempty"`
}

const (
	opSaveState      = "save_state"
	opSaveRDL        = "save_rdl"
	opSaveAllocation = "save_allocation"
	opDeleteJob      = "delete_job"
)

type jobRecord struct {
	State       string
	At          time.Time
	RDL         []byte
	Allocations []resource.Allocation
}

// FSM applies committed commands to a storage.Store, keeping its own
// in-memory index so Snapshot/Restore don't depend on Store exposing an
// enumeration method; it only exposes per-job lookups.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
	index map[int64]*jobRecord
}

// NewFSM wraps store; store still receives every applied mutation, so a
// non-replicated caller reading it directly sees consistent state.
func NewFSM(store storage.Store) *FSM {
	return &FSM{store: store, index: map[int64]*jobRecord{}}
}

// Apply implements raft.FSM.
func (f *FSM) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("replication.FSM.Apply: unmarshal: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	rec := f.index[cmd.JobID]
	if rec == nil {
		rec = &jobRecord{}
		f.index[cmd.JobID] = rec
	}

	switch cmd.Op {
	case opSaveState:
		rec.State = cmd.State
		rec.At = time.Unix(cmd.At, 0)
		return f.store.SaveJobState(cmd.JobID, cmd.State, rec.At)
	case opSaveRDL:
		rec.RDL = cmd.RDL
		return f.store.SaveRDL(cmd.JobID, cmd.RDL)
	case opSaveAllocation:
		rec.Allocations = cmd.Allocations
		return f.store.SaveAllocation(cmd.JobID, cmd.Allocations)
	case opDeleteJob:
		delete(f.index, cmd.JobID)
		return f.store.DeleteJob(cmd.JobID)
	default:
		return fmt.Errorf("replication.FSM.Apply: unknown op %q", cmd.Op)
	}
}

// Snapshot implements raft.FSM.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	records := make(map[int64]jobRecord, len(f.index))
	for id, rec := range f.index {
		records[id] = *rec
	}
	return &snapshot{records: records}, nil
}

// Restore implements raft.FSM.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var records map[int64]jobRecord
	if err := json.NewDecoder(rc).Decode(&records); err != nil {
		return fmt.Errorf("replication.FSM.Restore: decode: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.index = make(map[int64]*jobRecord, len(records))
	for id, rec := range records {
		rec := rec
		f.index[id] = &rec
		if err := f.store.SaveJobState(id, rec.State, rec.At); err != nil {
			return fmt.Errorf("replication.FSM.Restore: job %d: %w", id, err)
		}
		if rec.RDL != nil {
			if err := f.store.SaveRDL(id, rec.RDL); err != nil {
				return fmt.Errorf("replication.FSM.Restore: job %d rdl: %w", id, err)
			}
		}
		if rec.Allocations != nil {
			if err := f.store.SaveAllocation(id, rec.Allocations); err != nil {
				return fmt.Errorf("replication.FSM.Restore: job %d allocations: %w", id, err)
			}
		}
	}
	return nil
}

type snapshot struct {
	records map[int64]jobRecord
}

// Persist implements raft.FSMSnapshot.
func (s *snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.records); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release implements raft.FSMSnapshot.
func (s *snapshot) Release() {}
