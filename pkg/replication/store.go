package replication

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quartzsched/quartz/pkg/resource"
	"github.com/quartzsched/quartz/pkg/storage"
)

const applyTimeout = 5 * time.Second

// ReplicatedStore is a storage.Store whose writes go through a raft log
// before landing in the wrapped local store, and whose reads are answered
// locally (every node applies the same log in the same order, so a
// follower's local store is a valid read replica once caught up).
type ReplicatedStore struct {
	node  *Node
	local storage.Store
}

// NewReplicatedStore wraps local behind node's raft log.
func NewReplicatedStore(node *Node, local storage.Store) *ReplicatedStore {
	return &ReplicatedStore{node: node, local: local}
}

var _ storage.Store = (*ReplicatedStore)(nil)

func (s *ReplicatedStore) apply(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("replication.ReplicatedStore: marshal command: %w", err)
	}
	if err := s.node.Apply(data, applyTimeout); err != nil {
		return fmt.Errorf("replication.ReplicatedStore: apply: %w", err)
	}
	return nil
}

func (s *ReplicatedStore) SaveJobState(jobID int64, state string, at time.Time) error {
	return s.apply(Command{Op: opSaveState, JobID: jobID, State: state, At: at.Unix()})
}

func (s *ReplicatedStore) LoadJobState(jobID int64) (string, time.Time, error) {
	return s.local.LoadJobState(jobID)
}

func (s *ReplicatedStore) SaveRDL(jobID int64, rdl []byte) error {
	return s.apply(Command{Op: opSaveRDL, JobID: jobID, RDL: rdl})
}

func (s *ReplicatedStore) LoadRDL(jobID int64) ([]byte, error) {
	return s.local.LoadRDL(jobID)
}

func (s *ReplicatedStore) SaveAllocation(jobID int64, allocs []resource.Allocation) error {
	return s.apply(Command{Op: opSaveAllocation, JobID: jobID, Allocations: allocs})
}

func (s *ReplicatedStore) LoadAllocation(jobID int64) ([]resource.Allocation, error) {
	return s.local.LoadAllocation(jobID)
}

func (s *ReplicatedStore) DeleteJob(jobID int64) error {
	return s.apply(Command{Op: opDeleteJob, JobID: jobID})
}

func (s *ReplicatedStore) Close() error {
	return s.local.Close()
}
