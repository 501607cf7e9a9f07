// Package storage persists per-job scheduling state: the
// current state name, the time of the last state change, the serialized
// selected resource sub-tree (RDL), and the rank allocation array.
package storage

import (
	"time"

	"github.com/quartzsched/quartz/pkg/resource"
)

// Store is the persistence interface quartz's core uses to survive a
// restart without re-deriving job state from scratch.
type Store interface {
	SaveJobState(jobID int64, state string, at time.Time) error
	LoadJobState(jobID int64) (state string, at time.Time, err error)

	SaveRDL(jobID int64, rdl []byte) error
	LoadRDL(jobID int64) ([]byte, error)

	SaveAllocation(jobID int64, allocs []resource.Allocation) error
	LoadAllocation(jobID int64) ([]resource.Allocation, error)

	DeleteJob(jobID int64) error

	Close() error
}
