package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quartzsched/quartz/pkg/resource"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketJobs          = []byte("jobs")
	bucketJobsStateTime = []byte("jobs_state_time")
	bucketJobsRDL       = []byte("jobs_rdl")
	bucketJobsRDLAlloc  = []byte("jobs_rdl_alloc")
)

// BoltStore implements Store on top of a single bbolt file, one bucket per
// key kind (state, state-time, rdl, rdl.alloc).
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) a quartz database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "quartz.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketJobs, bucketJobsStateTime, bucketJobsRDL, bucketJobsRDLAlloc} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func jobKey(jobID int64) []byte { return []byte(strconv.FormatInt(jobID, 10)) }

func (s *BoltStore) SaveJobState(jobID int64, state string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketJobs).Put(jobKey(jobID), []byte(state)); err != nil {
			return err
		}
		secs := strconv.FormatFloat(float64(at.UnixNano())/1e9, 'f', -1, 64)
		return tx.Bucket(bucketJobsStateTime).Put(jobKey(jobID), []byte(secs))
	})
}

func (s *BoltStore) LoadJobState(jobID int64) (string, time.Time, error) {
	var state string
	var at time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		sv := tx.Bucket(bucketJobs).Get(jobKey(jobID))
		if sv == nil {
			return fmt.Errorf("job state not found: %d", jobID)
		}
		state = string(sv)

		tv := tx.Bucket(bucketJobsStateTime).Get(jobKey(jobID))
		if tv != nil {
			secs, err := strconv.ParseFloat(string(tv), 64)
			if err == nil {
				at = time.Unix(0, int64(secs*1e9))
			}
		}
		return nil
	})
	return state, at, err
}

func (s *BoltStore) SaveRDL(jobID int64, rdl []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobsRDL).Put(jobKey(jobID), rdl)
	})
}

func (s *BoltStore) LoadRDL(jobID int64) ([]byte, error) {
	var rdl []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketJobsRDL).Get(jobKey(jobID))
		if v == nil {
			return fmt.Errorf("rdl not found: %d", jobID)
		}
		rdl = append([]byte(nil), v...)
		return nil
	})
	return rdl, err
}

func (s *BoltStore) SaveAllocation(jobID int64, allocs []resource.Allocation) error {
	data, err := json.Marshal(allocs)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobsRDLAlloc).Put(jobKey(jobID), data)
	})
}

func (s *BoltStore) LoadAllocation(jobID int64) ([]resource.Allocation, error) {
	var allocs []resource.Allocation
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketJobsRDLAlloc).Get(jobKey(jobID))
		if v == nil {
			return fmt.Errorf("allocation not found: %d", jobID)
		}
		return json.Unmarshal(v, &allocs)
	})
	return allocs, err
}

func (s *BoltStore) DeleteJob(jobID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketJobs, bucketJobsStateTime, bucketJobsRDL, bucketJobsRDLAlloc} {
			if err := tx.Bucket(b).Delete(jobKey(jobID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
